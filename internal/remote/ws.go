package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Config configures the websocket remote client.
type Config struct {
	URL                  string
	OpTimeout            time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
}

func (c *Config) defaults() {
	if c.OpTimeout == 0 {
		c.OpTimeout = 10 * time.Second
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
}

// envelope is the wire format for every frame in both directions. Unary ops
// carry a request id; subscription frames carry the client-chosen sub id.
type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Sub     string          `json:"sub,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type callResult struct {
	payload json.RawMessage
	err     error
}

// WSClient implements Client over a websocket connection. It reconnects with
// exponential backoff and re-issues live subscriptions after a reconnect.
type WSClient struct {
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[string]chan callResult
	chatSubs map[string]*wsChatSub
	msgSubs  map[string]*wsMsgSub
	closed   bool
}

type wsChatSub struct {
	uid string
	ch  chan []Chat
}

type wsMsgSub struct {
	chatID string
	ch     chan []Message
}

// DialWS connects to the remote store endpoint and starts the read loop.
func DialWS(ctx context.Context, cfg Config, logger *zap.Logger) (*WSClient, error) {
	cfg.defaults()

	conn, _, err := websocket.Dial(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, cfg.URL, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &WSClient{
		cfg:      cfg,
		logger:   logger,
		ctx:      runCtx,
		cancel:   cancel,
		conn:     conn,
		pending:  make(map[string]chan callResult),
		chatSubs: make(map[string]*wsChatSub),
		msgSubs:  make(map[string]*wsMsgSub),
	}
	go c.readLoop()
	return c, nil
}

// Close tears down the connection and all subscriptions.
func (c *WSClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.failPendingLocked(ErrUnavailable)
	for id, sub := range c.chatSubs {
		close(sub.ch)
		delete(c.chatSubs, id)
	}
	for id, sub := range c.msgSubs {
		close(sub.ch)
		delete(c.msgSubs, id)
	}
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
	}
}

// FindChatByPairKey implements Client.
func (c *WSClient) FindChatByPairKey(ctx context.Context, pairKey string) (*Chat, error) {
	raw, err := c.call(ctx, "find_chat", map[string]string{"pairKey": pairKey})
	if err != nil {
		return nil, err
	}
	var chat Chat
	if err := json.Unmarshal(raw, &chat); err != nil {
		return nil, fmt.Errorf("decode chat: %w", err)
	}
	return &chat, nil
}

// CreateChat implements Client.
func (c *WSClient) CreateChat(ctx context.Context, chat Chat) (string, error) {
	raw, err := c.call(ctx, "create_chat", chat)
	if err != nil {
		return "", err
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("decode create result: %w", err)
	}
	return res.ID, nil
}

// AppendMessage implements Client.
func (c *WSClient) AppendMessage(ctx context.Context, chatID string, m Message) (string, error) {
	raw, err := c.call(ctx, "append_message", map[string]any{"chatId": chatID, "message": m})
	if err != nil {
		return "", err
	}
	var res struct {
		ServerID string `json:"serverId"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("decode append result: %w", err)
	}
	return res.ServerID, nil
}

// SubscribeChats implements Client.
func (c *WSClient) SubscribeChats(ctx context.Context, uid string) (*ChatSubscription, error) {
	subID := uuid.NewString()
	sub := &wsChatSub{uid: uid, ch: make(chan []Chat, 1)}

	c.mu.Lock()
	c.chatSubs[subID] = sub
	c.mu.Unlock()

	if _, err := c.call(ctx, "subscribe_chats", map[string]string{"sub": subID, "uid": uid}); err != nil {
		c.mu.Lock()
		delete(c.chatSubs, subID)
		c.mu.Unlock()
		return nil, err
	}

	return &ChatSubscription{
		ch:     sub.ch,
		cancel: func() { c.cancelSub(subID) },
	}, nil
}

// SubscribeMessages implements Client.
func (c *WSClient) SubscribeMessages(ctx context.Context, chatID string) (*MessageSubscription, error) {
	subID := uuid.NewString()
	sub := &wsMsgSub{chatID: chatID, ch: make(chan []Message, 1)}

	c.mu.Lock()
	c.msgSubs[subID] = sub
	c.mu.Unlock()

	if _, err := c.call(ctx, "subscribe_messages", map[string]string{"sub": subID, "chatId": chatID}); err != nil {
		c.mu.Lock()
		delete(c.msgSubs, subID)
		c.mu.Unlock()
		return nil, err
	}

	return &MessageSubscription{
		ch:     sub.ch,
		cancel: func() { c.cancelSub(subID) },
	}, nil
}

func (c *WSClient) cancelSub(subID string) {
	c.mu.Lock()
	if sub, ok := c.chatSubs[subID]; ok {
		delete(c.chatSubs, subID)
		close(sub.ch)
	}
	if sub, ok := c.msgSubs[subID]; ok {
		delete(c.msgSubs, subID)
		close(sub.ch)
	}
	c.mu.Unlock()

	// Best-effort release on the server side.
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.OpTimeout)
	defer cancel()
	_ = c.send(ctx, envelope{Type: "cancel", Sub: subID})
}

// call performs a unary request/response op bounded by the configured
// timeout. Deadline expiry surfaces as ErrTimeout, connection loss as
// ErrUnavailable.
func (c *WSClient) call(ctx context.Context, typ string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}

	id := uuid.NewString()
	ch := make(chan callResult, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrUnavailable
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()

	if err := c.send(ctx, envelope{Type: typ, ID: id, Payload: body}); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.payload, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, typ)
		}
		return nil, ctx.Err()
	}
}

func (c *WSClient) send(ctx context.Context, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrUnavailable
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: %s", ErrTimeout, env.Type)
		}
		return fmt.Errorf("%w: write: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *WSClient) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if conn == nil {
			if !c.reconnect() {
				c.Close()
				return
			}
			continue
		}

		_, data, err := conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("remote connection lost", zap.Error(err))
			c.mu.Lock()
			c.conn = nil
			c.failPendingLocked(ErrUnavailable)
			c.mu.Unlock()
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("malformed remote frame", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

func (c *WSClient) dispatch(env envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch env.Type {
	case "result":
		if ch, ok := c.pending[env.ID]; ok {
			ch <- callResult{payload: env.Payload}
		}
	case "error":
		if ch, ok := c.pending[env.ID]; ok {
			var we wireError
			_ = json.Unmarshal(env.Payload, &we)
			ch <- callResult{err: mapWireError(we)}
		}
	case "chats.snapshot":
		if sub, ok := c.chatSubs[env.Sub]; ok {
			var snap []Chat
			if err := json.Unmarshal(env.Payload, &snap); err != nil {
				c.logger.Warn("malformed chat snapshot", zap.Error(err))
				return
			}
			replaceChat(sub.ch, snap)
		}
	case "messages.snapshot":
		if sub, ok := c.msgSubs[env.Sub]; ok {
			var snap []Message
			if err := json.Unmarshal(env.Payload, &snap); err != nil {
				c.logger.Warn("malformed message snapshot", zap.Error(err))
				return
			}
			replaceMsg(sub.ch, snap)
		}
	}
}

// reconnect dials with exponential backoff and jitter, then re-issues every
// live subscription. Returns false when the attempt budget is exhausted.
func (c *WSClient) reconnect() bool {
	for attempt := 0; attempt < c.cfg.MaxReconnectAttempts; attempt++ {
		delay := time.Duration(float64(c.cfg.ReconnectBaseDelay) * math.Pow(2, float64(attempt)))
		if delay > c.cfg.ReconnectMaxDelay {
			delay = c.cfg.ReconnectMaxDelay
		}
		delay += time.Duration(rand.Int63n(int64(c.cfg.ReconnectBaseDelay)))

		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			return false
		}

		dialCtx, cancel := context.WithTimeout(c.ctx, c.cfg.OpTimeout)
		conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
		cancel()
		if err != nil {
			c.logger.Warn("reconnect failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "client closed")
			return false
		}
		c.conn = conn
		chatSubs := make(map[string]*wsChatSub, len(c.chatSubs))
		for id, sub := range c.chatSubs {
			chatSubs[id] = sub
		}
		msgSubs := make(map[string]*wsMsgSub, len(c.msgSubs))
		for id, sub := range c.msgSubs {
			msgSubs[id] = sub
		}
		c.mu.Unlock()

		c.logger.Info("remote reconnected", zap.Int("attempt", attempt+1))
		for id, sub := range chatSubs {
			body, _ := json.Marshal(map[string]string{"sub": id, "uid": sub.uid})
			_ = c.send(c.ctx, envelope{Type: "subscribe_chats", Payload: body})
		}
		for id, sub := range msgSubs {
			body, _ := json.Marshal(map[string]string{"sub": id, "chatId": sub.chatID})
			_ = c.send(c.ctx, envelope{Type: "subscribe_messages", Payload: body})
		}
		return true
	}
	c.logger.Error("remote reconnect attempts exhausted")
	return false
}

func (c *WSClient) failPendingLocked(err error) {
	for id, ch := range c.pending {
		ch <- callResult{err: err}
		delete(c.pending, id)
	}
}

func mapWireError(we wireError) error {
	switch we.Code {
	case "not_found":
		return fmt.Errorf("%w: %s", ErrNotFound, we.Message)
	case "conflict":
		return fmt.Errorf("%w: %s", ErrAlreadyExists, we.Message)
	default:
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, we.Code, we.Message)
	}
}
