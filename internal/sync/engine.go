// Package sync reconciles the remote store into the local cache: it consumes
// snapshot emissions from the chat-list and per-chat message subscriptions
// and upserts them idempotently.
package sync

import (
	"context"
	"fmt"
	"strconv"
	gosync "sync"
	"time"

	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/remote"
	"github.com/lframos/pairchat/internal/store"
	"go.uber.org/zap"
)

// Engine subscribes to the user's remote chat list, mirrors every chat into
// the local store, and maintains one message subscription per known chat.
type Engine struct {
	uid    string
	db     *store.DB
	remote remote.Client
	recon  *Reconciler
	bus    *bus.Bus
	logger *zap.Logger

	cancel context.CancelFunc
	wg     gosync.WaitGroup

	mu      gosync.Mutex
	msgSubs map[string]*remote.MessageSubscription // by chat id
}

// NewEngine creates a reconciliation engine for the given user.
func NewEngine(uid string, db *store.DB, rc remote.Client, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		uid:     uid,
		db:      db,
		remote:  rc,
		recon:   NewReconciler(db, logger),
		bus:     b,
		logger:  logger,
		msgSubs: make(map[string]*remote.MessageSubscription),
	}
}

// Start opens the chat-list subscription and begins reconciling.
func (e *Engine) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)

	chatSub, err := e.remote.SubscribeChats(ctx, e.uid)
	if err != nil {
		return fmt.Errorf("subscribe chats: %w", err)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer chatSub.Cancel()
		for {
			select {
			case snap, ok := <-chatSub.Updates():
				if !ok {
					return
				}
				e.ingestChatSnapshot(ctx, snap)
			case <-ctx.Done():
				return
			}
		}
	}()

	e.bus.Publish(bus.Event{Kind: bus.KindSyncConnected, Timestamp: time.Now()})
	return nil
}

// Stop cancels every subscription and waits for reconciliation to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}

	e.mu.Lock()
	for id, sub := range e.msgSubs {
		sub.Cancel()
		delete(e.msgSubs, id)
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.bus.Publish(bus.Event{Kind: bus.KindSyncDisconnected, Timestamp: time.Now()})
}

// ingestChatSnapshot mirrors one chat-list snapshot into the local store and
// opens message subscriptions for chats seen for the first time.
func (e *Engine) ingestChatSnapshot(ctx context.Context, snap []remote.Chat) {
	var maxUpdated int64
	for i := range snap {
		rc := &snap[i]
		if err := e.ingestChat(rc); err != nil {
			e.logger.Error("failed to ingest chat", zap.Error(err), zap.String("chat_id", rc.ID))
			continue
		}
		if rc.LastUpdated > maxUpdated {
			maxUpdated = rc.LastUpdated
		}
		e.ensureMessageSub(ctx, rc.ID)
	}

	if maxUpdated > 0 {
		if err := e.recon.UpdateCheckpoint(checkpointChats, strconv.FormatInt(maxUpdated, 10)); err != nil {
			e.logger.Warn("failed to update chat checkpoint", zap.Error(err))
		}
	}
}

func (e *Engine) ingestChat(rc *remote.Chat) error {
	local := &store.Chat{
		ID:              rc.ID,
		PairKey:         rc.PairKey,
		Participants:    rc.Participants,
		CreatedAt:       rc.CreatedAt,
		LastUpdated:     rc.LastUpdated,
		LastMessageText: rc.LastMessage.Text,
		LastMessageFrom: rc.LastMessage.From,
		LastMessageAt:   rc.LastMessage.CreatedAt,
		SyncStatus:      store.SyncSynced,
	}

	peer := rc.Participants[0]
	if peer == e.uid {
		peer = rc.Participants[1]
	}
	if contact, err := e.db.GetContact(e.uid, peer); err == nil && contact != nil {
		local.PeerUsername = contact.ContactUsername
		local.PeerDisplayName = contact.ContactDisplayName
	}

	if err := e.db.UpsertChat(local); err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}

	e.bus.Publish(bus.Event{
		Kind:      bus.KindChatUpserted,
		Timestamp: time.Now(),
		Payload:   map[string]string{"chat_id": rc.ID},
	})
	return nil
}

// ensureMessageSub opens the per-chat message subscription once per chat.
// Chats are never deleted, so subscriptions live until Stop.
func (e *Engine) ensureMessageSub(ctx context.Context, chatID string) {
	e.mu.Lock()
	if _, ok := e.msgSubs[chatID]; ok {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	sub, err := e.remote.SubscribeMessages(ctx, chatID)
	if err != nil {
		e.logger.Error("failed to subscribe to messages", zap.Error(err), zap.String("chat_id", chatID))
		return
	}

	e.mu.Lock()
	if _, ok := e.msgSubs[chatID]; ok {
		// Lost a benign race with another snapshot of the same chat.
		e.mu.Unlock()
		sub.Cancel()
		return
	}
	e.msgSubs[chatID] = sub
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case snap, ok := <-sub.Updates():
				if !ok {
					return
				}
				e.ingestMessageSnapshot(chatID, snap)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ingestMessageSnapshot upserts one chat's message snapshot. Remote-origin
// rows land as sent; a local pending row for the same client id is promoted
// in place, never duplicated.
func (e *Engine) ingestMessageSnapshot(chatID string, snap []remote.Message) {
	count := 0
	for i := range snap {
		rm := &snap[i]
		clientID := rm.ClientID
		if clientID == "" {
			// Defensive: a foreign writer without client ids still gets a
			// stable idempotency key.
			clientID = rm.ServerID
		}
		err := e.db.UpsertMessage(&store.Message{
			ClientID:  clientID,
			ServerID:  rm.ServerID,
			ChatID:    chatID,
			FromUID:   rm.From,
			Text:      rm.Text,
			CreatedAt: rm.CreatedAt,
			Status:    store.StatusSent,
		})
		if err != nil {
			e.logger.Error("failed to ingest message",
				zap.Error(err), zap.String("server_id", rm.ServerID))
			continue
		}
		count++
	}

	if count > 0 {
		e.bus.Publish(bus.Event{
			Kind:      bus.KindMessageUpserted,
			Timestamp: time.Now(),
			Payload:   map[string]string{"chat_id": chatID},
		})
	}
}
