package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Server is an in-memory implementation of Client. It is the authoritative
// reference for the store's semantics: pairKey uniqueness on create,
// clientID deduplication on append, and full-snapshot fan-out to
// subscribers. Safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	chats    map[string]*Chat     // by chat id
	byPair   map[string]string    // pairKey -> chat id
	messages map[string][]Message // by chat id
	chatSubs map[int]*chatSub
	msgSubs  map[int]*msgSub
	nextSub  int
}

type chatSub struct {
	uid string
	ch  chan []Chat
}

type msgSub struct {
	chatID string
	ch     chan []Message
}

// NewServer creates an empty in-memory remote store.
func NewServer() *Server {
	return &Server{
		chats:    make(map[string]*Chat),
		byPair:   make(map[string]string),
		messages: make(map[string][]Message),
		chatSubs: make(map[int]*chatSub),
		msgSubs:  make(map[int]*msgSub),
	}
}

// FindChatByPairKey implements Client.
func (s *Server) FindChatByPairKey(ctx context.Context, pairKey string) (*Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPair[pairKey]
	if !ok {
		return nil, fmt.Errorf("%w: pairKey %q", ErrNotFound, pairKey)
	}
	c := *s.chats[id]
	return &c, nil
}

// CreateChat implements Client. The pairKey uniqueness check and the insert
// happen under one lock, so two racing creators converge: exactly one wins,
// the other observes ErrAlreadyExists and re-queries.
func (s *Server) CreateChat(ctx context.Context, c Chat) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPair[c.PairKey]; exists {
		return "", fmt.Errorf("%w: pairKey %q", ErrAlreadyExists, c.PairKey)
	}

	c.ID = uuid.NewString()
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	if c.LastUpdated == 0 {
		c.LastUpdated = c.CreatedAt
	}
	s.chats[c.ID] = &c
	s.byPair[c.PairKey] = c.ID
	s.emitChatsLocked(c.Participants)
	return c.ID, nil
}

// AppendMessage implements Client.
func (s *Server) AppendMessage(ctx context.Context, chatID string, m Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return "", fmt.Errorf("%w: chat %q", ErrNotFound, chatID)
	}

	// Idempotent replay: a clientID already accepted returns the original
	// server id without appending a second copy.
	for _, existing := range s.messages[chatID] {
		if existing.ClientID != "" && existing.ClientID == m.ClientID {
			return existing.ServerID, nil
		}
	}

	m.ServerID = uuid.NewString()
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	s.messages[chatID] = append(s.messages[chatID], m)

	// Ties with the chat's creation millisecond still count as new content.
	if m.CreatedAt >= chat.LastUpdated {
		chat.LastUpdated = m.CreatedAt
		chat.LastMessage = LastMessage{From: m.From, Text: m.Text, CreatedAt: m.CreatedAt}
	}

	s.emitMessagesLocked(chatID)
	s.emitChatsLocked(chat.Participants)
	return m.ServerID, nil
}

// SubscribeChats implements Client. The current snapshot is emitted
// immediately.
func (s *Server) SubscribeChats(ctx context.Context, uid string) (*ChatSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	sub := &chatSub{uid: uid, ch: make(chan []Chat, 1)}
	s.chatSubs[id] = sub

	handle := &ChatSubscription{
		ch: sub.ch,
		cancel: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.chatSubs[id]; ok {
				delete(s.chatSubs, id)
				close(sub.ch)
			}
		},
	}
	sub.ch <- s.chatSnapshotLocked(uid)
	return handle, nil
}

// SubscribeMessages implements Client. The current snapshot is emitted
// immediately.
func (s *Server) SubscribeMessages(ctx context.Context, chatID string) (*MessageSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	sub := &msgSub{chatID: chatID, ch: make(chan []Message, 1)}
	s.msgSubs[id] = sub

	handle := &MessageSubscription{
		ch: sub.ch,
		cancel: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.msgSubs[id]; ok {
				delete(s.msgSubs, id)
				close(sub.ch)
			}
		},
	}
	sub.ch <- s.messageSnapshotLocked(chatID)
	return handle, nil
}

func (s *Server) chatSnapshotLocked(uid string) []Chat {
	var snap []Chat
	for _, c := range s.chats {
		if c.Participants[0] == uid || c.Participants[1] == uid {
			snap = append(snap, *c)
		}
	}
	sort.Slice(snap, func(i, j int) bool {
		if snap[i].LastUpdated != snap[j].LastUpdated {
			return snap[i].LastUpdated > snap[j].LastUpdated
		}
		return snap[i].ID < snap[j].ID
	})
	return snap
}

func (s *Server) messageSnapshotLocked(chatID string) []Message {
	snap := make([]Message, len(s.messages[chatID]))
	copy(snap, s.messages[chatID])
	sort.Slice(snap, func(i, j int) bool {
		if snap[i].CreatedAt != snap[j].CreatedAt {
			return snap[i].CreatedAt < snap[j].CreatedAt
		}
		return snap[i].ServerID < snap[j].ServerID
	})
	return snap
}

// emitChatsLocked pushes a fresh chat-list snapshot to every subscriber of
// an affected participant. A pending undelivered snapshot is replaced by the
// newer one, so subscribers never observe snapshots out of order.
func (s *Server) emitChatsLocked(participants [2]string) {
	for _, sub := range s.chatSubs {
		if sub.uid != participants[0] && sub.uid != participants[1] {
			continue
		}
		replaceChat(sub.ch, s.chatSnapshotLocked(sub.uid))
	}
}

func (s *Server) emitMessagesLocked(chatID string) {
	for _, sub := range s.msgSubs {
		if sub.chatID != chatID {
			continue
		}
		replaceMsg(sub.ch, s.messageSnapshotLocked(chatID))
	}
}

func replaceChat(ch chan []Chat, snap []Chat) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func replaceMsg(ch chan []Message, snap []Message) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
