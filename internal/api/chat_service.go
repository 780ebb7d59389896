package api

import (
	"context"
	"fmt"

	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/store"
)

// ChatService exposes read access to the local chat list.
type ChatService struct {
	db  *store.DB
	bus *bus.Bus
}

// NewChatService creates a new chat service backed by the store.
func NewChatService(db *store.DB, b *bus.Bus) *ChatService {
	return &ChatService{db: db, bus: b}
}

// ListChats returns chats ordered by most recent activity.
func (s *ChatService) ListChats(limit, offset int) ([]store.Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	chats, err := s.db.ListChats(limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

// GetChat returns a single chat by its canonical id.
func (s *ChatService) GetChat(id string) (*store.Chat, error) {
	c, err := s.db.GetChat(id)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if c == nil {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// WatchChatUpdates invokes fn for every chat event until ctx is cancelled.
func (s *ChatService) WatchChatUpdates(ctx context.Context, fn func(bus.Event)) {
	ch, unsub := s.bus.Subscribe("chat.", 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			fn(evt)
		case <-ctx.Done():
			return
		}
	}
}
