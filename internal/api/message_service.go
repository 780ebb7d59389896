package api

import (
	"context"
	"fmt"

	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/outbox"
	"github.com/lframos/pairchat/internal/store"
)

// MessageService exposes message history and the send/retry pipeline.
type MessageService struct {
	db  *store.DB
	out *outbox.Manager
	bus *bus.Bus
}

// NewMessageService creates a new message service backed by the store and outbox.
func NewMessageService(db *store.DB, out *outbox.Manager, b *bus.Bus) *MessageService {
	return &MessageService{db: db, out: out, bus: b}
}

// ListMessages returns a chat's messages in ascending timestamp order.
func (s *MessageService) ListMessages(chatID string, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := s.db.ListMessages(chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Send queues a message and attempts immediate delivery. The returned
// client id identifies the message regardless of delivery outcome.
func (s *MessageService) Send(ctx context.Context, chatID, fromUID, text string) (string, error) {
	return s.out.Send(ctx, chatID, fromUID, text)
}

// Retry re-attempts delivery of a failed message.
func (s *MessageService) Retry(ctx context.Context, clientID string) error {
	return s.out.Retry(ctx, clientID)
}

// Pending returns messages still awaiting delivery.
func (s *MessageService) Pending() ([]store.Message, error) {
	return s.db.PendingMessages()
}

// WatchMessageEvents invokes fn for every message event until ctx is cancelled.
func (s *MessageService) WatchMessageEvents(ctx context.Context, fn func(bus.Event)) {
	ch, unsub := s.bus.Subscribe("message.", 64)
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
