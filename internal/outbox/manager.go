// Package outbox owns the outbound message lifecycle: client-generated
// identity, the pending/sent/failed state machine, explicit retry, and a
// background drain loop that re-attempts deliveries left pending by a crash
// or offline period.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/remote"
	"github.com/lframos/pairchat/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrEmptyText is returned when the message body is empty or whitespace.
	ErrEmptyText = errors.New("message text is empty")

	// ErrUnknownMessage is returned when a retry names a client id with no
	// local row.
	ErrUnknownMessage = errors.New("unknown message")
)

// drainAge is how old a pending row must be before the drain loop picks it
// up, so the loop does not race deliveries that are still in flight.
const drainAge = 5 * time.Second

// Manager drives outbound messages through the local store and the remote
// store. Every send is keyed by a client-generated id that survives retries,
// so an ambiguous failure can never duplicate a message.
type Manager struct {
	db     *store.DB
	remote remote.Client
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewManager creates a message lifecycle manager.
func NewManager(db *store.DB, rc remote.Client, b *bus.Bus, logger *zap.Logger) *Manager {
	return &Manager{db: db, remote: rc, bus: b, logger: logger}
}

// Send writes a pending message locally, forwards it to the remote store,
// and promotes the local row to sent or failed. The returned client id is
// valid in both outcomes; on failure the error is returned alongside it so
// the caller can surface the failure and later call Retry.
func (m *Manager) Send(ctx context.Context, chatID, fromUID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	msg := &store.Message{
		ClientID:  uuid.NewString(),
		ChatID:    chatID,
		FromUID:   fromUID,
		Text:      text,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := m.db.InsertPendingMessage(msg); err != nil {
		return "", fmt.Errorf("write pending message: %w", err)
	}
	m.publish(bus.KindMessageUpserted, msg.ChatID, msg.ClientID)

	if err := m.deliver(ctx, msg); err != nil {
		return msg.ClientID, err
	}
	return msg.ClientID, nil
}

// Retry re-attempts delivery of a failed message, reusing its client id.
// Only valid from the failed state; the remote store deduplicates by client
// id, so a message that actually arrived despite a locally observed failure
// is converged, not duplicated.
func (m *Manager) Retry(ctx context.Context, clientID string) error {
	msg, err := m.db.GetMessage(clientID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if msg == nil {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, clientID)
	}
	if err := m.db.MarkMessageRetrying(clientID); err != nil {
		return err
	}
	m.publish(bus.KindMessageUpserted, msg.ChatID, msg.ClientID)
	return m.deliver(ctx, msg)
}

func (m *Manager) deliver(ctx context.Context, msg *store.Message) error {
	serverID, err := m.remote.AppendMessage(ctx, msg.ChatID, remote.Message{
		ClientID:  msg.ClientID,
		From:      msg.FromUID,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		if markErr := m.db.MarkMessageFailed(msg.ClientID, err.Error()); markErr != nil {
			m.logger.Error("failed to mark message failed",
				zap.Error(markErr), zap.String("client_id", msg.ClientID))
		}
		m.publish(bus.KindMessageSendFailed, msg.ChatID, msg.ClientID)
		return fmt.Errorf("deliver message %s: %w", msg.ClientID, err)
	}

	if err := m.db.MarkMessageSent(msg.ClientID, serverID); err != nil {
		// A concurrent path already promoted the row; the remote accept
		// stands either way.
		if !errors.Is(err, store.ErrBadTransition) {
			return fmt.Errorf("mark message sent: %w", err)
		}
	}
	// The chat summary advances only on acknowledged sends; the bump is
	// guarded by last_updated so a newer remote-origin update wins.
	if err := m.db.BumpChatSummary(msg.ChatID, msg.Text, msg.FromUID, msg.CreatedAt); err != nil {
		m.logger.Error("failed to bump chat summary",
			zap.Error(err), zap.String("chat_id", msg.ChatID))
	}

	m.logger.Info("message sent",
		zap.String("client_id", msg.ClientID), zap.String("server_id", serverID))
	m.publish(bus.KindMessageSendAck, msg.ChatID, msg.ClientID)
	m.publish(bus.KindMessageUpserted, msg.ChatID, msg.ClientID)
	return nil
}

// Start begins the background drain loop for stale pending messages.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
}

// Stop stops the drain loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Manager) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.drainPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) drainPending(ctx context.Context) {
	pending, err := m.db.PendingMessages()
	if err != nil {
		m.logger.Error("failed to read pending messages", zap.Error(err))
		return
	}

	cutoff := time.Now().Add(-drainAge).UnixMilli()
	for i := range pending {
		msg := &pending[i]
		if msg.CreatedAt > cutoff {
			continue
		}
		if err := m.deliver(ctx, msg); err != nil {
			m.logger.Warn("drain delivery failed",
				zap.Error(err), zap.String("client_id", msg.ClientID))
		}
	}
}

func (m *Manager) publish(kind, chatID, clientID string) {
	m.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   map[string]string{"chat_id": chatID, "client_id": clientID},
	})
}
