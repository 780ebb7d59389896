// Package exchange drives the accepted-scan flow: a validated QR payload
// becomes a contact entry and a resolved chat.
package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/lframos/pairchat/internal/bus"
	"github.com/lframos/pairchat/internal/qr"
	"github.com/lframos/pairchat/internal/resolver"
	"github.com/lframos/pairchat/internal/store"
	"go.uber.org/zap"
)

// Exchange turns scanned payloads into contacts and chats.
type Exchange struct {
	db       *store.DB
	resolver *resolver.Resolver
	scanner  *qr.Scanner
	bus      *bus.Bus
	logger   *zap.Logger
}

// New creates an exchange handler for the scanning user identified by the
// scanner.
func New(db *store.DB, r *resolver.Resolver, s *qr.Scanner, b *bus.Bus, logger *zap.Logger) *Exchange {
	return &Exchange{db: db, resolver: r, scanner: s, bus: b, logger: logger}
}

// Accept validates a scanned payload for user me, records the contact, and
// returns the canonical chat id for the pair. Codec errors (malformed,
// unsupported version, self reference, duplicate scan) surface unwrapped so
// callers can classify them with errors.Is.
func (e *Exchange) Accept(ctx context.Context, me, payload string) (string, error) {
	p, err := e.scanner.Scan(payload)
	if err != nil {
		return "", err
	}

	if err := e.db.UpsertContact(&store.Contact{
		UID:                me,
		ContactUID:         p.UID,
		ContactUsername:    p.Username,
		ContactDisplayName: p.Name,
	}); err != nil {
		return "", fmt.Errorf("save contact: %w", err)
	}

	chatID, err := e.resolver.CreateOrGet(ctx, me, p.UID)
	if err != nil {
		return "", err
	}

	e.logger.Info("contact added",
		zap.String("contact_uid", p.UID), zap.String("chat_id", chatID))
	e.bus.Publish(bus.Event{
		Kind:      bus.KindContactAdded,
		Timestamp: time.Now(),
		Payload:   map[string]string{"contact_uid": p.UID, "chat_id": chatID},
	})
	return chatID, nil
}
