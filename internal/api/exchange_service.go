package api

import (
	"context"
	"fmt"

	"github.com/lframos/pairchat/internal/exchange"
	"github.com/lframos/pairchat/internal/qr"
	"github.com/lframos/pairchat/internal/store"
)

// ExchangeService exposes the contact exchange flow: producing the local
// user's QR payload and accepting scanned peer payloads.
type ExchangeService struct {
	db *store.DB
	ex *exchange.Exchange
}

// NewExchangeService creates a new exchange service.
func NewExchangeService(db *store.DB, ex *exchange.Exchange) *ExchangeService {
	return &ExchangeService{db: db, ex: ex}
}

// OwnPayload returns the QR payload string advertising the given user.
func (s *ExchangeService) OwnPayload(uid string) (string, error) {
	u, err := s.db.GetUser(uid)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return "", store.ErrNotFound
	}
	return qr.Encode(u.UID, u.Username, u.DisplayName)
}

// OwnPNG renders the local user's QR payload as a PNG image.
func (s *ExchangeService) OwnPNG(uid string, size int) ([]byte, error) {
	u, err := s.db.GetUser(uid)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, store.ErrNotFound
	}
	return qr.RenderPNG(u.UID, u.Username, u.DisplayName, size)
}

// Accept processes a scanned payload and returns the resulting chat id.
func (s *ExchangeService) Accept(ctx context.Context, me, payload string) (string, error) {
	return s.ex.Accept(ctx, me, payload)
}

// ListContacts returns the local user's contact book.
func (s *ExchangeService) ListContacts(uid string) ([]store.Contact, error) {
	return s.db.ListContacts(uid)
}
