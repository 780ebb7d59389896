// Package resolver guarantees exactly one chat per unordered pair of
// participants, across both the local store and the remote store, even when
// both participants create the chat at the same moment.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lframos/pairchat/internal/remote"
	"github.com/lframos/pairchat/internal/store"
	"go.uber.org/zap"
)

// Separator joins the two sorted participant UIDs into a pair key. It is not
// a legal character inside a UID, so distinct unordered pairs can never
// collide.
const Separator = "#"

var (
	// ErrSelfChat is returned when both participants are the same user.
	ErrSelfChat = errors.New("cannot create a chat with yourself")

	// ErrBadUID is returned when a participant UID is empty or contains the
	// pair-key separator.
	ErrBadUID = errors.New("invalid participant uid")
)

// PairKey computes the deterministic, order-independent key for two
// participant UIDs: sort, then join with Separator.
func PairKey(a, b string) (string, error) {
	for _, uid := range []string{a, b} {
		if uid == "" || strings.Contains(uid, Separator) {
			return "", fmt.Errorf("%w: %q", ErrBadUID, uid)
		}
	}
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + Separator + pair[1], nil
}

// Resolver performs get-or-create chat resolution against the local and
// remote stores.
type Resolver struct {
	db     *store.DB
	remote remote.Client
	logger *zap.Logger
}

// New creates a resolver.
func New(db *store.DB, rc remote.Client, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, remote: rc, logger: logger}
}

// CreateOrGet returns the canonical chat id for the unordered pair
// (me, peer), creating the remote chat if it does not exist yet. The remote
// store enforces pairKey uniqueness, so when two devices race to create the
// same pair, one create wins and the other converges on it by re-querying.
// The canonical chat is upserted into the local store before returning.
func (r *Resolver) CreateOrGet(ctx context.Context, me, peer string) (string, error) {
	if me == peer {
		return "", fmt.Errorf("%w: %q", ErrSelfChat, me)
	}
	pairKey, err := PairKey(me, peer)
	if err != nil {
		return "", err
	}

	chat, err := r.remote.FindChatByPairKey(ctx, pairKey)
	if errors.Is(err, remote.ErrNotFound) {
		chat, err = r.create(ctx, me, peer, pairKey)
	}
	if err != nil {
		return "", err
	}

	if err := r.cacheLocally(me, chat); err != nil {
		return "", fmt.Errorf("cache chat %s: %w", chat.ID, err)
	}
	return chat.ID, nil
}

func (r *Resolver) create(ctx context.Context, me, peer, pairKey string) (*remote.Chat, error) {
	now := time.Now().UnixMilli()
	id, err := r.remote.CreateChat(ctx, remote.Chat{
		PairKey:      pairKey,
		Participants: [2]string{me, peer},
		CreatedAt:    now,
		LastUpdated:  now,
	})
	if errors.Is(err, remote.ErrAlreadyExists) {
		// Lost the create race; the other participant's document is
		// canonical.
		r.logger.Info("chat create lost race, converging", zap.String("pair_key", pairKey))
		return r.remote.FindChatByPairKey(ctx, pairKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	chat, err := r.remote.FindChatByPairKey(ctx, pairKey)
	if err != nil {
		// The create succeeded; fall back to what we wrote.
		return &remote.Chat{
			ID:           id,
			PairKey:      pairKey,
			Participants: [2]string{me, peer},
			CreatedAt:    now,
			LastUpdated:  now,
		}, nil
	}
	return chat, nil
}

// cacheLocally upserts the canonical chat into the local store, denormalizing
// the peer's name fields from the contact list when available.
func (r *Resolver) cacheLocally(me string, chat *remote.Chat) error {
	peer := chat.Participants[0]
	if peer == me {
		peer = chat.Participants[1]
	}

	local := &store.Chat{
		ID:              chat.ID,
		PairKey:         chat.PairKey,
		Participants:    chat.Participants,
		CreatedAt:       chat.CreatedAt,
		LastUpdated:     chat.LastUpdated,
		LastMessageText: chat.LastMessage.Text,
		LastMessageFrom: chat.LastMessage.From,
		LastMessageAt:   chat.LastMessage.CreatedAt,
		SyncStatus:      store.SyncSynced,
	}
	if contact, err := r.db.GetContact(me, peer); err == nil && contact != nil {
		local.PeerUsername = contact.ContactUsername
		local.PeerDisplayName = contact.ContactDisplayName
	}
	return r.db.UpsertChat(local)
}
