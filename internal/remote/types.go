// Package remote is the sole gateway to the remote real-time store. It owns
// the two live subscription shapes (chat list and per-chat messages), the
// remote mutation primitives, and the error taxonomy callers use to tell
// "create" failures from "update" failures from timeouts.
package remote

import "sync"

// LastMessage is the denormalized last-message snapshot on a chat document.
type LastMessage struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// Chat is a chat document in the remote store. The store enforces pairKey
// uniqueness, so at most one document per unordered participant pair exists.
type Chat struct {
	ID           string      `json:"id"`
	PairKey      string      `json:"pairKey"`
	Participants [2]string   `json:"participants"`
	CreatedAt    int64       `json:"createdAt"`
	LastUpdated  int64       `json:"lastUpdated"`
	LastMessage  LastMessage `json:"lastMessage"`
}

// Message is a message document in a chat's messages sub-collection.
// ClientID is the sender-generated idempotency key; ServerID is assigned on
// durable acceptance.
type Message struct {
	ServerID  string `json:"serverId"`
	ClientID  string `json:"clientId"`
	From      string `json:"from"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// ChatSubscription is a live subscription to a user's chat list. Every
// emission is a full snapshot of the subscribed set, ordered by lastUpdated
// descending; a newer snapshot replaces an undelivered older one, so a
// consumer never observes snapshots out of order.
type ChatSubscription struct {
	ch     chan []Chat
	cancel func()
	once   sync.Once
}

// Updates returns the snapshot channel. It is closed on cancellation.
func (s *ChatSubscription) Updates() <-chan []Chat { return s.ch }

// Cancel stops emissions and releases the remote subscription. Idempotent.
func (s *ChatSubscription) Cancel() { s.once.Do(s.cancel) }

// MessageSubscription is a live subscription to one chat's messages. Every
// emission is a full snapshot ordered by createdAt ascending.
type MessageSubscription struct {
	ch     chan []Message
	cancel func()
	once   sync.Once
}

// Updates returns the snapshot channel. It is closed on cancellation.
func (s *MessageSubscription) Updates() <-chan []Message { return s.ch }

// Cancel stops emissions and releases the remote subscription. Idempotent.
func (s *MessageSubscription) Cancel() { s.once.Do(s.cancel) }
