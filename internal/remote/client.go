package remote

import "context"

// Client mediates all reads and writes against the remote real-time store.
// Implementations: Server (in-memory, authoritative for tests and loopback
// mode) and WSClient (websocket transport).
type Client interface {
	// FindChatByPairKey returns the chat document for an unordered
	// participant pair, or ErrNotFound.
	FindChatByPairKey(ctx context.Context, pairKey string) (*Chat, error)

	// CreateChat creates a chat document and returns its store-assigned id.
	// Returns ErrAlreadyExists when a document with the same pairKey is
	// already present.
	CreateChat(ctx context.Context, c Chat) (string, error)

	// AppendMessage appends a message to a chat and returns the assigned
	// server id. Appends are idempotent on ClientID: replaying a delivery
	// returns the original server id instead of duplicating the message.
	// The owning chat's lastMessage/lastUpdated snapshot advances with the
	// append. Returns ErrNotFound when the chat does not exist.
	AppendMessage(ctx context.Context, chatID string, m Message) (string, error)

	// SubscribeChats opens a live snapshot stream of every chat the user
	// participates in, newest activity first.
	SubscribeChats(ctx context.Context, uid string) (*ChatSubscription, error)

	// SubscribeMessages opens a live snapshot stream of one chat's messages
	// in createdAt order.
	SubscribeMessages(ctx context.Context, chatID string) (*MessageSubscription, error)
}
