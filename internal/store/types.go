package store

// Message delivery states. A message is created as pending, promoted to sent
// on remote acknowledgement or failed on remote error, and may re-enter
// pending via an explicit retry. Sent is terminal.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Chat sync states relative to the remote store.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
)

// User represents a locally cached user profile. UID is the stable identity
// and never changes; Username is the human-facing handle and may.
type User struct {
	UID         string
	Username    string
	DisplayName string
	Phone       string
	Email       string
	PhotoURL    string
	CreatedAt   int64
	UpdatedAt   int64
}

// Chat represents a direct conversation between exactly two participants.
// PairKey is the order-independent key derived from the two UIDs; at most one
// chat per pair key exists locally and remotely.
type Chat struct {
	ID              string
	PairKey         string
	Participants    [2]string
	CreatedAt       int64
	LastUpdated     int64
	LastMessageText string
	LastMessageFrom string
	LastMessageAt   int64
	SyncStatus      string
	PeerUsername    string
	PeerDisplayName string
}

// Message represents a chat message. ClientID is generated on the sending
// device and is the idempotency key across retries; ServerID is assigned by
// the remote store once the message is durably accepted.
type Message struct {
	ClientID  string
	ServerID  string
	ChatID    string
	FromUID   string
	Text      string
	CreatedAt int64
	Status    string
	LastError string
}

// Contact represents an entry in a user's contact list, created on a
// successful QR exchange.
type Contact struct {
	UID                string
	ContactUID         string
	ContactUsername    string
	ContactDisplayName string
	AddedAt            int64
}
