package bus

import "time"

// Event kinds published by the core. Subscribers filter by namespace prefix,
// e.g. "message." matches every message lifecycle event.
const (
	KindChatUpserted      = "chat.upserted"
	KindMessageUpserted   = "message.upserted"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"
	KindContactAdded      = "contact.added"
	KindSyncConnected     = "sync.connected"
	KindSyncDisconnected  = "sync.disconnected"
	KindStatusChanged     = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
