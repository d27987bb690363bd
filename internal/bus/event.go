package bus

import "time"

// Event kinds published by the daemon core. Subscribers filter by prefix:
// "message." for per-message events, "conversation." for ledger updates,
// "sync." for refresh outcomes.
const (
	KindMessageIngested     = "message.ingested"
	KindMessageSendAck      = "message.send_ack"
	KindMessageSendFailed   = "message.send_failed"
	KindConversationUpdated = "conversation.updated"
	KindConversationRead    = "conversation.read"
	KindSyncStatusChanged   = "sync.status_changed"
	KindSyncFriendsReplaced = "sync.friends_replaced"
	KindSyncGroupsReplaced  = "sync.groups_replaced"
)

// Event is a domain notification published on the bus. Payload types are
// documented at the publish site.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
