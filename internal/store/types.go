package store

// Conversation type codes, matching the wire enum.
const (
	ConvPrivate         = 0
	ConvGroup           = 1
	ConvSystemNotice    = 2
	ConvCustomerService = 3
)

// Message status codes, matching the wire enum. SENDING doubles as the
// pending-delivery marker for the resend loop.
const (
	StatusSending   = 0
	StatusSent      = 1
	StatusDelivered = 2
	StatusRead      = 3
	StatusFailed    = 4
)

// Message type codes, matching the wire enum.
const (
	TypeText    = 0
	TypeImage   = 1
	TypeVoice   = 2
	TypeVideo   = 3
	TypeFile    = 4
	TypeSticker = 5
)

// Message is the flat local record for a single chat message. MsgID is
// client-assigned, globally unique, and the idempotency key for inserts.
type Message struct {
	MsgID            string
	ConversationID   string
	ConversationType int
	FromUID          string
	ToUID            string
	MsgType          int
	Content          string
	Topic            string
	Timestamp        int64
	ServerMsgSeq     int64
	Edited           bool
	Status           int
	FilePath         string
	FileSize         int64
	Duration         int
	Read             bool
	Self             bool
	RetryCount       int
}

// Conversation is the derived per-conversation summary row. It is written
// only as a side effect of message writes, never independently.
type Conversation struct {
	ConversationID   string
	ConversationType int
	Name             string
	LastMessage      string
	LastMessageTime  int64
	UnreadCount      int
	Online           bool
}

// Friend is a cached directory entry, fully replaced on each refresh.
type Friend struct {
	ID             int64
	FriendID       string
	Username       string
	Status         int
	Signature      string
	Avatar         string
	RelationStatus int
	Remark         string
	CreateTime     int64
	UpdateTime     int64
}

// Group is a cached group directory entry.
type Group struct {
	ID        int64
	GroupID   string
	GroupName string
	CreatedAt int64
	UpdatedAt int64
}

// GroupMember records membership of a user in a group.
type GroupMember struct {
	ID       int64
	GroupID  string
	UserID   string
	JoinedAt int64
}

// User is a cached user profile, keyed by uid.
type User struct {
	UID       string
	Username  string
	Avatar    string
	Signature string
	CreatedAt int64
	UpdatedAt int64
}
