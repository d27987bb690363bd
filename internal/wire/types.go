// Package wire implements the binary ImMessage schema exchanged with the
// server and the mapping between wire envelopes and flat message records.
// The encoding is standard protobuf, hand-maintained against the field
// numbers documented in proto/im/v1/im_message.proto; byte-exact
// compatibility with the counterpart peers is required.
package wire

import "google.golang.org/protobuf/encoding/protowire"

// ConversationType discriminates chat threads.
type ConversationType int32

const (
	ConversationPrivate         ConversationType = 0
	ConversationGroup           ConversationType = 1
	ConversationSystemNotice    ConversationType = 2
	ConversationCustomerService ConversationType = 3
)

// MessageType identifies the content variant a message carries.
type MessageType int32

const (
	MessageText    MessageType = 0
	MessageImage   MessageType = 1
	MessageVoice   MessageType = 2
	MessageVideo   MessageType = 3
	MessageFile    MessageType = 4
	MessageSticker MessageType = 5
)

// Status is the delivery state of a message.
type Status int32

const (
	StatusSending   Status = 0
	StatusSent      Status = 1
	StatusDelivered Status = 2
	StatusRead      Status = 3
	StatusFailed    Status = 4
)

// ContentType marks the payload kind of the unified content_bytes field.
type ContentType int32

const (
	ContentTypeText    ContentType = 0
	ContentTypeImage   ContentType = 1
	ContentTypeVoice   ContentType = 2
	ContentTypeVideo   ContentType = 3
	ContentTypeFile    ContentType = 4
	ContentTypeSticker ContentType = 5
)

// Fallbacks for out-of-range integer codes read back from storage. Kept as
// silent fallbacks rather than hard errors; an unknown code must still
// produce a sendable message.
const (
	FallbackStatus      = StatusFailed
	FallbackMessageType = MessageText
)

// Content is the tagged union of message payload variants. Exactly one
// variant is populated per message, selected by the message type.
type Content interface {
	isContent()
}

// TextContent is a plain text payload.
type TextContent struct {
	Text string
}

// ImageContent is an image payload.
type ImageContent struct {
	ImageURL  string
	ThumbURL  string
	Width     int32
	Height    int32
	FileSize  int64
	LocalPath string
	BlurHash  string
}

// VoiceContent is a voice note payload.
type VoiceContent struct {
	VoiceURL  string
	Duration  int32
	FileSize  int64
	LocalPath string
}

// VideoContent is a video payload.
type VideoContent struct {
	VideoURL string
	CoverURL string
	Width    int32
	Height   int32
	Duration int32
	FileSize int64
}

// FileContent is a generic file payload.
type FileContent struct {
	FileName string
	FileURL  string
	FileSize int64
	MimeType string
}

// StickerContent is a sticker payload.
type StickerContent struct {
	StickerID string
	PackID    string
	URL       string
}

func (*TextContent) isContent()    {}
func (*ImageContent) isContent()   {}
func (*VoiceContent) isContent()   {}
func (*VideoContent) isContent()   {}
func (*FileContent) isContent()    {}
func (*StickerContent) isContent() {}

// ReplyInfo references the message this one replies to.
type ReplyInfo struct {
	ReplyToMessageID string
	ReplyToType      MessageType
	PreviewText      string
}

// Envelope is the wire representation of a single chat message.
type Envelope struct {
	MessageID      string
	ClientMsgID    string
	ConversationID string
	// SessionID is the legacy conversation field; readers fall back to it
	// when ConversationID is empty, writers keep both populated.
	SessionID        string
	ConversationType ConversationType
	SenderID         string
	ReceiverID       string
	Timestamp        int64
	ServerTimestamp  int64
	ServerMsgSeq     int64
	Status           Status
	Type             MessageType
	ContentType      ContentType
	ContentBytes     []byte
	Edited           bool
	Topic            string
	RetryCount       int32
	MentionUserIDs   []string
	Reply            *ReplyInfo
	// Content is nil when the wire message carried no recognized variant.
	Content Content
}

// ImMessage field numbers. Frozen: the counterpart server and clients encode
// against the same numbers.
const (
	fieldMessageID        protowire.Number = 1
	fieldClientMsgID      protowire.Number = 2
	fieldConversationID   protowire.Number = 3
	fieldSessionID        protowire.Number = 4
	fieldConversationType protowire.Number = 5
	fieldSenderID         protowire.Number = 6
	fieldReceiverID       protowire.Number = 7
	fieldTimestamp        protowire.Number = 8
	fieldServerTimestamp  protowire.Number = 9
	fieldServerMsgSeq     protowire.Number = 10
	fieldStatus           protowire.Number = 11
	fieldMessageType      protowire.Number = 12
	fieldContentType      protowire.Number = 13
	fieldContentBytes     protowire.Number = 14
	fieldIsEdited         protowire.Number = 15
	fieldTopic            protowire.Number = 16
	fieldRetryCount       protowire.Number = 17
	fieldMentionUserIDs   protowire.Number = 18
	fieldReply            protowire.Number = 19
	fieldTextContent      protowire.Number = 20
	fieldImageContent     protowire.Number = 21
	fieldVoiceContent     protowire.Number = 22
	fieldVideoContent     protowire.Number = 23
	fieldFileContent      protowire.Number = 24
	fieldStickerContent   protowire.Number = 25
)

// ImReplyInfo field numbers.
const (
	replyFieldMessageID   protowire.Number = 1
	replyFieldType        protowire.Number = 2
	replyFieldPreviewText protowire.Number = 3
)

// Content variant field numbers.
const (
	textFieldText protowire.Number = 1

	imageFieldURL       protowire.Number = 1
	imageFieldThumbURL  protowire.Number = 2
	imageFieldWidth     protowire.Number = 3
	imageFieldHeight    protowire.Number = 4
	imageFieldFileSize  protowire.Number = 5
	imageFieldLocalPath protowire.Number = 6
	imageFieldBlurHash  protowire.Number = 7

	voiceFieldURL       protowire.Number = 1
	voiceFieldDuration  protowire.Number = 2
	voiceFieldFileSize  protowire.Number = 3
	voiceFieldLocalPath protowire.Number = 4

	videoFieldURL      protowire.Number = 1
	videoFieldCoverURL protowire.Number = 2
	videoFieldWidth    protowire.Number = 3
	videoFieldHeight   protowire.Number = 4
	videoFieldDuration protowire.Number = 5
	videoFieldFileSize protowire.Number = 6

	fileFieldName     protowire.Number = 1
	fileFieldURL      protowire.Number = 2
	fileFieldFileSize protowire.Number = 3
	fileFieldMimeType protowire.Number = 4

	stickerFieldID     protowire.Number = 1
	stickerFieldPackID protowire.Number = 2
	stickerFieldURL    protowire.Number = 3
)
