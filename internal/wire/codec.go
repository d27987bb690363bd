package wire

import (
	"fmt"

	"github.com/lythe-im/lythed/internal/store"
)

// unknownPreview stands in for content the decoder does not recognize;
// decoding degrades to it instead of failing.
const unknownPreview = "[UNKNOWN MESSAGE]"

// Decode parses wire bytes into a flat message record. Malformed bytes fail
// with a *DecodeError; an unset or unrecognized content variant degrades to a
// placeholder preview instead.
func Decode(data []byte) (*store.Message, error) {
	env, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return FromEnvelope(env, false), nil
}

// FromEnvelope flattens a wire envelope into a message record. isSelf is
// computed locally by the caller, never carried on the wire.
func FromEnvelope(env *Envelope, isSelf bool) *store.Message {
	var (
		content  string
		filePath string
		fileSize int64
		duration int
	)

	switch c := env.Content.(type) {
	case *TextContent:
		content = c.Text
	case *ImageContent:
		content = "[image]"
		filePath = c.ImageURL
		fileSize = c.FileSize
	case *VoiceContent:
		content = fmt.Sprintf("[voice %dsecond]", c.Duration)
		filePath = c.VoiceURL
		fileSize = c.FileSize
		duration = int(c.Duration)
	case *VideoContent:
		content = fmt.Sprintf("[video %d]", c.Duration)
		filePath = c.VideoURL
		fileSize = c.FileSize
		duration = int(c.Duration)
	case *FileContent:
		if env.Reply != nil {
			content = fmt.Sprintf("[Reply %s\n[file %s]", env.Reply.PreviewText, c.FileName)
		} else {
			content = fmt.Sprintf("[File %s]", c.FileName)
		}
		filePath = c.FileURL
		fileSize = c.FileSize
	case *StickerContent:
		content = fmt.Sprintf("[sticker %s]", c.StickerID)
		filePath = c.URL
	case nil:
		content = unknownPreview
	default:
		content = unknownPreview
	}

	conversationID := env.ConversationID
	if conversationID == "" {
		// Compatibility with peers still writing the legacy session field.
		conversationID = env.SessionID
	}

	return &store.Message{
		MsgID:            env.MessageID,
		ConversationID:   conversationID,
		ConversationType: int(env.ConversationType),
		FromUID:          env.SenderID,
		ToUID:            env.ReceiverID,
		MsgType:          int(env.Type),
		Content:          content,
		Topic:            env.Topic,
		Timestamp:        env.Timestamp,
		ServerMsgSeq:     env.ServerMsgSeq,
		Edited:           env.Edited,
		Status:           int(env.Status),
		FilePath:         filePath,
		FileSize:         fileSize,
		Duration:         duration,
		Read:             env.Status == StatusRead,
		Self:             isSelf,
		RetryCount:       int(env.RetryCount),
	}
}

// Encode serializes a message record back to wire bytes, rebuilding the
// content variant from the stored type code.
func Encode(m *store.Message) []byte {
	return Marshal(ToEnvelope(m))
}

// ToEnvelope rebuilds a wire envelope from a flat message record. Out-of-range
// integer codes fall back to FallbackStatus / FallbackMessageType rather than
// failing; unknown types serialize as text wrapping the raw content.
func ToEnvelope(m *store.Message) *Envelope {
	env := &Envelope{
		MessageID:      m.MsgID,
		ClientMsgID:    m.MsgID,
		ConversationID: m.ConversationID,
		// Keep the legacy field populated for older peers.
		SessionID:        m.ConversationID,
		ConversationType: ConversationType(m.ConversationType),
		SenderID:         m.FromUID,
		ReceiverID:       m.ToUID,
		Timestamp:        m.Timestamp,
		ServerTimestamp:  m.Timestamp,
		ServerMsgSeq:     m.ServerMsgSeq,
		Status:           statusForCode(m.Status),
		Type:             messageTypeForCode(m.MsgType),
		Edited:           m.Edited,
		Topic:            m.Topic,
		RetryCount:       int32(m.RetryCount),
	}

	// Dispatch on the raw stored code, not the normalized env.Type: an
	// out-of-range code must reach the default branch so empty content
	// still serializes as the placeholder.
	switch MessageType(m.MsgType) {
	case MessageText:
		env.Content = &TextContent{Text: m.Content}
		env.ContentType = ContentTypeText
	case MessageImage:
		env.Content = &ImageContent{
			ImageURL:  m.FilePath,
			LocalPath: m.FilePath,
			FileSize:  m.FileSize,
		}
		env.ContentType = ContentTypeImage
	case MessageVoice:
		env.Content = &VoiceContent{
			VoiceURL:  m.FilePath,
			LocalPath: m.FilePath,
			Duration:  int32(m.Duration),
			FileSize:  m.FileSize,
		}
		env.ContentType = ContentTypeVoice
	case MessageVideo:
		env.Content = &VideoContent{
			VideoURL: m.FilePath,
			Duration: int32(m.Duration),
			FileSize: m.FileSize,
		}
		env.ContentType = ContentTypeVideo
	case MessageFile:
		env.Content = &FileContent{
			FileURL:  m.FilePath,
			FileSize: m.FileSize,
		}
		env.ContentType = ContentTypeFile
	case MessageSticker:
		env.Content = &StickerContent{URL: m.FilePath}
		env.ContentType = ContentTypeSticker
	default:
		text := m.Content
		if text == "" {
			text = unknownPreview
		}
		env.Content = &TextContent{Text: text}
		env.ContentType = ContentTypeText
	}
	return env
}

func statusForCode(code int) Status {
	s := Status(code)
	switch s {
	case StatusSending, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return s
	}
	return FallbackStatus
}

func messageTypeForCode(code int) MessageType {
	t := MessageType(code)
	switch t {
	case MessageText, MessageImage, MessageVoice, MessageVideo, MessageFile, MessageSticker:
		return t
	}
	return FallbackMessageType
}
