package wire

import "google.golang.org/protobuf/encoding/protowire"

// Marshal serializes an envelope to protobuf wire bytes. Zero-valued scalar
// fields are omitted (proto3 semantics); the content variant and reply are
// emitted whenever present, even if internally empty, to preserve oneof
// presence.
func Marshal(m *Envelope) []byte {
	var b []byte
	b = appendStringField(b, fieldMessageID, m.MessageID)
	b = appendStringField(b, fieldClientMsgID, m.ClientMsgID)
	b = appendStringField(b, fieldConversationID, m.ConversationID)
	b = appendStringField(b, fieldSessionID, m.SessionID)
	b = appendVarintField(b, fieldConversationType, uint64(m.ConversationType))
	b = appendStringField(b, fieldSenderID, m.SenderID)
	b = appendStringField(b, fieldReceiverID, m.ReceiverID)
	b = appendVarintField(b, fieldTimestamp, uint64(m.Timestamp))
	b = appendVarintField(b, fieldServerTimestamp, uint64(m.ServerTimestamp))
	b = appendVarintField(b, fieldServerMsgSeq, uint64(m.ServerMsgSeq))
	b = appendVarintField(b, fieldStatus, uint64(m.Status))
	b = appendVarintField(b, fieldMessageType, uint64(m.Type))
	b = appendVarintField(b, fieldContentType, uint64(m.ContentType))
	if len(m.ContentBytes) > 0 {
		b = protowire.AppendTag(b, fieldContentBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, m.ContentBytes)
	}
	b = appendBoolField(b, fieldIsEdited, m.Edited)
	b = appendStringField(b, fieldTopic, m.Topic)
	b = appendVarintField(b, fieldRetryCount, uint64(m.RetryCount))
	for _, uid := range m.MentionUserIDs {
		b = protowire.AppendTag(b, fieldMentionUserIDs, protowire.BytesType)
		b = protowire.AppendString(b, uid)
	}
	if m.Reply != nil {
		b = appendMessageField(b, fieldReply, marshalReply(m.Reply))
	}
	b = appendContent(b, m.Content)
	return b
}

func appendContent(b []byte, c Content) []byte {
	switch v := c.(type) {
	case nil:
		return b
	case *TextContent:
		var sub []byte
		sub = appendStringField(sub, textFieldText, v.Text)
		return appendMessageField(b, fieldTextContent, sub)
	case *ImageContent:
		var sub []byte
		sub = appendStringField(sub, imageFieldURL, v.ImageURL)
		sub = appendStringField(sub, imageFieldThumbURL, v.ThumbURL)
		sub = appendVarintField(sub, imageFieldWidth, uint64(v.Width))
		sub = appendVarintField(sub, imageFieldHeight, uint64(v.Height))
		sub = appendVarintField(sub, imageFieldFileSize, uint64(v.FileSize))
		sub = appendStringField(sub, imageFieldLocalPath, v.LocalPath)
		sub = appendStringField(sub, imageFieldBlurHash, v.BlurHash)
		return appendMessageField(b, fieldImageContent, sub)
	case *VoiceContent:
		var sub []byte
		sub = appendStringField(sub, voiceFieldURL, v.VoiceURL)
		sub = appendVarintField(sub, voiceFieldDuration, uint64(v.Duration))
		sub = appendVarintField(sub, voiceFieldFileSize, uint64(v.FileSize))
		sub = appendStringField(sub, voiceFieldLocalPath, v.LocalPath)
		return appendMessageField(b, fieldVoiceContent, sub)
	case *VideoContent:
		var sub []byte
		sub = appendStringField(sub, videoFieldURL, v.VideoURL)
		sub = appendStringField(sub, videoFieldCoverURL, v.CoverURL)
		sub = appendVarintField(sub, videoFieldWidth, uint64(v.Width))
		sub = appendVarintField(sub, videoFieldHeight, uint64(v.Height))
		sub = appendVarintField(sub, videoFieldDuration, uint64(v.Duration))
		sub = appendVarintField(sub, videoFieldFileSize, uint64(v.FileSize))
		return appendMessageField(b, fieldVideoContent, sub)
	case *FileContent:
		var sub []byte
		sub = appendStringField(sub, fileFieldName, v.FileName)
		sub = appendStringField(sub, fileFieldURL, v.FileURL)
		sub = appendVarintField(sub, fileFieldFileSize, uint64(v.FileSize))
		sub = appendStringField(sub, fileFieldMimeType, v.MimeType)
		return appendMessageField(b, fieldFileContent, sub)
	case *StickerContent:
		var sub []byte
		sub = appendStringField(sub, stickerFieldID, v.StickerID)
		sub = appendStringField(sub, stickerFieldPackID, v.PackID)
		sub = appendStringField(sub, stickerFieldURL, v.URL)
		return appendMessageField(b, fieldStickerContent, sub)
	}
	return b
}

func marshalReply(r *ReplyInfo) []byte {
	var b []byte
	b = appendStringField(b, replyFieldMessageID, r.ReplyToMessageID)
	b = appendVarintField(b, replyFieldType, uint64(r.ReplyToType))
	b = appendStringField(b, replyFieldPreviewText, r.PreviewText)
	return b
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendMessageField(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}
