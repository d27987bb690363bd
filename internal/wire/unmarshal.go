package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeError reports wire bytes that could not be parsed as an ImMessage.
// It is fatal to that single message only.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode wire message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Unmarshal parses protobuf wire bytes into an envelope. Unknown fields and
// fields with an unexpected wire type are skipped; structurally malformed
// input fails with a *DecodeError.
func Unmarshal(data []byte) (*Envelope, error) {
	m := &Envelope{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldMessageID && typ == protowire.BytesType:
			return consumeStringInto(b, &m.MessageID)
		case num == fieldClientMsgID && typ == protowire.BytesType:
			return consumeStringInto(b, &m.ClientMsgID)
		case num == fieldConversationID && typ == protowire.BytesType:
			return consumeStringInto(b, &m.ConversationID)
		case num == fieldSessionID && typ == protowire.BytesType:
			return consumeStringInto(b, &m.SessionID)
		case num == fieldConversationType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.ConversationType = ConversationType(v)
			return n, nil
		case num == fieldSenderID && typ == protowire.BytesType:
			return consumeStringInto(b, &m.SenderID)
		case num == fieldReceiverID && typ == protowire.BytesType:
			return consumeStringInto(b, &m.ReceiverID)
		case num == fieldTimestamp && typ == protowire.VarintType:
			return consumeInt64Into(b, &m.Timestamp)
		case num == fieldServerTimestamp && typ == protowire.VarintType:
			return consumeInt64Into(b, &m.ServerTimestamp)
		case num == fieldServerMsgSeq && typ == protowire.VarintType:
			return consumeInt64Into(b, &m.ServerMsgSeq)
		case num == fieldStatus && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Status = Status(v)
			return n, nil
		case num == fieldMessageType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Type = MessageType(v)
			return n, nil
		case num == fieldContentType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.ContentType = ContentType(v)
			return n, nil
		case num == fieldContentBytes && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				m.ContentBytes = append([]byte(nil), v...)
			}
			return n, nil
		case num == fieldIsEdited && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Edited = v != 0
			return n, nil
		case num == fieldTopic && typ == protowire.BytesType:
			return consumeStringInto(b, &m.Topic)
		case num == fieldRetryCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.RetryCount = int32(v)
			return n, nil
		case num == fieldMentionUserIDs && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n >= 0 {
				m.MentionUserIDs = append(m.MentionUserIDs, v)
			}
			return n, nil
		case num == fieldReply && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			reply, err := unmarshalReply(v)
			if err != nil {
				return n, err
			}
			m.Reply = reply
			return n, nil
		case num >= fieldTextContent && num <= fieldStickerContent && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			content, err := unmarshalContent(num, v)
			if err != nil {
				return n, err
			}
			m.Content = content
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return m, nil
}

func unmarshalReply(data []byte) (*ReplyInfo, error) {
	r := &ReplyInfo{}
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == replyFieldMessageID && typ == protowire.BytesType:
			return consumeStringInto(b, &r.ReplyToMessageID)
		case num == replyFieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.ReplyToType = MessageType(v)
			return n, nil
		case num == replyFieldPreviewText && typ == protowire.BytesType:
			return consumeStringInto(b, &r.PreviewText)
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalContent(num protowire.Number, data []byte) (Content, error) {
	switch num {
	case fieldTextContent:
		c := &TextContent{}
		err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num == textFieldText && typ == protowire.BytesType {
				return consumeStringInto(b, &c.Text)
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
		return c, err
	case fieldImageContent:
		c := &ImageContent{}
		err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == imageFieldURL && typ == protowire.BytesType:
				return consumeStringInto(b, &c.ImageURL)
			case num == imageFieldThumbURL && typ == protowire.BytesType:
				return consumeStringInto(b, &c.ThumbURL)
			case num == imageFieldWidth && typ == protowire.VarintType:
				return consumeInt32Into(b, &c.Width)
			case num == imageFieldHeight && typ == protowire.VarintType:
				return consumeInt32Into(b, &c.Height)
			case num == imageFieldFileSize && typ == protowire.VarintType:
				return consumeInt64Into(b, &c.FileSize)
			case num == imageFieldLocalPath && typ == protowire.BytesType:
				return consumeStringInto(b, &c.LocalPath)
			case num == imageFieldBlurHash && typ == protowire.BytesType:
				return consumeStringInto(b, &c.BlurHash)
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
		return c, err
	case fieldVoiceContent:
		c := &VoiceContent{}
		err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == voiceFieldURL && typ == protowire.BytesType:
				return consumeStringInto(b, &c.VoiceURL)
			case num == voiceFieldDuration && typ == protowire.VarintType:
				return consumeInt32Into(b, &c.Duration)
			case num == voiceFieldFileSize && typ == protowire.VarintType:
				return consumeInt64Into(b, &c.FileSize)
			case num == voiceFieldLocalPath && typ == protowire.BytesType:
				return consumeStringInto(b, &c.LocalPath)
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
		return c, err
	case fieldVideoContent:
		c := &VideoContent{}
		err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == videoFieldURL && typ == protowire.BytesType:
				return consumeStringInto(b, &c.VideoURL)
			case num == videoFieldCoverURL && typ == protowire.BytesType:
				return consumeStringInto(b, &c.CoverURL)
			case num == videoFieldWidth && typ == protowire.VarintType:
				return consumeInt32Into(b, &c.Width)
			case num == videoFieldHeight && typ == protowire.VarintType:
				return consumeInt32Into(b, &c.Height)
			case num == videoFieldDuration && typ == protowire.VarintType:
				return consumeInt32Into(b, &c.Duration)
			case num == videoFieldFileSize && typ == protowire.VarintType:
				return consumeInt64Into(b, &c.FileSize)
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
		return c, err
	case fieldFileContent:
		c := &FileContent{}
		err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == fileFieldName && typ == protowire.BytesType:
				return consumeStringInto(b, &c.FileName)
			case num == fileFieldURL && typ == protowire.BytesType:
				return consumeStringInto(b, &c.FileURL)
			case num == fileFieldFileSize && typ == protowire.VarintType:
				return consumeInt64Into(b, &c.FileSize)
			case num == fileFieldMimeType && typ == protowire.BytesType:
				return consumeStringInto(b, &c.MimeType)
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
		return c, err
	case fieldStickerContent:
		c := &StickerContent{}
		err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			switch {
			case num == stickerFieldID && typ == protowire.BytesType:
				return consumeStringInto(b, &c.StickerID)
			case num == stickerFieldPackID && typ == protowire.BytesType:
				return consumeStringInto(b, &c.PackID)
			case num == stickerFieldURL && typ == protowire.BytesType:
				return consumeStringInto(b, &c.URL)
			}
			return protowire.ConsumeFieldValue(num, typ, b), nil
		})
		return c, err
	}
	return nil, fmt.Errorf("unknown content field %d", num)
}

// walkFields iterates over a wire-encoded field sequence, calling handle for
// each field. handle returns the number of body bytes consumed; a negative
// count is a protowire parse error.
func walkFields(data []byte, handle func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		consumed, err := handle(num, typ, data)
		if err != nil {
			return err
		}
		if consumed < 0 {
			return protowire.ParseError(consumed)
		}
		data = data[consumed:]
	}
	return nil
}

func consumeStringInto(b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n, nil
}

func consumeInt64Into(b []byte, dst *int64) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int64(v)
	}
	return n, nil
}

func consumeInt32Into(b []byte, dst *int32) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = int32(v)
	}
	return n, nil
}
