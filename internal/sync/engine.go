// Package sync coordinates message ingestion and remote cache refreshes
// against the local store.
package sync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lythe-im/lythed/internal/bus"
	"github.com/lythe-im/lythed/internal/store"
	"github.com/lythe-im/lythed/internal/wire"
	"go.uber.org/zap"
)

// Engine handles idempotent ingestion of messages and keeps the conversation
// ledger consistent with message writes.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// NewEngine creates a new ingestion engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, bus: b, logger: logger}
}

// Ingest stores a message and updates its conversation summary in one
// transaction. A duplicate message id is a no-op, including on the ledger.
// The unread count grows by one only for messages not authored or already
// read by the local user.
func (e *Engine) Ingest(m *store.Message) error {
	delta := 0
	if !m.Self && !m.Read {
		delta = 1
	}

	inserted, err := e.db.AppendMessage(m, delta)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if !inserted {
		e.logger.Debug("duplicate message ignored", zap.String("msg_id", m.MsgID))
		return nil
	}

	now := time.Now()
	e.bus.Publish(bus.Event{
		Kind:      bus.KindMessageIngested,
		Timestamp: now,
		Payload: map[string]string{
			"conversation_id": m.ConversationID,
			"msg_id":          m.MsgID,
		},
	})
	e.bus.Publish(bus.Event{
		Kind:      bus.KindConversationUpdated,
		Timestamp: now,
		Payload:   m.ConversationID,
	})
	return nil
}

// IngestWire decodes an inbound wire message and ingests it. A decode
// failure is fatal to that single message only; the returned error lets the
// caller log and move on.
func (e *Engine) IngestWire(data []byte) (*store.Message, error) {
	m, err := wire.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := e.Ingest(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ComposeText creates an outgoing text message in SENDING status and stores
// it through the transactional ingest path. The resend loop picks it up for
// delivery.
func (e *Engine) ComposeText(conversationID string, conversationType int, fromUID, toUID, text string) (*store.Message, error) {
	m := &store.Message{
		MsgID:            uuid.NewString(),
		ConversationID:   conversationID,
		ConversationType: conversationType,
		FromUID:          fromUID,
		ToUID:            toUID,
		MsgType:          store.TypeText,
		Content:          text,
		Timestamp:        time.Now().UnixMilli(),
		Status:           store.StatusSending,
		Read:             true,
		Self:             true,
	}
	if err := e.Ingest(m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkRead resets a conversation's unread count to zero. Idempotent.
func (e *Engine) MarkRead(conversationID string) error {
	if err := e.db.MarkConversationRead(conversationID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	e.bus.Publish(bus.Event{
		Kind:      bus.KindConversationRead,
		Timestamp: time.Now(),
		Payload:   conversationID,
	})
	return nil
}

// Conversations returns all conversation summaries, most recent first.
func (e *Engine) Conversations() ([]store.Conversation, error) {
	return e.db.ListConversations()
}

// MessagesBefore pages backward through a conversation's history.
func (e *Engine) MessagesBefore(conversationID string, beforeTs int64, limit int) ([]store.Message, error) {
	return e.db.ListMessagesBefore(conversationID, beforeTs, limit)
}
