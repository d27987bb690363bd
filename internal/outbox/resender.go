// Package outbox drives delivery of locally composed messages that are still
// in SENDING status.
package outbox

import (
	"context"
	"time"

	"github.com/lythe-im/lythed/internal/bus"
	"github.com/lythe-im/lythed/internal/store"
	"github.com/lythe-im/lythed/internal/wire"
	"go.uber.org/zap"
)

// MessageSender delivers an encoded wire message to the server transport.
// Connection management, low-level retries, and backoff belong to the
// implementation behind this interface.
type MessageSender interface {
	Send(ctx context.Context, topic string, payload []byte) error
}

// SenderFunc adapts a function to the MessageSender interface.
type SenderFunc func(ctx context.Context, topic string, payload []byte) error

// Send implements MessageSender.
func (f SenderFunc) Send(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

// Resender periodically scans for pending messages, re-encodes them, and
// pushes them through the transport. The store never bumps retry counts on
// its own; this loop owns that accounting.
type Resender struct {
	db         *store.DB
	sender     MessageSender
	bus        *bus.Bus
	logger     *zap.Logger
	interval   time.Duration
	maxRetries int
	cancel     context.CancelFunc
}

// NewResender creates a resend loop. maxRetries bounds delivery attempts per
// message before it is marked FAILED.
func NewResender(db *store.DB, sender MessageSender, b *bus.Bus, logger *zap.Logger, interval time.Duration, maxRetries int) *Resender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Resender{
		db:         db,
		sender:     sender,
		bus:        b,
		logger:     logger,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

// Start begins polling for pending messages.
func (r *Resender) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
}

// Stop stops the loop.
func (r *Resender) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Resender) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending makes one delivery attempt for every pending message.
func (r *Resender) ProcessPending(ctx context.Context) {
	pending, err := r.db.PendingMessages()
	if err != nil {
		r.logger.Error("failed to read pending messages", zap.Error(err))
		return
	}

	for i := range pending {
		m := &pending[i]
		payload := wire.Encode(m)

		if err := r.sender.Send(ctx, m.Topic, payload); err != nil {
			r.recordFailure(m, err)
			continue
		}

		m.Status = store.StatusSent
		if err := r.db.UpdateMessage(m); err != nil {
			r.logger.Error("failed to mark message sent", zap.Error(err), zap.String("msg_id", m.MsgID))
			continue
		}
		r.logger.Info("message sent", zap.String("msg_id", m.MsgID))
		r.bus.Publish(bus.Event{
			Kind:      bus.KindMessageSendAck,
			Timestamp: time.Now(),
			Payload:   m.MsgID,
		})
	}
}

func (r *Resender) recordFailure(m *store.Message, sendErr error) {
	m.RetryCount++
	if m.RetryCount >= r.maxRetries {
		m.Status = store.StatusFailed
	}
	if err := r.db.UpdateMessage(m); err != nil {
		r.logger.Error("failed to record send failure", zap.Error(err), zap.String("msg_id", m.MsgID))
		return
	}
	r.logger.Warn("message send failed",
		zap.Error(sendErr),
		zap.String("msg_id", m.MsgID),
		zap.Int("retry_count", m.RetryCount))
	r.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSendFailed,
		Timestamp: time.Now(),
		Payload: map[string]string{
			"msg_id": m.MsgID,
			"error":  sendErr.Error(),
		},
	})
}
