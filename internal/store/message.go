package store

import (
	"database/sql"
	"fmt"
	"time"
)

const insertMessageSQL = `
	INSERT INTO messages (msg_id, conversation_id, conversation_type, from_uid, to_uid,
		msg_type, content, topic, timestamp, server_msg_seq, is_edited, status,
		file_path, file_size, duration, is_read, is_self, retry_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(msg_id) DO NOTHING`

func insertMessageArgs(m *Message) []any {
	return []any{
		m.MsgID, m.ConversationID, m.ConversationType, m.FromUID, m.ToUID,
		m.MsgType, m.Content, m.Topic, m.Timestamp, m.ServerMsgSeq, m.Edited, m.Status,
		m.FilePath, m.FileSize, m.Duration, m.Read, m.Self, m.RetryCount,
		time.Now().UnixMilli(),
	}
}

// InsertMessage inserts a message, idempotent on msg_id. A duplicate id is
// silently ignored and the first write's content is retained. Returns true
// when a new row was inserted.
func (db *DB) InsertMessage(m *Message) (bool, error) {
	res, err := db.Exec(insertMessageSQL, insertMessageArgs(m)...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AppendMessage inserts a message and updates its conversation summary in a
// single transaction: either both persist or neither does. A duplicate msg_id
// leaves both tables untouched. unreadDelta is applied to the conversation's
// unread count; when the conversation row does not exist yet it is created
// with the name resolved from the friend/group cache. Returns true when the
// message was newly inserted.
func (db *DB) AppendMessage(m *Message, unreadDelta int) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(insertMessageSQL, insertMessageArgs(m)...)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Duplicate: no ledger update either.
		return false, tx.Commit()
	}

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM conversations WHERE conversation_id = ?`,
		m.ConversationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup conversation: %w", err)
	}

	name := ""
	if exists == 0 {
		name, err = conversationNameTx(tx, m.ConversationID, m.ConversationType)
		if err != nil {
			return false, fmt.Errorf("resolve conversation name: %w", err)
		}
	}

	if _, err := tx.Exec(upsertConversationSQL,
		m.ConversationID, m.ConversationType, name, m.Content, m.Timestamp,
		max(unreadDelta, 0), unreadDelta); err != nil {
		return false, fmt.Errorf("upsert conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// UpdateMessage replaces the full row identified by msg_id. Used for status
// transitions and retry accounting.
func (db *DB) UpdateMessage(m *Message) error {
	_, err := db.Exec(`
		UPDATE messages SET conversation_id = ?, conversation_type = ?, from_uid = ?,
			to_uid = ?, msg_type = ?, content = ?, topic = ?, timestamp = ?,
			server_msg_seq = ?, is_edited = ?, status = ?, file_path = ?, file_size = ?,
			duration = ?, is_read = ?, is_self = ?, retry_count = ?
		WHERE msg_id = ?`,
		m.ConversationID, m.ConversationType, m.FromUID,
		m.ToUID, m.MsgType, m.Content, m.Topic, m.Timestamp,
		m.ServerMsgSeq, m.Edited, m.Status, m.FilePath, m.FileSize,
		m.Duration, m.Read, m.Self, m.RetryCount,
		m.MsgID)
	return err
}

const selectMessageColumns = `msg_id, conversation_id, conversation_type, from_uid, to_uid,
	msg_type, content, topic, timestamp, server_msg_seq, is_edited, status,
	file_path, file_size, duration, is_read, is_self, retry_count`

func scanMessage(rows *sql.Rows) (Message, error) {
	var m Message
	err := rows.Scan(&m.MsgID, &m.ConversationID, &m.ConversationType, &m.FromUID, &m.ToUID,
		&m.MsgType, &m.Content, &m.Topic, &m.Timestamp, &m.ServerMsgSeq, &m.Edited, &m.Status,
		&m.FilePath, &m.FileSize, &m.Duration, &m.Read, &m.Self, &m.RetryCount)
	return m, err
}

// ListMessagesBefore returns up to limit messages of a conversation strictly
// older than beforeTs, newest first. Passing the oldest returned timestamp as
// the next beforeTs pages backward without gaps or repeats.
func (db *DB) ListMessagesBefore(conversationID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT `+selectMessageColumns+`
		FROM messages
		WHERE conversation_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// PendingMessages returns messages still in SENDING status, oldest first.
// The resend loop drives these back through the transport.
func (db *DB) PendingMessages() ([]Message, error) {
	rows, err := db.Query(`
		SELECT `+selectMessageColumns+`
		FROM messages WHERE status = ? ORDER BY timestamp ASC`, StatusSending)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetMessage returns a single message by id, or nil when absent.
func (db *DB) GetMessage(msgID string) (*Message, error) {
	rows, err := db.Query(`SELECT `+selectMessageColumns+` FROM messages WHERE msg_id = ?`, msgID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, rows.Err()
	}
	m, err := scanMessage(rows)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
