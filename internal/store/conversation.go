package store

import (
	"database/sql"
	"fmt"
)

// Insert-or-increment in one statement so concurrent arrivals never lose
// unread increments. The name and type are only set on first insert.
const upsertConversationSQL = `
	INSERT INTO conversations (conversation_id, conversation_type, name,
		last_message, last_message_time, unread_count)
	VALUES (?, ?, ?, ?, ?, MAX(?, 0))
	ON CONFLICT(conversation_id) DO UPDATE SET
		unread_count = conversations.unread_count + ?,
		last_message = excluded.last_message,
		last_message_time = excluded.last_message_time`

// UpsertConversationOnMessage records a newly inserted message on its
// conversation summary: creates the row with unread_count = max(delta, 0) or
// atomically increments an existing one, always overwriting preview and
// timestamp with the most recently inserted message.
func (db *DB) UpsertConversationOnMessage(conversationID string, conversationType int, unreadDelta int, preview string, ts int64) error {
	name, err := db.conversationName(conversationID, conversationType)
	if err != nil {
		return err
	}
	_, err = db.Exec(upsertConversationSQL,
		conversationID, conversationType, name, preview, ts,
		max(unreadDelta, 0), unreadDelta)
	return err
}

// MarkConversationRead resets the unread count to zero. Idempotent.
func (db *DB) MarkConversationRead(conversationID string) error {
	_, err := db.Exec(`UPDATE conversations SET unread_count = 0 WHERE conversation_id = ?`, conversationID)
	return err
}

const selectConversationColumns = `conversation_id, conversation_type, name,
	last_message, last_message_time, unread_count, is_online`

// ListConversations returns all conversation summaries ordered by last
// message time descending.
func (db *DB) ListConversations() ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT ` + selectConversationColumns + `
		FROM conversations
		ORDER BY last_message_time DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ConversationID, &c.ConversationType, &c.Name,
			&c.LastMessage, &c.LastMessageTime, &c.UnreadCount, &c.Online); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation summary, or nil when absent.
func (db *DB) GetConversation(conversationID string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT `+selectConversationColumns+`
		FROM conversations WHERE conversation_id = ?`, conversationID).
		Scan(&c.ConversationID, &c.ConversationType, &c.Name,
			&c.LastMessage, &c.LastMessageTime, &c.UnreadCount, &c.Online)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteConversation removes a conversation and all of its messages. This is
// the only path that deletes message rows.
func (db *DB) DeleteConversation(conversationID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return tx.Commit()
}

// Display names for conversation types that have no directory entry to
// resolve against.
const (
	SystemNoticeName    = "System Notice"
	CustomerServiceName = "Customer Service"
	UnknownConvName     = "Unknown Conversation"
)

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// FriendName resolves the display name for a private conversation peer,
// falling back to a placeholder when the friend is not cached.
func (db *DB) FriendName(friendID string) (string, error) {
	return conversationNameTx(db.DB, friendID, ConvPrivate)
}

// GroupName resolves the display name for a group conversation.
func (db *DB) GroupName(groupID string) (string, error) {
	return conversationNameTx(db.DB, groupID, ConvGroup)
}

func (db *DB) conversationName(conversationID string, conversationType int) (string, error) {
	return conversationNameTx(db.DB, conversationID, conversationType)
}

// conversationNameTx resolves the display name for a new conversation row.
// Private chats look up the peer in the friends cache, group chats in the
// groups cache; a missing entry falls back to a deterministic placeholder
// embedding the conversation id.
func conversationNameTx(q rowQuerier, conversationID string, conversationType int) (string, error) {
	switch conversationType {
	case ConvPrivate:
		var name string
		err := q.QueryRow(`SELECT username FROM friends WHERE friend_id = ?`, conversationID).Scan(&name)
		if err == sql.ErrNoRows || (err == nil && name == "") {
			return "User" + conversationID, nil
		}
		if err != nil {
			return "", err
		}
		return name, nil
	case ConvGroup:
		var name string
		err := q.QueryRow(`SELECT group_name FROM "groups" WHERE group_id = ?`, conversationID).Scan(&name)
		if err == sql.ErrNoRows || (err == nil && name == "") {
			return "Group" + conversationID, nil
		}
		if err != nil {
			return "", err
		}
		return name, nil
	case ConvSystemNotice:
		return SystemNoticeName, nil
	case ConvCustomerService:
		return CustomerServiceName, nil
	default:
		return UnknownConvName, nil
	}
}
