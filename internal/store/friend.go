package store

import (
	"database/sql"
	"fmt"
)

// ReplaceFriends clears the friends cache and bulk inserts the given entries
// in a single transaction. Each successful remote refresh fully replaces the
// cache; there is no incremental merge.
func (db *DB) ReplaceFriends(friends []Friend) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM friends`); err != nil {
		return fmt.Errorf("clear friends: %w", err)
	}
	for _, f := range friends {
		if _, err := tx.Exec(`
			INSERT INTO friends (friend_id, username, status, signature, avatar,
				relation_status, remark, create_time, update_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.FriendID, f.Username, f.Status, f.Signature, f.Avatar,
			f.RelationStatus, f.Remark, f.CreateTime, f.UpdateTime); err != nil {
			return fmt.Errorf("insert friend %q: %w", f.FriendID, err)
		}
	}
	return tx.Commit()
}

const selectFriendColumns = `id, friend_id, username, status, signature, avatar,
	relation_status, remark, create_time, update_time`

// ListFriends returns all cached friends ordered by username.
func (db *DB) ListFriends() ([]Friend, error) {
	rows, err := db.Query(`SELECT ` + selectFriendColumns + ` FROM friends ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var friends []Friend
	for rows.Next() {
		var f Friend
		if err := rows.Scan(&f.ID, &f.FriendID, &f.Username, &f.Status, &f.Signature, &f.Avatar,
			&f.RelationStatus, &f.Remark, &f.CreateTime, &f.UpdateTime); err != nil {
			return nil, err
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}

// GetFriend returns a cached friend by friend id, or nil when absent.
func (db *DB) GetFriend(friendID string) (*Friend, error) {
	var f Friend
	err := db.QueryRow(`SELECT `+selectFriendColumns+` FROM friends WHERE friend_id = ?`, friendID).
		Scan(&f.ID, &f.FriendID, &f.Username, &f.Status, &f.Signature, &f.Avatar,
			&f.RelationStatus, &f.Remark, &f.CreateTime, &f.UpdateTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// FriendCount returns the number of cached friends.
func (db *DB) FriendCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM friends`).Scan(&count)
	return count, err
}
