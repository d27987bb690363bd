package store

import (
	"database/sql"
	"time"
)

// UpsertUser inserts or updates a cached user profile.
func (db *DB) UpsertUser(u *User) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO users (uid, username, avatar, signature, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			username = excluded.username,
			avatar = excluded.avatar,
			signature = excluded.signature,
			updated_at = excluded.updated_at`,
		u.UID, u.Username, u.Avatar, u.Signature, now, now)
	return err
}

// GetUser returns a cached user profile by uid, or nil when absent.
func (db *DB) GetUser(uid string) (*User, error) {
	var u User
	err := db.QueryRow(`SELECT uid, username, avatar, signature, created_at, updated_at FROM users WHERE uid = ?`, uid).
		Scan(&u.UID, &u.Username, &u.Avatar, &u.Signature, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
