package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReplaceGroups clears the groups cache and bulk inserts the given entries in
// a single transaction, mirroring the friends refresh policy.
func (db *DB) ReplaceGroups(groups []Group) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM "groups"`); err != nil {
		return fmt.Errorf("clear groups: %w", err)
	}
	for _, g := range groups {
		if _, err := tx.Exec(`
			INSERT INTO "groups" (group_id, group_name, created_at, updated_at)
			VALUES (?, ?, ?, ?)`,
			g.GroupID, g.GroupName, g.CreatedAt, g.UpdatedAt); err != nil {
			return fmt.Errorf("insert group %q: %w", g.GroupID, err)
		}
	}
	return tx.Commit()
}

// ListGroups returns all cached groups ordered by name.
func (db *DB) ListGroups() ([]Group, error) {
	rows, err := db.Query(`SELECT id, group_id, group_name, created_at, updated_at FROM "groups" ORDER BY group_name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.GroupID, &g.GroupName, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetGroup returns a cached group by group id, or nil when absent.
func (db *DB) GetGroup(groupID string) (*Group, error) {
	var g Group
	err := db.QueryRow(`SELECT id, group_id, group_name, created_at, updated_at FROM "groups" WHERE group_id = ?`, groupID).
		Scan(&g.ID, &g.GroupID, &g.GroupName, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// AddGroupMember records a user joining a group. Idempotent on (group, user).
func (db *DB) AddGroupMember(groupID, userID string) error {
	_, err := db.Exec(`
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT(group_id, user_id) DO NOTHING`,
		groupID, userID, time.Now().UnixMilli())
	return err
}

// RemoveGroupMember removes a membership. Idempotent.
func (db *DB) RemoveGroupMember(groupID, userID string) error {
	_, err := db.Exec(`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	return err
}

// ListGroupMembers returns the members of a group ordered by join time.
func (db *DB) ListGroupMembers(groupID string) ([]GroupMember, error) {
	rows, err := db.Query(`SELECT id, group_id, user_id, joined_at FROM group_members WHERE group_id = ? ORDER BY joined_at ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var members []GroupMember
	for rows.Next() {
		var m GroupMember
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
