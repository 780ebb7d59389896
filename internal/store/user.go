package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertUser inserts or updates a user profile by UID.
func (db *DB) UpsertUser(u *User) error {
	now := time.Now().UnixMilli()
	createdAt := u.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}
	_, err := db.Exec(`
		INSERT INTO users (uid, username, display_name, phone, email, photo_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			phone = excluded.phone,
			email = excluded.email,
			photo_url = excluded.photo_url,
			updated_at = excluded.updated_at`,
		u.UID, u.Username, u.DisplayName, u.Phone, u.Email, u.PhotoURL, createdAt, now)
	return err
}

// GetUser returns a user by UID, or nil if absent.
func (db *DB) GetUser(uid string) (*User, error) {
	return db.scanUser(db.QueryRow(`
		SELECT uid, username, display_name, phone, email, photo_url, created_at, updated_at
		FROM users WHERE uid = ?`, uid))
}

// GetUserByUsername returns a user by username, or nil if absent. Usernames
// are for human-facing lookup only; UID remains the identity key.
func (db *DB) GetUserByUsername(username string) (*User, error) {
	return db.scanUser(db.QueryRow(`
		SELECT uid, username, display_name, phone, email, photo_url, created_at, updated_at
		FROM users WHERE username = ?`, username))
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.UID, &u.Username, &u.DisplayName, &u.Phone, &u.Email, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// userColumns is the set of columns UpdateUserFields may touch. The uid and
// created_at columns are immutable; updated_at is bumped automatically.
var userColumns = map[string]bool{
	"username":     true,
	"display_name": true,
	"phone":        true,
	"email":        true,
	"photo_url":    true,
}

// UpdateUserFields applies a partial update to a user row and bumps
// updated_at. An empty field map is rejected with ErrNoFields.
func (db *DB) UpdateUserFields(uid string, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoFields
	}

	var sets []string
	var args []any
	for col, val := range fields {
		if !userColumns[col] {
			return fmt.Errorf("%w: users.%s", ErrUnknownField, col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), uid)

	res, err := db.Exec(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE uid = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: user %q", ErrNotFound, uid)
	}
	return nil
}
