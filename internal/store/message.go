package store

import (
	"database/sql"
	"fmt"
)

// UpsertMessage inserts or updates a message (idempotent on client_id).
// A replayed row can refresh the server id, status and error but never
// forks a second message.
func (db *DB) UpsertMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (client_id, server_id, chat_id, from_uid, body, created_at, status, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			server_id = COALESCE(excluded.server_id, messages.server_id),
			status = excluded.status,
			last_error = excluded.last_error`,
		m.ClientID, nullable(m.ServerID), m.ChatID, m.FromUID, m.Text, m.CreatedAt, m.Status, m.LastError)
	return err
}

// InsertPendingMessage writes a fresh outbound message in pending state.
// Unlike UpsertMessage it fails on a duplicate client_id: client ids are
// generated once, at creation, and never reissued.
func (db *DB) InsertPendingMessage(m *Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (client_id, chat_id, from_uid, body, created_at, status)
		VALUES (?, ?, ?, ?, ?, 'pending')`,
		m.ClientID, m.ChatID, m.FromUID, m.Text, m.CreatedAt)
	return err
}

// MarkMessageSent promotes a message to sent with the remote-assigned server
// id. Valid from pending only; sent is terminal and failed requires a retry
// to re-enter pending first.
func (db *DB) MarkMessageSent(clientID, serverID string) error {
	return db.transition(clientID, StatusSent,
		`UPDATE messages SET status = 'sent', server_id = ?, last_error = ''
		 WHERE client_id = ? AND status = 'pending'`, serverID, clientID)
}

// MarkMessageFailed promotes a message to failed, keeping the remote error
// for diagnostics. Valid from pending only.
func (db *DB) MarkMessageFailed(clientID, errMsg string) error {
	return db.transition(clientID, StatusFailed,
		`UPDATE messages SET status = 'failed', last_error = ?
		 WHERE client_id = ? AND status = 'pending'`, errMsg, clientID)
}

// MarkMessageRetrying moves a failed message back to pending for a retry.
// The client id is reused so an earlier delivery that did reach the remote
// store is deduplicated, not duplicated.
func (db *DB) MarkMessageRetrying(clientID string) error {
	return db.transition(clientID, StatusPending,
		`UPDATE messages SET status = 'pending'
		 WHERE client_id = ? AND status = 'failed'`, clientID)
}

func (db *DB) transition(clientID, to, query string, args ...any) error {
	res, err := db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: message %q to %s", ErrBadTransition, clientID, to)
	}
	return nil
}

// GetMessage returns a message by client id, or nil if absent.
func (db *DB) GetMessage(clientID string) (*Message, error) {
	var m Message
	var serverID sql.NullString
	err := db.QueryRow(`
		SELECT client_id, server_id, chat_id, from_uid, body, created_at, status, last_error
		FROM messages WHERE client_id = ?`, clientID).
		Scan(&m.ClientID, &serverID, &m.ChatID, &m.FromUID, &m.Text, &m.CreatedAt, &m.Status, &m.LastError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.ServerID = serverID.String
	return &m, nil
}

// ListMessages returns a chat's messages ordered by created_at ascending.
func (db *DB) ListMessages(chatID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(`
		SELECT client_id, server_id, chat_id, from_uid, body, created_at, status, last_error
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var serverID sql.NullString
		if err := rows.Scan(&m.ClientID, &serverID, &m.ChatID, &m.FromUID, &m.Text, &m.CreatedAt, &m.Status, &m.LastError); err != nil {
			return nil, err
		}
		m.ServerID = serverID.String
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// PendingMessages returns messages still awaiting delivery, oldest first.
// Used by the outbox drain loop after a restart or reconnect.
func (db *DB) PendingMessages() ([]Message, error) {
	rows, err := db.Query(`
		SELECT client_id, server_id, chat_id, from_uid, body, created_at, status, last_error
		FROM messages WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		var serverID sql.NullString
		if err := rows.Scan(&m.ClientID, &serverID, &m.ChatID, &m.FromUID, &m.Text, &m.CreatedAt, &m.Status, &m.LastError); err != nil {
			return nil, err
		}
		m.ServerID = serverID.String
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
