package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertChat inserts or updates a chat record by ID. The summary fields merge
// monotonically: an older snapshot can never roll last_updated backwards or
// replace a newer last-message preview. Equal timestamps take the incoming
// values, so a message landing in the same millisecond as chat creation
// still surfaces in the preview.
func (db *DB) UpsertChat(c *Chat) error {
	syncStatus := c.SyncStatus
	if syncStatus == "" {
		syncStatus = SyncPending
	}
	_, err := db.Exec(`
		INSERT INTO chats (id, pair_key, participant_a, participant_b, created_at, last_updated,
			last_message_text, last_message_from, last_message_at, sync_status, peer_username, peer_display_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_message_text = CASE WHEN excluded.last_updated >= chats.last_updated THEN excluded.last_message_text ELSE chats.last_message_text END,
			last_message_from = CASE WHEN excluded.last_updated >= chats.last_updated THEN excluded.last_message_from ELSE chats.last_message_from END,
			last_message_at = CASE WHEN excluded.last_updated >= chats.last_updated THEN excluded.last_message_at ELSE chats.last_message_at END,
			last_updated = MAX(chats.last_updated, excluded.last_updated),
			sync_status = excluded.sync_status,
			peer_username = CASE WHEN excluded.peer_username != '' THEN excluded.peer_username ELSE chats.peer_username END,
			peer_display_name = CASE WHEN excluded.peer_display_name != '' THEN excluded.peer_display_name ELSE chats.peer_display_name END`,
		c.ID, c.PairKey, c.Participants[0], c.Participants[1], c.CreatedAt, c.LastUpdated,
		c.LastMessageText, c.LastMessageFrom, c.LastMessageAt, syncStatus, c.PeerUsername, c.PeerDisplayName)
	return err
}

const chatColumns = `id, pair_key, participant_a, participant_b, created_at, last_updated,
	last_message_text, last_message_from, last_message_at, sync_status, peer_username, peer_display_name`

// ListChats returns chats ordered by last_updated descending.
func (db *DB) ListChats(limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT `+chatColumns+`
		FROM chats
		ORDER BY last_updated DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

// GetChat returns a single chat by ID, or nil if absent.
func (db *DB) GetChat(id string) (*Chat, error) {
	return db.getChatWhere(`id = ?`, id)
}

// GetChatByPairKey returns the chat for an unordered participant pair, or nil
// if absent. pair_key carries a UNIQUE constraint so at most one row matches.
func (db *DB) GetChatByPairKey(pairKey string) (*Chat, error) {
	return db.getChatWhere(`pair_key = ?`, pairKey)
}

func (db *DB) getChatWhere(where string, arg any) (*Chat, error) {
	row := db.QueryRow(`SELECT `+chatColumns+` FROM chats WHERE `+where, arg)
	c, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(r rowScanner) (*Chat, error) {
	var c Chat
	err := r.Scan(&c.ID, &c.PairKey, &c.Participants[0], &c.Participants[1], &c.CreatedAt, &c.LastUpdated,
		&c.LastMessageText, &c.LastMessageFrom, &c.LastMessageAt, &c.SyncStatus, &c.PeerUsername, &c.PeerDisplayName)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// BumpChatSummary atomically advances a chat's denormalized last-message
// snapshot. The update is guarded by last_updated so a concurrent
// remote-origin upsert and a local send cannot lose each other's writes.
// A message timestamped in the same millisecond as the current last_updated
// still applies; only strictly older writes are discarded.
func (db *DB) BumpChatSummary(chatID, text, fromUID string, at int64) error {
	_, err := db.Exec(`
		UPDATE chats SET
			last_message_text = ?,
			last_message_from = ?,
			last_message_at = ?,
			last_updated = ?
		WHERE id = ? AND last_updated <= ?`,
		text, fromUID, at, at, chatID, at)
	return err
}

// chatMutableColumns is the set of columns UpdateChatFields may touch.
var chatMutableColumns = map[string]bool{
	"sync_status":       true,
	"peer_username":     true,
	"peer_display_name": true,
}

// UpdateChatFields applies a partial update to a chat row and bumps
// last_updated. An empty field map is rejected with ErrNoFields.
func (db *DB) UpdateChatFields(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoFields
	}

	var sets []string
	var args []any
	for col, val := range fields {
		if !chatMutableColumns[col] {
			return fmt.Errorf("%w: chats.%s", ErrUnknownField, col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}
	sets = append(sets, "last_updated = MAX(last_updated, ?)")
	args = append(args, time.Now().UnixMilli(), id)

	res, err := db.Exec(`UPDATE chats SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: chat %q", ErrNotFound, id)
	}
	return nil
}

// ChatCount returns the total number of chats.
func (db *DB) ChatCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM chats`).Scan(&count)
	return count, err
}
