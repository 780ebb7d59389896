package store

import (
	"database/sql"
	"time"
)

// UpsertContact inserts or updates a contact. Re-adding an existing contact
// replaces its denormalized metadata, never its identity or added_at.
func (db *DB) UpsertContact(c *Contact) error {
	addedAt := c.AddedAt
	if addedAt == 0 {
		addedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO contacts (uid, contact_uid, contact_username, contact_display_name, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uid, contact_uid) DO UPDATE SET
			contact_username = CASE WHEN excluded.contact_username != '' THEN excluded.contact_username ELSE contacts.contact_username END,
			contact_display_name = CASE WHEN excluded.contact_display_name != '' THEN excluded.contact_display_name ELSE contacts.contact_display_name END`,
		c.UID, c.ContactUID, c.ContactUsername, c.ContactDisplayName, addedAt)
	return err
}

// GetContact returns one contact-list entry, or nil if absent.
func (db *DB) GetContact(uid, contactUID string) (*Contact, error) {
	var c Contact
	err := db.QueryRow(`
		SELECT uid, contact_uid, contact_username, contact_display_name, added_at
		FROM contacts WHERE uid = ? AND contact_uid = ?`, uid, contactUID).
		Scan(&c.UID, &c.ContactUID, &c.ContactUsername, &c.ContactDisplayName, &c.AddedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns a user's contacts, most recently added first.
func (db *DB) ListContacts(uid string) ([]Contact, error) {
	rows, err := db.Query(`
		SELECT uid, contact_uid, contact_username, contact_display_name, added_at
		FROM contacts WHERE uid = ? ORDER BY added_at DESC`, uid)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.UID, &c.ContactUID, &c.ContactUsername, &c.ContactDisplayName, &c.AddedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// DeleteContact removes a contact-list entry. Chats and messages are never
// deleted with it.
func (db *DB) DeleteContact(uid, contactUID string) error {
	_, err := db.Exec(`DELETE FROM contacts WHERE uid = ? AND contact_uid = ?`, uid, contactUID)
	return err
}
