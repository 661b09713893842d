package database

import (
	"strings"
	"time"
)

// IsEventProcessed reports whether a billing event id has been recorded.
func (s *Store) IsEventProcessed(eventID string) (bool, error) {
	var n int
	err := s.db.QueryRow(s.rebind(
		`SELECT COUNT(*) FROM billing_events WHERE id = ?`), eventID).Scan(&n)
	return n > 0, err
}

// MarkEventProcessed records a billing event id. Returns false if the event
// was already recorded, which callers treat as "skip, already applied".
// The primary-key constraint is what makes at-least-once delivery safe.
func (s *Store) MarkEventProcessed(eventID, eventType string) (bool, error) {
	_, err := s.db.Exec(s.rebind(
		`INSERT INTO billing_events (id, event_type, processed_at) VALUES (?, ?, ?)`),
		eventID, eventType, time.Now().UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isDuplicateKey detects a primary-key violation on either driver without
// importing driver-specific error types.
func isDuplicateKey(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
