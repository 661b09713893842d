package database

import (
	"time"

	"github.com/copydesk-io/copydesk/internal/models"
)

// AppendTurn inserts one conversation turn. Turns are append-only.
func (s *Store) AppendTurn(accountID string, role models.TurnRole, content string) error {
	_, err := s.db.Exec(s.rebind(
		`INSERT INTO conversation_turns (account_id, role, content, created_at) VALUES (?, ?, ?, ?)`),
		accountID, role, content, time.Now().UTC())
	return err
}

// RecentTurns returns the most recent limit turns for an account in
// chronological order.
func (s *Store) RecentTurns(accountID string, limit int) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(s.rebind(
		`SELECT id, account_id, role, content, created_at
		 FROM conversation_turns WHERE account_id = ?
		 ORDER BY id DESC LIMIT ?`), accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to chronological for prompt assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// AllTurns returns an account's complete transcript, oldest first.
func (s *Store) AllTurns(accountID string) ([]models.ConversationTurn, error) {
	rows, err := s.db.Query(s.rebind(
		`SELECT id, account_id, role, content, created_at
		 FROM conversation_turns WHERE account_id = ? ORDER BY id ASC`), accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// CountTurns reports the number of turns logged for an account.
func (s *Store) CountTurns(accountID string) (int, error) {
	var n int
	err := s.db.QueryRow(s.rebind(
		`SELECT COUNT(*) FROM conversation_turns WHERE account_id = ?`), accountID).Scan(&n)
	return n, err
}
