package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/copydesk-io/copydesk/internal/models"
)

var ErrNotFound = errors.New("not found")

const accountColumns = `id, email, name, subscribed, token_hash, customer_id, subscription_id, status, created_at, updated_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Subscribed, &a.TokenHash,
		&a.CustomerID, &a.SubscriptionID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(a *models.Account) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	_, err := s.db.Exec(s.rebind(
		`INSERT INTO accounts (id, email, name, subscribed, token_hash, customer_id, subscription_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.Email, a.Name, a.Subscribed, a.TokenHash, a.CustomerID, a.SubscriptionID, a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

// UpdateAccount persists the mutable account columns. The bearer token hash
// is written as-is: callers must preserve an existing hash rather than
// regenerate it.
func (s *Store) UpdateAccount(a *models.Account) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(s.rebind(
		`UPDATE accounts SET name = ?, subscribed = ?, token_hash = ?, customer_id = ?, subscription_id = ?, status = ?, updated_at = ?
		 WHERE id = ?`),
		a.Name, a.Subscribed, a.TokenHash, a.CustomerID, a.SubscriptionID, a.Status, a.UpdatedAt, a.ID)
	return err
}

// GetAccountByEmail looks up an account by its identity key.
func (s *Store) GetAccountByEmail(email string) (*models.Account, error) {
	row := s.db.QueryRow(s.rebind(
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`), email)
	return scanAccount(row)
}

// GetAccountByCustomerID looks up an account by its billing customer ref.
func (s *Store) GetAccountByCustomerID(customerID string) (*models.Account, error) {
	row := s.db.QueryRow(s.rebind(
		`SELECT `+accountColumns+` FROM accounts WHERE customer_id = ?`), customerID)
	return scanAccount(row)
}

// CountAccountsByEmail is used by tests to assert provisioning idempotency.
func (s *Store) CountAccountsByEmail(email string) (int, error) {
	var n int
	err := s.db.QueryRow(s.rebind(
		`SELECT COUNT(*) FROM accounts WHERE email = ?`), email).Scan(&n)
	return n, err
}
