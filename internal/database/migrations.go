package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all database migrations
func GetMigrations(dbType string) []Migration {
	if dbType == "postgres" {
		return getPostgresMigrations()
	}
	return getSQLiteMigrations()
}

func getPostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create accounts table",
			SQL: `CREATE TABLE IF NOT EXISTS accounts (
				id UUID PRIMARY KEY,
				email VARCHAR(255) UNIQUE NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				subscribed BOOLEAN NOT NULL DEFAULT FALSE,
				token_hash VARCHAR(255) NOT NULL DEFAULT '',
				customer_id VARCHAR(255) NOT NULL DEFAULT '',
				subscription_id VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
			CREATE INDEX IF NOT EXISTS idx_accounts_customer ON accounts(customer_id)`,
		},
		{
			Version:     2,
			Description: "Create user_states table",
			SQL: `CREATE TABLE IF NOT EXISTS user_states (
				account_id UUID PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
				audience JSONB NOT NULL DEFAULT '{}',
				self_profile TEXT NOT NULL DEFAULT '',
				preferences JSONB NOT NULL DEFAULT '{}',
				pending JSONB,
				banned_words JSONB NOT NULL DEFAULT '[]',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     3,
			Description: "Create voice_profiles table",
			SQL: `CREATE TABLE IF NOT EXISTS voice_profiles (
				account_id UUID PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
				style_brief TEXT NOT NULL DEFAULT '',
				tone_notes TEXT NOT NULL DEFAULT '',
				sample_count INTEGER NOT NULL DEFAULT 0,
				last_learned TIMESTAMP WITH TIME ZONE
			)`,
		},
		{
			Version:     4,
			Description: "Create conversation_turns table",
			SQL: `CREATE TABLE IF NOT EXISTS conversation_turns (
				id BIGSERIAL PRIMARY KEY,
				account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				role VARCHAR(16) NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_turns_account ON conversation_turns(account_id, id)`,
		},
		{
			Version:     5,
			Description: "Create billing_events table",
			SQL: `CREATE TABLE IF NOT EXISTS billing_events (
				id VARCHAR(255) PRIMARY KEY,
				event_type VARCHAR(64) NOT NULL,
				processed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
	}
}

func getSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create accounts table",
			SQL: `CREATE TABLE IF NOT EXISTS accounts (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				subscribed INTEGER NOT NULL DEFAULT 0,
				token_hash TEXT NOT NULL DEFAULT '',
				customer_id TEXT NOT NULL DEFAULT '',
				subscription_id TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
			CREATE INDEX IF NOT EXISTS idx_accounts_customer ON accounts(customer_id)`,
		},
		{
			Version:     2,
			Description: "Create user_states table",
			SQL: `CREATE TABLE IF NOT EXISTS user_states (
				account_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
				audience TEXT NOT NULL DEFAULT '{}',
				self_profile TEXT NOT NULL DEFAULT '',
				preferences TEXT NOT NULL DEFAULT '{}',
				pending TEXT,
				banned_words TEXT NOT NULL DEFAULT '[]',
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		{
			Version:     3,
			Description: "Create voice_profiles table",
			SQL: `CREATE TABLE IF NOT EXISTS voice_profiles (
				account_id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
				style_brief TEXT NOT NULL DEFAULT '',
				tone_notes TEXT NOT NULL DEFAULT '',
				sample_count INTEGER NOT NULL DEFAULT 0,
				last_learned DATETIME
			)`,
		},
		{
			Version:     4,
			Description: "Create conversation_turns table",
			SQL: `CREATE TABLE IF NOT EXISTS conversation_turns (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_turns_account ON conversation_turns(account_id, id)`,
		},
		{
			Version:     5,
			Description: "Create billing_events table",
			SQL: `CREATE TABLE IF NOT EXISTS billing_events (
				id TEXT PRIMARY KEY,
				event_type TEXT NOT NULL,
				processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	}
}

// createMigrationsTable creates the migrations tracking table
func createMigrationsTable(db *sql.DB, dbType string) error {
	var query string
	if dbType == "postgres" {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	} else {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	}

	_, err := db.Exec(query)
	return err
}

// getAppliedMigrations returns the list of applied migration versions
func getAppliedMigrations(db *sql.DB) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return applied, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return applied, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// recordMigration records that a migration has been applied
func recordMigration(db *sql.DB, dbType string, version int) error {
	var query string
	if dbType == "postgres" {
		query = "INSERT INTO schema_migrations (version) VALUES ($1)"
	} else {
		query = "INSERT INTO schema_migrations (version) VALUES (?)"
	}
	_, err := db.Exec(query, version)
	return err
}

// RunMigrations runs all pending migrations
func RunMigrations(db *sql.DB, dbType string) error {
	if err := createMigrationsTable(db, dbType); err != nil {
		return fmt.Errorf("failed to create migrations table: %v", err)
	}

	applied, err := getAppliedMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %v", err)
	}

	for _, migration := range GetMigrations(dbType) {
		if applied[migration.Version] {
			continue
		}

		log.Printf("[DB] applying migration %d: %s", migration.Version, migration.Description)

		// Split SQL by semicolon and execute each statement
		for _, stmt := range strings.Split(migration.SQL, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to apply migration %d: %v", migration.Version, err)
			}
		}

		if err := recordMigration(db, dbType, migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %v", migration.Version, err)
		}
	}

	return nil
}
