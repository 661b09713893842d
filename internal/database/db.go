package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/copydesk-io/copydesk/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQL connection and knows which placeholder dialect to use.
type Store struct {
	db     *sql.DB
	dbType string
}

// Open initializes the database connection and schema.
func Open(cfg *config.Config) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)

	switch cfg.Database.Type {
	case "postgres":
		db, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	case "sqlite", "":
		dataDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %v", err)
		}
		dsn := cfg.Database.Path
		if cfg.Database.WALMode {
			dsn += "?_journal=WAL"
		}
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %v", err)
		}
		db.SetMaxOpenConns(1) // SQLite only supports one writer
		db.SetMaxIdleConns(1)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	// The database may still be starting; retry the first ping.
	var lastErr error
	for i := 0; i < cfg.Database.MaxRetries; i++ {
		if lastErr = db.Ping(); lastErr == nil {
			break
		}
		log.Printf("[DB] ping attempt %d/%d failed: %v", i+1, cfg.Database.MaxRetries, lastErr)
		time.Sleep(time.Duration(cfg.Database.RetryDelay) * time.Second)
	}
	if lastErr != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect after %d attempts: %v", cfg.Database.MaxRetries, lastErr)
	}

	dbType := cfg.Database.Type
	if dbType == "" {
		dbType = "sqlite"
	}

	if err := RunMigrations(db, dbType); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	log.Printf("[DB] initialized (%s)", dbType)
	return &Store{db: db, dbType: dbType}, nil
}

// OpenTest returns an in-memory sqlite store with the schema applied.
// Intended for tests only.
func OpenTest() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := RunMigrations(db, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, dbType: "sqlite"}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// rebind converts ?-style placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dbType != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
