package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/astercade/chatrelay/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS identity (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	cid INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
)`

// IdentityStore implements store.IdentityStore on a local SQLite file.
type IdentityStore struct {
	db  *sql.DB
	ttl time.Duration
}

// New opens (or creates) the identity database at dbPath.
func New(dbPath string) (*IdentityStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &IdentityStore{db: db, ttl: store.IdentityTTL}, nil
}

// Load returns the stored cid if present and not expired.
func (s *IdentityStore) Load(ctx context.Context) (int64, bool, error) {
	var cid, expiresAt int64
	err := s.db.QueryRowContext(ctx, `SELECT cid, expires_at FROM identity WHERE id = 1`).
		Scan(&cid, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load identity: %w", err)
	}
	if time.Now().Unix() >= expiresAt {
		return 0, false, nil
	}
	return cid, true, nil
}

// Save stores the cid, replacing any previous identity and renewing expiry.
func (s *IdentityStore) Save(ctx context.Context, cid int64) error {
	expiresAt := time.Now().Add(s.ttl).Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity (id, cid, expires_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET cid = excluded.cid, expires_at = excluded.expires_at`,
		cid, expiresAt)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *IdentityStore) Close() error {
	return s.db.Close()
}
