package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/stepwise/internal/storage"
)

// Store is a SQLite implementation of UserStore
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			tenant TEXT NOT NULL DEFAULT '',
			key_hash TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LookupUser(ctx context.Context, keyHash string) (*storage.User, error) {
	query := `SELECT id, name, tenant, key_hash, description, created_at
	          FROM users WHERE key_hash = ?`

	var u storage.User
	err := s.db.GetContext(ctx, &u, query, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return &u, nil
}

func (s *Store) PutUser(ctx context.Context, user *storage.User) error {
	if user.KeyHash == "" {
		return fmt.Errorf("user %d has no key hash", user.ID)
	}

	row := *user
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO users (id, name, tenant, key_hash, description, created_at)
	          VALUES (:id, :name, :tenant, :key_hash, :description, :created_at)
	          ON CONFLICT(id) DO UPDATE SET
	            name = excluded.name,
	            tenant = excluded.tenant,
	            key_hash = excluded.key_hash,
	            description = excluded.description`

	_, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to put user %d: %w", user.ID, err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
