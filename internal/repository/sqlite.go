package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/gatehouse/gatehouse/internal/model"
)

// SQLiteStore is the single-file credential store used for development and
// small deployments.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies the embedded schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer keeps concurrent inserts serialized on one handle.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the users table if it is absent.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	ddl, err := schemaFS.ReadFile("schema/sqlite.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateAccount inserts a new account. A duplicate identity yields
// ErrIdentityExists.
func (s *SQLiteStore) CreateAccount(ctx context.Context, identity, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, identity, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		newAccountID(), identity, passwordHash, toMillis(s.now()),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrIdentityExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByIdentity retrieves an account by exact identity match.
func (s *SQLiteStore) FindByIdentity(ctx context.Context, identity string) (*model.UserAccount, error) {
	var (
		user      model.UserAccount
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, identity, password_hash, created_at FROM users WHERE identity = ?`,
		identity,
	).Scan(&user.ID, &user.Identity, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by identity: %w", err)
	}
	user.CreatedAt = fromMillis(createdAt)
	return &user, nil
}

// UpdatePassword replaces the stored hash and reports whether a row changed.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, identity, newHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE identity = ?`,
		newHash, identity,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
