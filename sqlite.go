//go:build sqlite
// +build sqlite

package tierq

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteUpdateStore implements the UpdateStore interface using SQLite.
// It requires CGO and the "sqlite" build tag; hosts that cannot use CGO
// should use BadgerUpdateStore instead.
type SQLiteUpdateStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteUpdateStore creates a new SQLite store at the given path,
// creating the schema if needed.
func NewSQLiteUpdateStore(dbPath string, logger *slog.Logger) (*SQLiteUpdateStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS needs_update (
		region    TEXT NOT NULL,
		depth     INTEGER NOT NULL,
		marked_at TIMESTAMP NOT NULL,
		PRIMARY KEY (region, depth)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteUpdateStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteUpdateStore) Close() error {
	return s.db.Close()
}

// MarkNeedsUpdate flags the model identified by key.
func (s *SQLiteUpdateStore) MarkNeedsUpdate(ctx context.Context, key RegionKey) error {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	s.logger.Debug("MarkNeedsUpdate", "key", key)
	// INSERT OR IGNORE keeps the original mark time on re-mark.
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO needs_update (region, depth, marked_at) VALUES (?, ?, ?)`,
		key.Region, key.Depth, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store flag: %w", err)
	}
	return nil
}

// ClearNeedsUpdate removes the flag for key.
func (s *SQLiteUpdateStore) ClearNeedsUpdate(ctx context.Context, key RegionKey) error {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	s.logger.Debug("ClearNeedsUpdate", "key", key)
	_, err = s.db.ExecContext(ctx,
		`DELETE FROM needs_update WHERE region = ? AND depth = ?`,
		key.Region, key.Depth)
	if err != nil {
		return fmt.Errorf("failed to delete flag: %w", err)
	}
	return nil
}

// NeedsUpdate reports whether the flag for key is set.
func (s *SQLiteUpdateStore) NeedsUpdate(ctx context.Context, key RegionKey) (bool, error) {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return false, err
	}
	if err := key.Validate(); err != nil {
		return false, err
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM needs_update WHERE region = ? AND depth = ?`,
		key.Region, key.Depth).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to read flag: %w", err)
	}
	return count > 0, nil
}

// ListNeedsUpdate returns every flagged key, finest depth first.
func (s *SQLiteUpdateStore) ListNeedsUpdate(ctx context.Context) ([]RegionKey, error) {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT region, depth FROM needs_update ORDER BY depth DESC, region ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	defer rows.Close()

	keys := make([]RegionKey, 0)
	for rows.Next() {
		var key RegionKey
		if err := rows.Scan(&key.Region, &key.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan flag: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flags: %w", err)
	}

	s.logger.Debug("ListNeedsUpdate", "count", len(keys))
	return keys, nil
}
