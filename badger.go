package tierq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerUpdateStore implements the UpdateStore interface using BadgerDB.
// It keeps needs-update flags across process restarts without requiring
// CGO, which makes it the default persistent store for on-device hosts.
type BadgerUpdateStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// needs-update flag keys: "flag:<region>@<depth>"
const keyPrefixFlag = "flag:"

func flagKey(key RegionKey) []byte {
	return []byte(keyPrefixFlag + key.Key())
}

// parseFlagKey reverses flagKey.
func parseFlagKey(raw []byte) (RegionKey, error) {
	s := strings.TrimPrefix(string(raw), keyPrefixFlag)
	sep := strings.LastIndex(s, "@")
	if sep < 0 {
		return RegionKey{}, fmt.Errorf("malformed flag key: %q", raw)
	}
	depth, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return RegionKey{}, fmt.Errorf("malformed flag key depth: %q", raw)
	}
	return RegionKey{Region: s[:sep], Depth: depth}, nil
}

// flagRecord is the stored value for a needs-update flag.
type flagRecord struct {
	MarkedAt time.Time `json:"marked_at"`
}

// NewBadgerUpdateStore creates a new BadgerDB store.
// The database directory will be created if it doesn't exist.
// dbPath is the path to the BadgerDB database directory.
// logger is the logger instance for logging store operations.
// Note: BadgerDB uses its own logger interface, so its internal logging is disabled.
func NewBadgerUpdateStore(dbPath string, logger *slog.Logger) (*BadgerUpdateStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Disable BadgerDB's internal logging (uses different logger interface)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &BadgerUpdateStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection.
func (s *BadgerUpdateStore) Close() error {
	return s.db.Close()
}

// MarkNeedsUpdate flags the model identified by key.
func (s *BadgerUpdateStore) MarkNeedsUpdate(ctx context.Context, key RegionKey) error {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	s.logger.Debug("MarkNeedsUpdate", "key", key)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := txn.Get(flagKey(key)); err == nil {
			// Already flagged; keep the original mark time.
			return nil
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("failed to check existing flag: %w", err)
		}

		value, err := json.Marshal(flagRecord{MarkedAt: time.Now()})
		if err != nil {
			return fmt.Errorf("failed to marshal flag: %w", err)
		}
		if err := txn.Set(flagKey(key), value); err != nil {
			return fmt.Errorf("failed to store flag: %w", err)
		}
		return nil
	})
}

// ClearNeedsUpdate removes the flag for key.
func (s *BadgerUpdateStore) ClearNeedsUpdate(ctx context.Context, key RegionKey) error {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return err
	}
	if err := key.Validate(); err != nil {
		return err
	}

	s.logger.Debug("ClearNeedsUpdate", "key", key)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := txn.Delete(flagKey(key)); err != nil {
			return fmt.Errorf("failed to delete flag: %w", err)
		}
		return nil
	})
}

// NeedsUpdate reports whether the flag for key is set.
func (s *BadgerUpdateStore) NeedsUpdate(ctx context.Context, key RegionKey) (bool, error) {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return false, err
	}
	if err := key.Validate(); err != nil {
		return false, err
	}

	exists := false
	err = s.db.View(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch _, err := txn.Get(flagKey(key)); err {
		case nil:
			exists = true
			return nil
		case badger.ErrKeyNotFound:
			return nil
		default:
			return fmt.Errorf("failed to read flag: %w", err)
		}
	})
	return exists, err
}

// ListNeedsUpdate returns every flagged key, finest depth first.
func (s *BadgerUpdateStore) ListNeedsUpdate(ctx context.Context) ([]RegionKey, error) {
	var err error
	if ctx, err = normalizeContext(ctx); err != nil {
		return nil, err
	}

	keys := make([]RegionKey, 0)
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // keys are enough
		opts.Prefix = []byte(keyPrefixFlag)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := parseFlagKey(it.Item().Key())
			if err != nil {
				s.logger.Warn("ListNeedsUpdate: skipping malformed key", "error", err)
				continue
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortRegionKeys(keys)
	s.logger.Debug("ListNeedsUpdate", "count", len(keys))
	return keys, nil
}
