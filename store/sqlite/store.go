// Package sqlite is the durable tier: a single-table SQLite database shared
// by every namespace. Values are stored as opaque framed entries keyed by
// their namespace-qualified storage key.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unkn0wn-root/tiercache"
)

type Store struct {
	db       *sql.DB
	maxBytes int64
}

var (
	_ tiercache.DurableStore = (*Store)(nil)
	_ tiercache.DurableSizer = (*Store)(nil)
)

// Open opens (creating if needed) the database at cfg.Path.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	dsn := "file:" + cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; keeps capacity checks and writes serialized
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, maxBytes: cfg.MaxBytes}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cache_entries (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		size  INTEGER NOT NULL
	) WITHOUT ROWID`)
	return err
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return v, true, nil
}

// Write upserts key. With a capacity configured, the size check and the
// write share one transaction.
func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if s.maxBytes > 0 {
		var used int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size), 0) FROM cache_entries WHERE key <> ?`, key).Scan(&used); err != nil {
			return fmt.Errorf("measure usage: %w", err)
		}
		if used+int64(len(value)) > s.maxBytes {
			return fmt.Errorf("%d+%d > %d bytes: %w", used, len(value), s.maxBytes, tiercache.ErrDurableFull)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, size) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, size = excluded.size`,
		key, value, len(value)); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (s *Store) ListKeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	lo, hi := prefixRange(prefix)
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM cache_entries WHERE key >= ? AND (? = '' OR key < ?) ORDER BY key`, lo, hi, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) BytesWithPrefix(ctx context.Context, prefix, exclude string) (int64, error) {
	lo, hi := prefixRange(prefix)
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM cache_entries
		 WHERE key >= ? AND (? = '' OR key < ?) AND key <> ?`, lo, hi, hi, exclude).Scan(&n)
	return n, err
}

// TotalBytes sums every stored value.
func (s *Store) TotalBytes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM cache_entries`).Scan(&n)
	return n, err
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

// prefixRange turns a prefix into a half-open key range [lo, hi) so lookups
// use the primary key index. hi is "" when no upper bound exists.
func prefixRange(prefix string) (lo, hi string) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return prefix, string(b[:i+1])
		}
	}
	return prefix, ""
}
