package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/keladiary/core/internal/infrastructure/database"
	"github.com/keladiary/core/internal/ports"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_items (
	item_key   TEXT PRIMARY KEY,
	item_value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// SQLKVStore keeps slots in the kv_items table of a SQLite or postgres database.
type SQLKVStore struct {
	db     *database.DB
	closed atomic.Bool
	now    func() time.Time
}

// NewSQLiteKVStore opens path and creates the schema if needed.
func NewSQLiteKVStore(path string) (*SQLKVStore, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	err = db.WithTransaction(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec(sqliteSchema)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}
	return &SQLKVStore{db: db, now: time.Now}, nil
}

// NewPostgresKVStore wraps an open postgres connection. The kv_items table is
// created by the migrations.
func NewPostgresKVStore(db *database.DB) *SQLKVStore {
	return &SQLKVStore{db: db, now: time.Now}
}

func (s *SQLKVStore) conn() (*sqlx.DB, error) {
	if s.closed.Load() {
		return nil, ports.ErrStoreClosed
	}
	return s.db.DB, nil
}

func (s *SQLKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}

	var value string
	err = db.GetContext(ctx, &value, db.Rebind(`SELECT item_value FROM kv_items WHERE item_key = ?`), key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (s *SQLKVStore) Set(ctx context.Context, key string, value []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO kv_items (item_key, item_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (item_key) DO UPDATE SET item_value = excluded.item_value, updated_at = excluded.updated_at`

	updatedAt := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := db.ExecContext(ctx, db.Rebind(query), key, string(value), updatedAt); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLKVStore) Delete(ctx context.Context, key string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM kv_items WHERE item_key = ?`), key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys filters in Go rather than with LIKE because storage keys contain
// underscores, which LIKE treats as wildcards.
func (s *SQLKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var all []string
	if err := db.SelectContext(ctx, &all, `SELECT item_key FROM kv_items ORDER BY item_key`); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Ping checks the underlying database.
func (s *SQLKVStore) Ping(ctx context.Context) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func (s *SQLKVStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
