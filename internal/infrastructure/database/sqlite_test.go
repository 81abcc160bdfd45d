package database

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("data/kela.db")
	assert.True(t, strings.HasPrefix(dsn, "file:///"), dsn)
	assert.Contains(t, dsn, "mode=rwc")
	assert.Contains(t, dsn, "busy_timeout")

	assert.Equal(t, ":memory:", sqliteDSN(":memory:"))
	assert.Equal(t, "file:x.db?mode=ro", sqliteDSN("file:x.db?mode=ro"))
}

func TestOpenSQLite(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "kela.db"))
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "sqlite", db.Driver())
	require.NoError(t, db.HealthCheck())

	_, err = NewMigrator(db, "file://migrations")
	assert.Error(t, err)
}

func TestWithTransaction(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.DB.Exec(`CREATE TABLE items (name TEXT NOT NULL)`)
	require.NoError(t, err)

	err = db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('kept')`)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('dropped')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var names []string
	require.NoError(t, db.DB.Select(&names, `SELECT name FROM items`))
	assert.Equal(t, []string{"kept"}, names)
}
