package database

import (
	"context"
	"path/filepath"
	"testing"

	"opsdash/config"
	"opsdash/docstore"
	"opsdash/docstore/memstore"
	"opsdash/docstore/sqlitestore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	store, err := Open(context.Background(), &config.Config{StoreDriver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, store)
}

func TestOpen_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsdash.db")
	store, err := Open(context.Background(), &config.Config{StoreDriver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	assert.IsType(t, &sqlitestore.Store{}, store)
	_, err = store.Append(context.Background(), "probe", docstore.Fields{"ok": true})
	assert.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "cassandra"})
	assert.Error(t, err)
}
