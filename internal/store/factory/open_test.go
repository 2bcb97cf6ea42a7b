package factory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/digital-twin/backend/internal/config"
	"github.com/zhouzirui/digital-twin/backend/internal/store/file"
	"github.com/zhouzirui/digital-twin/backend/internal/store/memory"
	"github.com/zhouzirui/digital-twin/backend/internal/store/sqlite"
)

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.StoreConfig{Backend: config.StoreFile, MemoryDir: dir, Format: "yaml"})
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, s)

	s, err = Open(ctx, config.StoreConfig{Backend: config.StoreSQLite, SQLitePath: filepath.Join(dir, "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, config.StoreConfig{Backend: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestOpenFailureReturnsNilStore(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cases := map[string]config.StoreConfig{
		"file":     {Backend: config.StoreFile, MemoryDir: filepath.Join(blocker, "memory"), Format: "json"},
		"sqlite":   {Backend: config.StoreSQLite, SQLitePath: filepath.Join(blocker, "sub", "c.db")},
		"postgres": {Backend: config.StorePostgres, DatabaseURL: "postgres://twin@localhost:notaport/twin"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := Open(ctx, cfg)
			require.Error(t, err)
			assert.True(t, s == nil, "expected nil interface, got %#v", s)
		})
	}
}
