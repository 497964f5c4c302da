package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfproof/keyframer/internal/config"
	"github.com/vfproof/keyframer/internal/storage/memory"
	pgstorage "github.com/vfproof/keyframer/internal/storage/postgres"
	sqlitestorage "github.com/vfproof/keyframer/internal/storage/sqlite"
)

func TestCreateStorageBackend(t *testing.T) {
	dir := t.TempDir()
	log := zerolog.Nop()

	tests := []struct {
		name     string
		cfg      config.StorageConfig
		wantType any
		wantErr  bool
	}{
		{"default", config.StorageConfig{}, &memory.Backend{}, false},
		{"memory", config.StorageConfig{Type: "memory", Memory: config.MemoryConfig{OutputDir: dir}}, &memory.Backend{}, false},
		{"sqlite", config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "k.db")}}, &sqlitestorage.Backend{}, false},
		{"postgres", config.StorageConfig{Type: "postgres"}, &pgstorage.Backend{}, false},
		{"unknown", config.StorageConfig{Type: "redis"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := createStorageBackend(tt.cfg, config.DBConfig{Host: "localhost"}, log)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, b)
		})
	}
}

func TestCreateStorageBackend_SqliteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "keyframer.db")
	b, err := createStorageBackend(config.StorageConfig{Type: "sqlite", SQLite: config.SQLiteConfig{Path: path}}, config.DBConfig{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	list, err := b.ListBookmarks()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestFallbackSqlitePath(t *testing.T) {
	got := fallbackSqlitePath(filepath.Join("data", "keyframer.db"))
	assert.Equal(t, "data", filepath.Dir(got))
	assert.True(t, strings.HasPrefix(filepath.Base(got), "keyframer_fallback_"), got)
	assert.Equal(t, ".db", filepath.Ext(got))
}
