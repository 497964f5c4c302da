// Package sqlitestorage implements the storage.Backend interface on a
// SQLite file. It wraps the GORM backend via composition; the only
// SQLite-specific concern is opening the file.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vfproof/keyframer/internal/config"
	"github.com/vfproof/keyframer/internal/database"
	gormstorage "github.com/vfproof/keyframer/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg config.SQLiteConfig
	log zerolog.Logger
}

// New creates a new SQLite storage backend. The file is opened by Init.
func New(cfg config.SQLiteConfig, log zerolog.Logger) *Backend {
	return &Backend{cfg: cfg, log: log}
}

// Init opens the database file and migrates the schema.
func (b *Backend) Init() error {
	if dir := filepath.Dir(b.cfg.Path); b.cfg.Path != database.MemoryPath && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.OpenSqlite(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB %q: %w", b.cfg.Path, err)
	}
	b.log.Info().Str("path", b.cfg.Path).Msg("Using local SQLite DB")

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.log})
	return b.Backend.Init()
}

// Close closes the database file.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}

// Dump writes a consistent copy of the database to path.
func (b *Backend) Dump(path string) error {
	if b.Backend == nil {
		return fmt.Errorf("sqlite backend not initialized")
	}
	return database.DumpToDisk(b.DB(), path)
}
