// Package postgres implements the storage.Backend interface using
// GORM/PostgreSQL. When the server is unreachable the connection falls back
// to a local SQLite database so bookmarks are not lost.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/vfproof/keyframer/internal/config"
	"github.com/vfproof/keyframer/internal/database"
	gormstorage "github.com/vfproof/keyframer/internal/storage/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	Config config.DBConfig
	// FallbackPath is the SQLite file used when Postgres is unreachable.
	// Empty means in memory.
	FallbackPath string
	// DB skips connecting when set.
	DB     *gorm.DB
	Logger zerolog.Logger
}

// Backend wraps the GORM backend with Postgres connection handling.
type Backend struct {
	*gormstorage.Backend
	deps    Dependencies
	manager *database.Manager
}

// New creates a new Postgres storage backend. No connection is made until Init.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// Init connects (unless a DB was injected) and migrates the schema.
func (b *Backend) Init() error {
	db := b.deps.DB
	if db == nil {
		b.manager = database.NewManager(b.deps.Logger)
		b.manager.SqliteFilePath = b.deps.FallbackPath
		if err := b.manager.Connect(b.deps.Config); err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		db = b.manager.DB
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     db,
		Logger: b.deps.Logger,
	})
	return b.Backend.Init()
}

// UsingFallback reports whether Init fell back to SQLite.
func (b *Backend) UsingFallback() bool {
	return b.manager != nil && b.manager.ShouldSaveLocal
}

// Close closes the connection if Init opened one.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
