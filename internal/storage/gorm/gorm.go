// Package gormstorage implements storage.Backend on top of any GORM
// dialect. The sqlite and postgres packages only differ in how they open
// the connection.
package gormstorage

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vfproof/keyframer/internal/database"
	"github.com/vfproof/keyframer/internal/model"
	"github.com/vfproof/keyframer/internal/model/convert"
	"github.com/vfproof/keyframer/internal/storage"
	"github.com/vfproof/keyframer/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Backend implements storage.Backend with GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.deps.Logger.Debug().Str("dialect", b.deps.DB.Name()).Msg("Bookmark schema ready")
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// SaveBookmark inserts b or replaces the row with the same ID.
func (b *Backend) SaveBookmark(bm *core.Bookmark) error {
	storage.Prepare(bm, b.deps.Now())

	row, err := convert.CoreToBookmark(*bm)
	if err != nil {
		return err
	}

	err = b.deps.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving bookmark %s: %w", bm.ID, err)
	}

	b.deps.Logger.Debug().Str("id", bm.ID).Str("font", bm.FontName).Msg("Bookmark saved")
	return nil
}

// GetBookmark loads a bookmark by ID.
func (b *Backend) GetBookmark(id string) (*core.Bookmark, error) {
	var row model.Bookmark
	err := b.deps.DB.First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading bookmark %s: %w", id, err)
	}

	bm, err := convert.BookmarkToCore(row)
	if err != nil {
		return nil, err
	}
	return &bm, nil
}

// ListBookmarks returns all bookmarks, oldest first.
func (b *Backend) ListBookmarks() ([]core.Bookmark, error) {
	var rows []model.Bookmark
	if err := b.deps.DB.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing bookmarks: %w", err)
	}

	out := make([]core.Bookmark, 0, len(rows))
	for _, row := range rows {
		bm, err := convert.BookmarkToCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, bm)
	}
	return out, nil
}

// DeleteBookmark removes a bookmark by ID.
func (b *Backend) DeleteBookmark(id string) error {
	res := b.deps.DB.Delete(&model.Bookmark{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("deleting bookmark %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}
