// Package storage defines the bookmark persistence interface shared by the
// memory, SQLite and Postgres backends.
package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vfproof/keyframer/pkg/core"
)

// ErrNotFound is returned when no bookmark has the requested ID.
var ErrNotFound = errors.New("bookmark not found")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveBookmark stores b, assigning ID and CreatedAt when they are empty.
	// Saving an existing ID replaces it.
	SaveBookmark(b *core.Bookmark) error
	GetBookmark(id string) (*core.Bookmark, error)
	// ListBookmarks returns all bookmarks, oldest first.
	ListBookmarks() ([]core.Bookmark, error)
	DeleteBookmark(id string) error
}

// Prepare fills in the ID and CreatedAt of a new bookmark.
func Prepare(b *core.Bookmark, now time.Time) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now.UTC()
	}
}
