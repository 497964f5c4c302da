// Package memory implements storage.Backend with an in-process map that is
// exported to a JSON file on Close and loaded back on Init.
package memory

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vfproof/keyframer/internal/config"
	"github.com/vfproof/keyframer/internal/storage"
	"github.com/vfproof/keyframer/pkg/core"
)

// Backend stores bookmarks in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig
	now func() time.Time

	bookmarks map[string]core.Bookmark

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:       cfg,
		now:       time.Now,
		bookmarks: make(map[string]core.Bookmark),
	}
}

// Init loads a previous export from OutputDir, if there is one.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}

	loaded, err := b.load()
	if err != nil {
		return err
	}
	for _, bm := range loaded {
		b.bookmarks[bm.ID] = bm
	}
	return nil
}

// Close exports all bookmarks.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// Export writes all bookmarks to OutputDir and returns the file path.
func (b *Backend) Export() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return "", fmt.Errorf("memory backend: no output directory configured")
	}
	if err := b.exportJSON(); err != nil {
		return "", err
	}
	return b.lastExportPath, nil
}

// GetExportedFilePath returns the path of the last export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// SaveBookmark stores a copy of bm.
func (b *Backend) SaveBookmark(bm *core.Bookmark) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	storage.Prepare(bm, b.now())
	b.bookmarks[bm.ID] = cloneBookmark(*bm)
	return nil
}

// GetBookmark returns a copy of the bookmark with the given ID.
func (b *Backend) GetBookmark(id string) (*core.Bookmark, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bm, ok := b.bookmarks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	out := cloneBookmark(bm)
	return &out, nil
}

// ListBookmarks returns all bookmarks, oldest first.
func (b *Backend) ListBookmarks() ([]core.Bookmark, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.sorted(), nil
}

// DeleteBookmark removes the bookmark with the given ID.
func (b *Backend) DeleteBookmark(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.bookmarks[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(b.bookmarks, id)
	return nil
}

// sorted must be called with mu held.
func (b *Backend) sorted() []core.Bookmark {
	out := make([]core.Bookmark, 0, len(b.bookmarks))
	for _, bm := range b.bookmarks {
		out = append(out, cloneBookmark(bm))
	}
	slices.SortFunc(out, func(x, y core.Bookmark) int {
		if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out
}

func cloneBookmark(bm core.Bookmark) core.Bookmark {
	out := bm
	out.Axes = slices.Clone(bm.Axes)
	if bm.KeyframeIndex != nil {
		i := *bm.KeyframeIndex
		out.KeyframeIndex = &i
	}
	if bm.Bracket != nil {
		br := *bm.Bracket
		if bm.Bracket.Pivot != nil {
			br.Pivot = make(map[string]float64, len(bm.Bracket.Pivot))
			for k, v := range bm.Bracket.Pivot {
				br.Pivot[k] = v
			}
		}
		if bm.Bracket.Tolerances != nil {
			br.Tolerances = make(map[string][2]float64, len(bm.Bracket.Tolerances))
			for k, v := range bm.Bracket.Tolerances {
				br.Tolerances[k] = v
			}
		}
		out.Bracket = &br
	}
	return out
}
