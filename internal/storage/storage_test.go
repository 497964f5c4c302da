package storage_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfproof/keyframer/internal/storage"
	"github.com/vfproof/keyframer/pkg/core"
)

func TestPrepare_AssignsIDAndCreatedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	b := &core.Bookmark{FontName: "Roboto Flex"}

	storage.Prepare(b, now)

	_, err := uuid.Parse(b.ID)
	require.NoError(t, err)
	assert.Equal(t, now.UTC(), b.CreatedAt)
	assert.Equal(t, time.UTC, b.CreatedAt.Location())
}

func TestPrepare_KeepsExisting(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &core.Bookmark{ID: "fixed", CreatedAt: created}

	storage.Prepare(b, time.Now())

	assert.Equal(t, "fixed", b.ID)
	assert.Equal(t, created, b.CreatedAt)
}

func TestPrepare_UniqueIDs(t *testing.T) {
	a, b := &core.Bookmark{}, &core.Bookmark{}
	storage.Prepare(a, time.Now())
	storage.Prepare(b, time.Now())
	assert.NotEqual(t, a.ID, b.ID)
}
