package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/vfproof/keyframer/internal/axis"
	"github.com/vfproof/keyframer/internal/model"
	"github.com/vfproof/keyframer/pkg/core"
)

func sampleBookmark() core.Bookmark {
	idx := 4
	return core.Bookmark{
		ID:       "6c1f0d53-3b0e-4a51-9a57-1f4d8e0b2c11",
		FontName: "Roboto Flex",
		Axes: []axis.Axis{
			{Tag: "wght", Min: 100, Default: 400, Max: 1000},
			{Tag: "wdth", Min: 25, Default: 100, Max: 151},
		},
		Bracket: &axis.Bracket{
			Pivot:      map[string]float64{"wght": 500},
			Tolerances: map[string][2]float64{"wght": {0.5, 1.5}},
		},
		Timestamp:     8,
		KeyframeIndex: &idx,
		Playing:       true,
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCoreToBookmark(t *testing.T) {
	row, err := CoreToBookmark(sampleBookmark())
	require.NoError(t, err)

	assert.Equal(t, "6c1f0d53-3b0e-4a51-9a57-1f4d8e0b2c11", row.ID)
	assert.Equal(t, "Roboto Flex", row.FontName)
	assert.JSONEq(t, `[
		{"tag":"wght","min":100,"default":400,"max":1000},
		{"tag":"wdth","min":25,"default":100,"max":151}
	]`, string(row.Axes))
	assert.JSONEq(t, `{"pivot":{"wght":500},"tolerances":{"wght":[0.5,1.5]}}`, string(row.Bracket))
	require.NotNil(t, row.KeyframeIndex)
	assert.Equal(t, 4, *row.KeyframeIndex)
	assert.True(t, row.Playing)
}

func TestCoreToBookmark_Empty(t *testing.T) {
	row, err := CoreToBookmark(core.Bookmark{ID: "x"})
	require.NoError(t, err)

	assert.Equal(t, datatypes.JSON("[]"), row.Axes)
	assert.Nil(t, row.Bracket)
	assert.Nil(t, row.KeyframeIndex)
}

func TestBookmarkRoundTrip(t *testing.T) {
	in := sampleBookmark()

	row, err := CoreToBookmark(in)
	require.NoError(t, err)
	out, err := BookmarkToCore(row)
	require.NoError(t, err)

	assert.Equal(t, in, out)

	// the row does not alias the caller's index
	*in.KeyframeIndex = 9
	assert.Equal(t, 4, *row.KeyframeIndex)
}

func TestBookmarkToCore_NullBracket(t *testing.T) {
	b, err := BookmarkToCore(model.Bookmark{ID: "x", Axes: datatypes.JSON("[]"), Bracket: datatypes.JSON("null")})
	require.NoError(t, err)
	assert.Nil(t, b.Bracket)
	assert.Empty(t, b.Axes)
}

func TestBookmarkToCore_BadJSON(t *testing.T) {
	_, err := BookmarkToCore(model.Bookmark{ID: "broken", Axes: datatypes.JSON("{")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding axes of broken")
}
