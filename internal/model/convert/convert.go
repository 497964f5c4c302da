// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/vfproof/keyframer/internal/axis"
	"github.com/vfproof/keyframer/internal/model"
	"github.com/vfproof/keyframer/pkg/core"
)

// CoreToBookmark converts a core.Bookmark to its GORM row.
func CoreToBookmark(b core.Bookmark) (model.Bookmark, error) {
	axes := b.Axes
	if axes == nil {
		axes = []axis.Axis{}
	}
	axesJSON, err := json.Marshal(axes)
	if err != nil {
		return model.Bookmark{}, fmt.Errorf("encoding axes: %w", err)
	}

	var bracketJSON datatypes.JSON
	if b.Bracket != nil {
		bracketJSON, err = json.Marshal(b.Bracket)
		if err != nil {
			return model.Bookmark{}, fmt.Errorf("encoding bracket: %w", err)
		}
	}

	return model.Bookmark{
		ID:            b.ID,
		FontName:      b.FontName,
		Axes:          datatypes.JSON(axesJSON),
		Bracket:       bracketJSON,
		Timestamp:     b.Timestamp,
		KeyframeIndex: copyIndex(b.KeyframeIndex),
		Playing:       b.Playing,
		CreatedAt:     b.CreatedAt,
	}, nil
}

// BookmarkToCore converts a GORM row back to a core.Bookmark.
func BookmarkToCore(row model.Bookmark) (core.Bookmark, error) {
	b := core.Bookmark{
		ID:            row.ID,
		FontName:      row.FontName,
		Timestamp:     row.Timestamp,
		KeyframeIndex: copyIndex(row.KeyframeIndex),
		Playing:       row.Playing,
		CreatedAt:     row.CreatedAt,
	}

	if len(row.Axes) > 0 {
		if err := json.Unmarshal(row.Axes, &b.Axes); err != nil {
			return core.Bookmark{}, fmt.Errorf("decoding axes of %s: %w", row.ID, err)
		}
	}
	if len(row.Bracket) > 0 && string(row.Bracket) != "null" {
		b.Bracket = &axis.Bracket{}
		if err := json.Unmarshal(row.Bracket, b.Bracket); err != nil {
			return core.Bookmark{}, fmt.Errorf("decoding bracket of %s: %w", row.ID, err)
		}
	}

	return b, nil
}

func copyIndex(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
