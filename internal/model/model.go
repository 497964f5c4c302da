package model

import (
	"time"

	"gorm.io/datatypes"
)

// DatabaseModels lists every table migrated by the SQL storage backends.
var DatabaseModels = []any{
	&Bookmark{},
}

// Bookmark is the stored form of core.Bookmark. Axes and Bracket are kept
// as JSON documents since they are only ever read back whole.
type Bookmark struct {
	ID            string         `json:"id" gorm:"primaryKey;size:36"`
	FontName      string         `json:"fontName" gorm:"size:255;index"`
	Axes          datatypes.JSON `json:"axes"`
	Bracket       datatypes.JSON `json:"bracket"`
	Timestamp     float64        `json:"timestamp"`
	KeyframeIndex *int           `json:"keyframeIndex"`
	Playing       bool           `json:"playing"`
	CreatedAt     time.Time      `json:"createdAt" gorm:"index"`
}

func (*Bookmark) TableName() string {
	return "bookmarks"
}
