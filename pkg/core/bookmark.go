// Package core holds the types shared between the animation engine and the
// storage backends.
package core

import (
	"time"

	"github.com/vfproof/keyframer/internal/axis"
)

// Bookmark captures enough of a session to rebuild the same timeline and
// return to the same place in it.
type Bookmark struct {
	ID            string        `json:"id"`
	FontName      string        `json:"fontName"`
	Axes          []axis.Axis   `json:"axes"`
	Bracket       *axis.Bracket `json:"bracket,omitempty"`
	Timestamp     float64       `json:"timestamp"`
	KeyframeIndex *int          `json:"keyframeIndex,omitempty"`
	Playing       bool          `json:"playing"`
	CreatedAt     time.Time     `json:"createdAt"`
}
