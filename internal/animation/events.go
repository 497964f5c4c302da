package animation

import (
	"github.com/vfproof/keyframer/internal/timeline"
	"github.com/vfproof/keyframer/pkg/variation"
)

// ResetEvent is emitted after every successful timeline rebuild.
type ResetEvent struct {
	FontName string             `json:"fontName"`
	Timeline timeline.Timeline  `json:"timeline"`
	Snapshot variation.Settings `json:"snapshot"`
}

// TickEvent carries the current axis values to renderers. Percentage and
// Timestamp are positions on the main timeline; during an extra-axis
// animation ExtraAxis names the animated axis and ExtraPercentage is the
// position within its own loop.
type TickEvent struct {
	FontName        string             `json:"fontName"`
	Values          variation.Settings `json:"values"`
	Percentage      float64            `json:"percentage"`
	Timestamp       float64            `json:"timestamp"`
	ExtraAxis       string             `json:"extraAxis,omitempty"`
	ExtraPercentage float64            `json:"extraPercentage,omitempty"`
}

// Mode returns "extra" during an extra-axis animation and "main" otherwise.
func (e TickEvent) Mode() string {
	if e.ExtraAxis != "" {
		return "extra"
	}
	return "main"
}

// ResetFunc receives reset events.
type ResetFunc func(ResetEvent)

// TickFunc receives tick events.
type TickFunc func(TickEvent)
