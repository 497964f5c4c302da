// Package axis describes font variation axes and resolves the ranges that
// the keyframe animation explores.
package axis

import (
	"fmt"
	"sort"

	"github.com/vfproof/keyframer/pkg/variation"
)

// Registered axis tags.
const (
	OpticalSize = "opsz"
	Weight      = "wght"
	Width       = "wdth"
	Italic      = "ital"
	Slant       = "slnt"
)

// RegisteredOrder is the order in which registered axes are nested when
// keyframes are generated. The first axis varies slowest.
var RegisteredOrder = []string{OpticalSize, Weight, Width, Italic, Slant}

// Axis is a variation axis as declared by the font.
type Axis struct {
	Tag     string  `json:"tag"`
	Min     float64 `json:"min"`
	Default float64 `json:"default"`
	Max     float64 `json:"max"`
}

// Validate checks the tag length and min <= default <= max.
func (a Axis) Validate() error {
	if len(a.Tag) != variation.TagLength {
		return fmt.Errorf("axis tag %q must be %d characters", a.Tag, variation.TagLength)
	}
	if a.Min > a.Default || a.Default > a.Max {
		return fmt.Errorf("axis %s: expected min <= default <= max, got %v/%v/%v", a.Tag, a.Min, a.Default, a.Max)
	}
	return nil
}

// Variable reports whether the axis has any range at all.
func (a Axis) Variable() bool {
	return a.Min != a.Max
}

// Range is the effective exploration range of a single axis.
type Range struct {
	Tag     string  `json:"tag"`
	Min     float64 `json:"min"`
	Default float64 `json:"default"`
	Max     float64 `json:"max"`
}

// Bracket restricts exploration to a region around a pivot. Tolerances are
// [low, high] pairs; a low factor in (0, 1] is multiplicative, anything else
// is an additive offset.
type Bracket struct {
	Pivot      map[string]float64    `json:"pivot"`
	Tolerances map[string][2]float64 `json:"tolerances,omitempty"`
}

// Tolerance returns the tolerance pair for tag, [1, 1] if none is set.
func (b *Bracket) Tolerance(tag string) [2]float64 {
	if t, ok := b.Tolerances[tag]; ok {
		return t
	}
	return [2]float64{1, 1}
}

// Warner receives recoverable warnings.
type Warner interface {
	Warn(msg string, keysAndValues ...any)
}

// Index builds a tag keyed lookup from a list of axes.
func Index(axes []Axis) map[string]Axis {
	m := make(map[string]Axis, len(axes))
	for _, a := range axes {
		m[a.Tag] = a
	}
	return m
}

// Registered reports whether tag is one of the registered axes.
func Registered(tag string) bool {
	for _, t := range RegisteredOrder {
		if t == tag {
			return true
		}
	}
	return false
}

// ExplorationOrder returns the registered tags present in ranges, in
// RegisteredOrder. Custom axes are not part of the main timeline.
func ExplorationOrder(ranges map[string]Range) []string {
	order := make([]string, 0, len(ranges))
	for _, tag := range RegisteredOrder {
		if _, ok := ranges[tag]; ok {
			order = append(order, tag)
		}
	}
	return order
}

// CustomAxes returns the sorted tags of the font's non-registered axes.
func CustomAxes(fontAxes map[string]Axis) []string {
	var tags []string
	for tag := range fontAxes {
		if !Registered(tag) {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Defaults returns the default instance of the font in registered order
// followed by custom axes.
func Defaults(fontAxes map[string]Axis) variation.Settings {
	s := make(variation.Settings, 0, len(fontAxes))
	for _, tag := range RegisteredOrder {
		if a, ok := fontAxes[tag]; ok {
			s = append(s, variation.AxisValue{Tag: tag, Value: a.Default})
		}
	}
	for _, tag := range CustomAxes(fontAxes) {
		s = append(s, variation.AxisValue{Tag: tag, Value: fontAxes[tag].Default})
	}
	return s
}
