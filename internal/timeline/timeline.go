// Package timeline places keyframes on a normalized 0-100 percentage
// timeline and converts between keyframe indexes, percentages and
// timestamps.
package timeline

import (
	"math"
	"time"

	"github.com/vfproof/keyframer/pkg/variation"
)

// DefaultSecondsPerKeyframe is the time spent travelling to each keyframe.
const DefaultSecondsPerKeyframe = 2.0

// Keyframe is one axis-value combination placed on the timeline.
type Keyframe struct {
	Percentage float64            `json:"percentage"`
	Values     variation.Settings `json:"values"`
}

// Timeline is an immutable list of evenly spaced keyframes and the duration
// of one loop through them.
type Timeline struct {
	Keyframes []Keyframe    `json:"keyframes"`
	Duration  time.Duration `json:"duration"`
}

// Build spaces values evenly over [0, 100) and assigns each keyframe
// secondsPerKeyframe. Non-positive secondsPerKeyframe uses the default.
func Build(values []variation.Settings, secondsPerKeyframe float64) Timeline {
	if secondsPerKeyframe <= 0 {
		secondsPerKeyframe = DefaultSecondsPerKeyframe
	}

	n := len(values)
	frames := make([]Keyframe, n)
	for i, v := range values {
		frames[i] = Keyframe{
			Percentage: roundTenth(float64(i) / float64(n) * 100),
			Values:     v.Clone(),
		}
	}

	return Timeline{
		Keyframes: frames,
		Duration:  time.Duration(float64(n) * secondsPerKeyframe * float64(time.Second)),
	}
}

// Len returns the number of keyframes.
func (t Timeline) Len() int {
	return len(t.Keyframes)
}

// Empty reports whether there is nothing to animate.
func (t Timeline) Empty() bool {
	return len(t.Keyframes) == 0
}

// DurationSeconds returns the loop duration in seconds.
func (t Timeline) DurationSeconds() float64 {
	return t.Duration.Seconds()
}

// Cyclic returns the keyframes with the first keyframe repeated at 100% so
// that the end of one loop meets the start of the next.
func (t Timeline) Cyclic() []Keyframe {
	if t.Empty() {
		return nil
	}
	out := make([]Keyframe, 0, len(t.Keyframes)+1)
	for _, k := range t.Keyframes {
		out = append(out, Keyframe{Percentage: k.Percentage, Values: k.Values.Clone()})
	}
	return append(out, Keyframe{Percentage: 100, Values: t.Keyframes[0].Values.Clone()})
}

// IndexToPercentage returns the unrounded position of keyframe i.
func (t Timeline) IndexToPercentage(i int) float64 {
	if t.Empty() {
		return 0
	}
	return float64(i) / float64(len(t.Keyframes)) * 100
}

// PercentageToIndex returns the nearest keyframe index, clamped to the
// valid range. It returns -1 for an empty timeline.
func (t Timeline) PercentageToIndex(p float64) int {
	n := len(t.Keyframes)
	if n == 0 {
		return -1
	}
	i := int(math.Round(p / 100 * float64(n)))
	return max(0, min(n-1, i))
}

// TimestampToPercentage converts seconds into the loop to a percentage.
func (t Timeline) TimestampToPercentage(seconds float64) float64 {
	d := t.DurationSeconds()
	if d == 0 {
		return 0
	}
	return seconds / d * 100
}

// PercentageToTimestamp converts a percentage to seconds into the loop.
func (t Timeline) PercentageToTimestamp(p float64) float64 {
	return p / 100 * t.DurationSeconds()
}

// IndexToTimestamp returns the time at which keyframe i is reached.
func (t Timeline) IndexToTimestamp(i int) float64 {
	return t.PercentageToTimestamp(t.IndexToPercentage(i))
}

// TimestampToIndex returns the keyframe nearest to the given time.
func (t Timeline) TimestampToIndex(seconds float64) int {
	return t.PercentageToIndex(t.TimestampToPercentage(seconds))
}

// Position returns the fractional keyframe position of percentage p, in
// keyframe units.
func (t Timeline) Position(p float64) float64 {
	return Wrap(p) / 100 * float64(len(t.Keyframes))
}

// At returns the interpolated axis values at percentage p, wrapping p into
// a single loop.
func (t Timeline) At(p float64) variation.Settings {
	frames := t.Cyclic()
	if len(frames) == 0 {
		return variation.Settings{}
	}
	p = Wrap(p)

	for i := 0; i < len(frames)-1; i++ {
		a, b := frames[i], frames[i+1]
		if p < a.Percentage || p > b.Percentage {
			continue
		}
		span := b.Percentage - a.Percentage
		if span <= 0 {
			return a.Values.Clone()
		}
		return lerp(a.Values, b.Values, (p-a.Percentage)/span)
	}
	return frames[len(frames)-1].Values.Clone()
}

// Wrap folds any percentage into [0, 100).
func Wrap(p float64) float64 {
	p = math.Mod(p, 100)
	if p < 0 {
		p += 100
	}
	return p
}

func lerp(a, b variation.Settings, f float64) variation.Settings {
	out := a.Clone()
	for i := range out {
		if to, ok := b.Get(out[i].Tag); ok {
			out[i].Value += (to - out[i].Value) * f
		}
	}
	return out
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
