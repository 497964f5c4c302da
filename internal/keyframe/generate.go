// Package keyframe enumerates the axis-value combinations visited by the
// variation animation.
package keyframe

import (
	"iter"

	"github.com/vfproof/keyframer/internal/axis"
	"github.com/vfproof/keyframer/pkg/variation"
)

// Samples returns the values visited on a single axis. Optical size starts
// at its minimum, every other axis starts at its default. Bounds equal to
// the default are left out so a non-variable axis yields one sample.
func Samples(r axis.Range) []float64 {
	order := []float64{r.Default, r.Min, r.Max}
	if r.Tag == axis.OpticalSize {
		order = []float64{r.Min, r.Default, r.Max}
	}

	samples := make([]float64, 0, 3)
	defaultSeen := false
	for _, v := range order {
		if v == r.Default {
			if defaultSeen {
				continue
			}
			defaultSeen = true
		}
		samples = append(samples, v)
	}
	return samples
}

// Generate yields the Cartesian product of the per-axis samples of the tags
// in order, first tag outermost and last tag varying fastest. A combination
// that serializes identically to the one yielded before it is skipped.
// Tags without a range are ignored; an empty order yields nothing.
//
// The sequence is lazy and can be ranged over any number of times with the
// same result.
func Generate(ranges map[string]axis.Range, order []string, log axis.Warner) iter.Seq[variation.Settings] {
	tags := make([]string, 0, len(order))
	samples := make([][]float64, 0, len(order))
	for _, tag := range order {
		r, ok := ranges[tag]
		if !ok {
			continue
		}
		tags = append(tags, tag)
		samples = append(samples, Samples(r))
	}

	return func(yield func(variation.Settings) bool) {
		if len(tags) == 0 {
			return
		}

		prev := ""
		current := make(variation.Settings, len(tags))

		var walk func(depth int) bool
		walk = func(depth int) bool {
			if depth == len(tags) {
				key := current.String()
				if key == prev {
					if log != nil {
						log.Warn("skipping duplicate keyframe", "values", key)
					}
					return true
				}
				prev = key
				return yield(current.Clone())
			}
			for _, v := range samples[depth] {
				current[depth] = variation.AxisValue{Tag: tags[depth], Value: v}
				if !walk(depth + 1) {
					return false
				}
			}
			return true
		}

		walk(0)
	}
}

// Collect materializes a keyframe sequence.
func Collect(seq iter.Seq[variation.Settings]) []variation.Settings {
	var out []variation.Settings
	for s := range seq {
		out = append(out, s)
	}
	return out
}

// Count returns the size of the product before duplicates are removed.
func Count(ranges map[string]axis.Range, order []string) int {
	n := 0
	for _, tag := range order {
		r, ok := ranges[tag]
		if !ok {
			continue
		}
		if n == 0 {
			n = 1
		}
		n *= len(Samples(r))
	}
	return n
}
