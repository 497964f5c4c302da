package axis

import "math"

// Resolve computes the range explored on each axis. Without a bracket every
// font axis is returned unchanged. With a bracket only the pivot's axes are
// returned, narrowed by their tolerance and clamped into the font's bounds.
// Pivot axes the font does not declare are logged and skipped.
func Resolve(fontAxes map[string]Axis, bracket *Bracket, log Warner) map[string]Range {
	ranges := make(map[string]Range, len(fontAxes))

	if bracket == nil {
		for tag, a := range fontAxes {
			ranges[tag] = Range{Tag: tag, Min: a.Min, Default: a.Default, Max: a.Max}
		}
		return ranges
	}

	for tag, pivot := range bracket.Pivot {
		a, ok := fontAxes[tag]
		if !ok {
			if log != nil {
				log.Warn("bracket references axis missing from font, skipping", "axis", tag, "pivot", pivot)
			}
			continue
		}

		tol := bracket.Tolerance(tag)
		combine := add
		if tol[0] > 0 && tol[0] <= 1 {
			combine = multiply
		}

		def := clamp(pivot, a.Min, a.Max)
		lo := clamp(combine(pivot, tol[0]), a.Min, a.Max)
		hi := clamp(combine(pivot, tol[1]), a.Min, a.Max)

		ranges[tag] = Range{
			Tag:     tag,
			Min:     math.Min(lo, def),
			Default: def,
			Max:     math.Max(hi, def),
		}
	}

	return ranges
}

func add(pivot, tol float64) float64 {
	return pivot + tol
}

func multiply(pivot, tol float64) float64 {
	return pivot * tol
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
