package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfproof/keyframer/pkg/variation"
)

func weightFrames(values ...float64) []variation.Settings {
	out := make([]variation.Settings, len(values))
	for i, v := range values {
		out[i] = variation.Settings{{Tag: "wght", Value: v}}
	}
	return out
}

func nineFrames() []variation.Settings {
	var out []variation.Settings
	for _, w := range []float64{400, 100, 900} {
		for _, d := range []float64{100, 75, 125} {
			out = append(out, variation.Settings{{Tag: "wght", Value: w}, {Tag: "wdth", Value: d}})
		}
	}
	return out
}

func TestBuild_NineKeyframes(t *testing.T) {
	tl := Build(nineFrames(), 2)

	require.Equal(t, 9, tl.Len())
	assert.Equal(t, 18*time.Second, tl.Duration)
	assert.Equal(t, 18.0, tl.DurationSeconds())
	assert.Equal(t, 0.0, tl.IndexToPercentage(0))
	assert.InDelta(t, 88.9, tl.IndexToPercentage(8), 0.05)

	wantPct := []float64{0, 11.1, 22.2, 33.3, 44.4, 55.6, 66.7, 77.8, 88.9}
	for i, k := range tl.Keyframes {
		assert.Equal(t, wantPct[i], k.Percentage, "keyframe %d", i)
	}

	cyclic := tl.Cyclic()
	require.Len(t, cyclic, 10)
	assert.Equal(t, 100.0, cyclic[9].Percentage)
	assert.Equal(t, tl.Keyframes[0].Values, cyclic[9].Values)
}

func TestBuild_DefaultSecondsPerKeyframe(t *testing.T) {
	tl := Build(weightFrames(100, 900), 0)
	assert.Equal(t, 4*time.Second, tl.Duration)
}

func TestBuild_Empty(t *testing.T) {
	tl := Build(nil, 2)

	assert.True(t, tl.Empty())
	assert.Equal(t, time.Duration(0), tl.Duration)
	assert.Nil(t, tl.Cyclic())
	assert.Equal(t, -1, tl.PercentageToIndex(50))
	assert.Equal(t, 0.0, tl.TimestampToPercentage(3))
	assert.Empty(t, tl.At(30))
}

func TestBuild_CopiesValues(t *testing.T) {
	src := weightFrames(100, 900)
	tl := Build(src, 2)
	src[0][0].Value = 1

	assert.Equal(t, 100.0, tl.Keyframes[0].Values[0].Value)
}

func TestPercentageIndexRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 9, 27, 243} {
		values := make([]variation.Settings, n)
		for i := range values {
			values[i] = variation.Settings{{Tag: "wght", Value: float64(i)}}
		}
		tl := Build(values, 2)

		for i := 0; i < n; i++ {
			assert.Equal(t, i, tl.PercentageToIndex(tl.IndexToPercentage(i)), "n=%d i=%d", n, i)
			assert.Equal(t, i, tl.PercentageToIndex(tl.Keyframes[i].Percentage), "rounded n=%d i=%d", n, i)
			assert.Equal(t, i, tl.TimestampToIndex(tl.IndexToTimestamp(i)), "timestamp n=%d i=%d", n, i)
		}
	}
}

func TestPercentageToIndex_Clamps(t *testing.T) {
	tl := Build(nineFrames(), 2)

	assert.Equal(t, 0, tl.PercentageToIndex(-20))
	assert.Equal(t, 8, tl.PercentageToIndex(99))
	assert.Equal(t, 8, tl.PercentageToIndex(250))
	assert.Equal(t, 1, tl.PercentageToIndex(15))
}

func TestTimestampConversions(t *testing.T) {
	tl := Build(nineFrames(), 2)

	assert.InDelta(t, 50, tl.TimestampToPercentage(9), 1e-9)
	assert.InDelta(t, 9, tl.PercentageToTimestamp(50), 1e-9)
	assert.InDelta(t, 4, tl.IndexToTimestamp(2), 1e-9)

	for _, p := range []float64{0, 12.5, 33.3, 99.9} {
		assert.InDelta(t, p, tl.TimestampToPercentage(tl.PercentageToTimestamp(p)), 1e-9)
	}
}

func TestAt_Interpolates(t *testing.T) {
	tl := Build(weightFrames(100, 900), 2)

	assert.Equal(t, 100.0, tl.At(0)[0].Value)
	assert.InDelta(t, 500, tl.At(25)[0].Value, 1e-9)
	assert.Equal(t, 900.0, tl.At(50)[0].Value)
	assert.InDelta(t, 500, tl.At(75)[0].Value, 1e-9, "second half travels back to the first keyframe")
	assert.Equal(t, 100.0, tl.At(100)[0].Value, "100% wraps to the start")
	assert.InDelta(t, 500, tl.At(-25)[0].Value, 1e-9)
}

func TestAt_SingleKeyframe(t *testing.T) {
	tl := Build(weightFrames(400), 2)

	for _, p := range []float64{0, 40, 99} {
		assert.Equal(t, 400.0, tl.At(p)[0].Value)
	}
}

func TestWrap(t *testing.T) {
	assert.Equal(t, 0.0, Wrap(100))
	assert.Equal(t, 50.0, Wrap(250))
	assert.Equal(t, 75.0, Wrap(-25))
	assert.Equal(t, 12.5, Wrap(12.5))
}

func TestPosition(t *testing.T) {
	tl := Build(nineFrames(), 2)
	assert.InDelta(t, 4.5, tl.Position(50), 1e-9)
	assert.InDelta(t, 0, tl.Position(100), 1e-9)
}
