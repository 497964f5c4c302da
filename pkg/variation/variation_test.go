package variation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_String(t *testing.T) {
	tests := []struct {
		name string
		in   Settings
		want string
	}{
		{
			name: "empty",
			in:   Settings{},
			want: "normal",
		},
		{
			name: "nil",
			in:   nil,
			want: "normal",
		},
		{
			name: "two axes keep order",
			in:   Settings{{Tag: "wght", Value: 400}, {Tag: "wdth", Value: 87.5}},
			want: `"wght" 400, "wdth" 87.5`,
		},
		{
			name: "bad tags dropped",
			in:   Settings{{Tag: "wg", Value: 1}, {Tag: "slnt", Value: -12}, {Tag: "weight", Value: 3}},
			want: `"slnt" -12`,
		},
		{
			name: "only bad tags",
			in:   Settings{{Tag: "x", Value: 1}},
			want: "normal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.String())
		})
	}
}

func TestParse(t *testing.T) {
	s, err := Parse(`"wght" 400, "wdth" 87.5`)
	require.NoError(t, err)
	assert.Equal(t, Settings{{Tag: "wght", Value: 400}, {Tag: "wdth", Value: 87.5}}, s)

	s, err = Parse("normal")
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = Parse(`"wght" heavy`)
	assert.Error(t, err)

	_, err = Parse(`"wght"`)
	assert.Error(t, err)

	_, err = Parse(`"wght" 400 700`)
	assert.Error(t, err)

	s, err = Parse(`wght" 400, wdth 90, "ab" 1`)
	require.NoError(t, err)
	assert.Equal(t, Settings{{Tag: "wght", Value: 400}, {Tag: "wdth", Value: 90}}, s,
		"bare or half-quoted tags parse; short tags are dropped")
}

func TestParse_RoundTrip(t *testing.T) {
	in := Settings{{Tag: "opsz", Value: 14}, {Tag: "wght", Value: 412.5}, {Tag: "slnt", Value: -10}}
	out, err := Parse(in.String())
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
}

func TestSettings_With(t *testing.T) {
	base := Settings{{Tag: "wght", Value: 400}}

	replaced := base.With("wght", 700)
	appended := base.With("XTRA", 500)

	assert.Equal(t, 400.0, base[0].Value, "With must not mutate the receiver")
	v, ok := replaced.Get("wght")
	assert.True(t, ok)
	assert.Equal(t, 700.0, v)
	assert.Equal(t, []string{"wght", "XTRA"}, appended.Tags())
}

func TestFromMap(t *testing.T) {
	s := FromMap(map[string]float64{"wdth": 100, "wght": 400, "GRAD": 0}, []string{"wght", "wdth"})
	assert.Equal(t, `"wght" 400, "wdth" 100`, s.String())
	assert.Equal(t, map[string]float64{"wght": 400, "wdth": 100}, s.Map())
}

func TestSettings_Equal(t *testing.T) {
	a := Settings{{Tag: "wght", Value: 400}}
	b := Settings{{Tag: "wght", Value: 400}, {Tag: "bad", Value: 1}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Settings{{Tag: "wght", Value: 401}}))
}
