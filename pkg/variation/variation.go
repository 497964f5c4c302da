// Package variation models font-variation settings: an ordered list of
// axis tag/value pairs and its CSS-style text form, "wght" 400, "wdth" 100.
package variation

import (
	"fmt"
	"strconv"
	"strings"
)

// Normal is the serialized form of an empty settings list.
const Normal = "normal"

// TagLength is the only accepted length for an axis tag.
const TagLength = 4

// AxisValue is a single tag/value pair applied to a font instance.
type AxisValue struct {
	Tag   string  `json:"tag"`
	Value float64 `json:"value"`
}

// Settings is an ordered list of axis values. Order is significant for
// serialization, which makes two equal settings serialize identically.
type Settings []AxisValue

// FromMap builds settings from a mapping in the given tag order.
// Tags missing from order are left out.
func FromMap(values map[string]float64, order []string) Settings {
	s := make(Settings, 0, len(values))
	seen := make(map[string]bool, len(order))
	for _, tag := range order {
		if v, ok := values[tag]; ok && !seen[tag] {
			s = append(s, AxisValue{Tag: tag, Value: v})
			seen[tag] = true
		}
	}
	return s
}

// Get returns the value of tag and whether it is set.
func (s Settings) Get(tag string) (float64, bool) {
	for _, av := range s {
		if av.Tag == tag {
			return av.Value, true
		}
	}
	return 0, false
}

// With returns a copy of s with tag set to value. A new tag is appended.
func (s Settings) With(tag string, value float64) Settings {
	out := s.Clone()
	for i := range out {
		if out[i].Tag == tag {
			out[i].Value = value
			return out
		}
	}
	return append(out, AxisValue{Tag: tag, Value: value})
}

// Clone returns an independent copy.
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	copy(out, s)
	return out
}

// Map returns the settings as a tag->value mapping.
func (s Settings) Map() map[string]float64 {
	m := make(map[string]float64, len(s))
	for _, av := range s {
		m[av.Tag] = av.Value
	}
	return m
}

// Tags returns the tags in order.
func (s Settings) Tags() []string {
	tags := make([]string, len(s))
	for i, av := range s {
		tags[i] = av.Tag
	}
	return tags
}

// Equal reports whether both settings serialize identically.
func (s Settings) Equal(other Settings) bool {
	return s.String() == other.String()
}

// String serializes the settings as `"TAG" value` clauses joined by ", ".
// Tags that are not exactly four characters are dropped. An empty result
// serializes to "normal".
func (s Settings) String() string {
	clauses := make([]string, 0, len(s))
	for _, av := range s {
		if len(av.Tag) != TagLength {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%q %s", av.Tag, FormatValue(av.Value)))
	}
	if len(clauses) == 0 {
		return Normal
	}
	return strings.Join(clauses, ", ")
}

// FormatValue renders a value in its shortest decimal form.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Parse reads settings serialized by String. "normal" and the empty string
// parse to empty settings. Tags may also be written bare (wght 400), which
// is how they arrive once a command line has had its quotes stripped.
func Parse(s string) (Settings, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == Normal {
		return Settings{}, nil
	}

	parts := strings.Split(s, ",")
	out := make(Settings, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed clause %q", strings.TrimSpace(part))
		}
		tag := strings.Trim(fields[0], `"`)
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in clause %q: %w", strings.TrimSpace(part), err)
		}
		if len(tag) != TagLength {
			continue
		}
		out = append(out, AxisValue{Tag: tag, Value: v})
	}
	return out, nil
}
