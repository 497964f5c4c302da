package animation

import (
	"errors"
	"fmt"
)

// ErrNoKeyframes is returned when a configuration leaves nothing to animate.
var ErrNoKeyframes = errors.New("no explorable axes")

// ErrUnknownAxis is returned when an extra-axis animation names an axis the
// current font does not declare.
var ErrUnknownAxis = errors.New("unknown axis")

// ConfigurationError reports a configuration that cannot be animated. The
// machine keeps its previous timeline when one is returned.
type ConfigurationError struct {
	FontName string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.FontName == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error for %q: %v", e.FontName, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
