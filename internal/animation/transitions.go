package animation

import (
	"math"

	"github.com/vfproof/keyframer/internal/timeline"
)

// stepEpsilon is how close, in keyframe units, a free-running position must
// be to a keyframe to count as sitting on it.
const stepEpsilon = 1e-6

// Position is a restorable place on the timeline.
type Position struct {
	Timestamp     float64 `json:"timestamp"`
	KeyframeIndex *int    `json:"keyframeIndex,omitempty"`
	Playing       bool    `json:"playing"`
}

// Play starts free-running playback from the current position. It clears
// the current keyframe and starts the periodic refresh. Playing an empty
// timeline returns a *ConfigurationError.
func (m *Machine) Play() error {
	m.mu.Lock()
	if m.timeline.Empty() {
		m.mu.Unlock()
		return &ConfigurationError{FontName: m.cfg.FontName, Err: ErrNoKeyframes}
	}

	m.endExtra()
	if m.status == Playing {
		m.mu.Unlock()
		return nil
	}

	m.status = Playing
	m.current = -1
	m.anchor = m.now()
	m.startRefresh()
	m.record("play")
	m.logger.Debug("playback started", "percentage", m.offset)

	emit := m.emitTick()
	m.mu.Unlock()
	emit()
	return nil
}

// Pause freezes the main timeline at its current position and stops the
// periodic refresh. An active extra-axis animation is ended as well.
// Pausing while paused is a no-op.
func (m *Machine) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.endExtra()
	if m.status == Playing {
		m.offset = m.percentageAt(m.now())
		m.status = Paused
		m.record("pause")
		m.logger.Debug("playback paused", "percentage", m.offset)
	}
	m.stopTimers()
}

// JumpToKeyframe pauses on keyframe i. The timeline position moves to the
// keyframe's timestamp and the keyframe's stored values are applied exactly.
// Out-of-range indexes are clamped.
func (m *Machine) JumpToKeyframe(i int) error {
	m.mu.Lock()
	if m.timeline.Empty() {
		m.mu.Unlock()
		return &ConfigurationError{FontName: m.cfg.FontName, Err: ErrNoKeyframes}
	}

	m.jump(i)
	m.record("jump")

	emit := m.emitTick()
	m.mu.Unlock()
	emit()
	return nil
}

// Step moves to the neighbouring keyframe, wrapping at both ends. When no
// keyframe is current the neighbour is found from the playing position:
// between keyframes forward rounds up and back rounds down, on a keyframe
// it moves a whole keyframe.
func (m *Machine) Step(dir Direction) error {
	m.mu.Lock()
	n := m.timeline.Len()
	if n == 0 {
		m.mu.Unlock()
		return &ConfigurationError{FontName: m.cfg.FontName, Err: ErrNoKeyframes}
	}

	delta := 1
	if dir == Back {
		delta = -1
	}

	var next int
	if m.current >= 0 {
		next = m.current + delta
	} else {
		pos := m.timeline.Position(m.percentageAt(m.now()))
		nearest := math.Round(pos)
		switch {
		case math.Abs(pos-nearest) < stepEpsilon:
			next = int(nearest) + delta
		case dir == Forward:
			next = int(math.Ceil(pos))
		default:
			next = int(math.Floor(pos))
		}
	}
	next = ((next % n) + n) % n

	m.jump(next)
	m.record("step")
	m.logger.Debug("stepped", "direction", dir.String(), "keyframe", next)

	emit := m.emitTick()
	m.mu.Unlock()
	emit()
	return nil
}

// Seek pauses at the given number of seconds into the loop.
func (m *Machine) Seek(seconds float64) error {
	m.mu.Lock()
	if m.timeline.Empty() {
		m.mu.Unlock()
		return &ConfigurationError{FontName: m.cfg.FontName, Err: ErrNoKeyframes}
	}

	m.endExtra()
	m.stopTimers()
	m.status = Paused
	m.current = -1
	m.offset = timeline.Wrap(m.timeline.TimestampToPercentage(seconds))
	m.record("seek")

	emit := m.emitTick()
	m.mu.Unlock()
	emit()
	return nil
}

// Restore rebuilds the timeline from cfg and returns to pos. Keyframe
// generation is deterministic, so a saved index or timestamp lands on the
// same axis values it was taken from.
func (m *Machine) Restore(cfg Configuration, pos Position) error {
	if err := m.Reconfigure(cfg); err != nil {
		return err
	}

	var err error
	if pos.KeyframeIndex != nil {
		err = m.JumpToKeyframe(*pos.KeyframeIndex)
	} else {
		err = m.Seek(pos.Timestamp)
	}
	if err != nil {
		return err
	}

	if pos.Playing {
		return m.Play()
	}
	return nil
}

// Position returns the current restorable position.
func (m *Machine) Position() Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos := Position{
		Timestamp: m.timeline.PercentageToTimestamp(m.percentageAt(m.now())),
		Playing:   m.status == Playing || (m.extra != nil && m.extra.resume == Playing),
	}
	if m.current >= 0 {
		i := m.current
		pos.KeyframeIndex = &i
	}
	return pos
}

// jump must be called with mu held and a non-empty timeline.
func (m *Machine) jump(i int) {
	n := m.timeline.Len()
	if i < 0 || i >= n {
		clamped := max(0, min(n-1, i))
		m.logger.Warn("keyframe index out of range, clamping", "index", i, "keyframes", n, "clamped", clamped)
		i = clamped
	}

	m.endExtra()
	m.stopTimers()
	m.status = Paused
	m.current = i

	// Coarse: move the timeline to the keyframe's timestamp. Precise: apply
	// the stored values, since interpolating at a rounded percentage can
	// land slightly off the keyframe.
	m.offset = m.timeline.TimestampToPercentage(m.timeline.IndexToTimestamp(i))
	m.snapshot = m.timeline.Keyframes[i].Values.Clone()
}
