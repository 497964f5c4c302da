package animation

import (
	"fmt"
	"time"

	"github.com/vfproof/keyframer/internal/timeline"
	"github.com/vfproof/keyframer/pkg/variation"
)

type extraState struct {
	tag      string
	timeline timeline.Timeline
	anchor   time.Time
	held     variation.Settings
	resume   Status
}

func (e *extraState) percentageAt(now time.Time) float64 {
	if e.timeline.Duration <= 0 {
		return 0
	}
	return timeline.Wrap(float64(now.Sub(e.anchor)) / float64(e.timeline.Duration) * 100)
}

func (e *extraState) valuesAt(now time.Time) variation.Settings {
	return e.timeline.At(e.percentageAt(now))
}

// StartExtraAxis suspends the main timeline and loops tag through
// min, default, max and back to min while every other axis holds its last
// value. The main position and current keyframe are kept for
// StopExtraAxis. Starting on another tag while active switches axes.
func (m *Machine) StartExtraAxis(tag string) error {
	m.mu.Lock()

	a, ok := m.fontAxes[tag]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAxis, tag)
	}

	now := m.now()
	resume := m.status
	held := m.values(now)
	if m.extra != nil {
		resume = m.extra.resume
		held = m.extra.held
	}

	if m.status == Playing {
		m.offset = m.percentageAt(now)
		m.status = Paused
	}
	m.stopTimers()

	lo, def, hi := a.Min, a.Default, a.Max
	if r, ok := m.ranges[tag]; ok {
		lo, def, hi = r.Min, r.Default, r.Max
	}
	frames := []variation.Settings{
		held.With(tag, lo),
		held.With(tag, def),
		held.With(tag, hi),
	}

	m.extra = &extraState{
		tag:      tag,
		timeline: timeline.Build(frames, m.secondsPerKeyframe),
		anchor:   now,
		held:     held,
		resume:   resume,
	}
	m.startRefresh()
	m.record("extra_start")
	m.logger.Debug("extra axis started", "axis", tag, "min", lo, "default", def, "max", hi)

	emit := m.emitTick()
	m.mu.Unlock()
	emit()
	return nil
}

// StopExtraAxis ends the extra-axis animation and resumes the main
// timeline as it was. It is a no-op when no extra axis is active.
func (m *Machine) StopExtraAxis() {
	m.mu.Lock()
	if m.extra == nil {
		m.mu.Unlock()
		return
	}

	resume := m.extra.resume
	tag := m.extra.tag
	m.endExtra()
	if resume == Playing {
		m.status = Playing
		m.anchor = m.now()
		m.startRefresh()
	}
	m.record("extra_stop")
	m.logger.Debug("extra axis stopped", "axis", tag, "resume", resume.String())

	emit := m.emitTick()
	m.mu.Unlock()
	emit()
}

// endExtra drops the extra-axis animation without resuming anything. Must
// be called with mu held.
func (m *Machine) endExtra() {
	if m.extra == nil {
		return
	}
	m.extra = nil
	m.stopTimers()
}
