// Package animation drives playback through the keyframes of a variable
// font. The Machine owns the timeline and playback state; renderers observe
// it through reset and tick callbacks.
package animation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/vfproof/keyframer/internal/axis"
	"github.com/vfproof/keyframer/internal/keyframe"
	"github.com/vfproof/keyframer/internal/timeline"
	"github.com/vfproof/keyframer/pkg/variation"
)

// DefaultTickInterval is the refresh cadence used when none is configured.
const DefaultTickInterval = 100 * time.Millisecond

// Status is the playback status of the main timeline.
type Status int

const (
	Paused Status = iota
	Playing
)

func (s Status) String() string {
	if s == Playing {
		return "playing"
	}
	return "paused"
}

// Direction selects the neighbour visited by Step.
type Direction int

const (
	Forward Direction = iota
	Back
)

func (d Direction) String() string {
	if d == Back {
		return "back"
	}
	return "forward"
}

// ExtraAxis describes the extra-axis sub-animation.
type ExtraAxis struct {
	Tag    string `json:"tag"`
	Active bool   `json:"active"`
}

// State is a read-only copy of the playback state.
type State struct {
	Status          Status     `json:"status"`
	CurrentKeyframe *int       `json:"currentKeyframe,omitempty"`
	ExtraAxis       *ExtraAxis `json:"extraAxis,omitempty"`
}

// Configuration is everything a timeline is rebuilt from.
type Configuration struct {
	FontName string        `json:"fontName"`
	Axes     []axis.Axis   `json:"axes"`
	Bracket  *axis.Bracket `json:"bracket,omitempty"`
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options configures a Machine. Zero values select defaults.
type Options struct {
	SecondsPerKeyframe float64
	TickInterval       time.Duration
	Scheduler          Scheduler
	Clock              func() time.Time
	Logger             Logger
}

// Machine is the animation state machine. All methods are safe to call
// from multiple goroutines; each runs to completion under a single lock.
type Machine struct {
	mu sync.Mutex

	secondsPerKeyframe float64
	tickInterval       time.Duration
	scheduler          Scheduler
	now                func() time.Time
	logger             Logger

	cfg      Configuration
	fontAxes map[string]axis.Axis
	ranges   map[string]axis.Range
	timeline timeline.Timeline

	status  Status
	current int // -1 when free-running

	// Main timeline position is offset percent at anchor, advancing with
	// the clock while playing.
	offset float64
	anchor time.Time

	snapshot variation.Settings
	extra    *extraState

	// generation invalidates refresh callbacks scheduled before the last
	// cancellation.
	generation    uint64
	cancelRefresh CancelFunc

	resetListeners []ResetFunc
	tickListeners  []TickFunc

	transitions metric.Int64Counter
	ticks       metric.Int64Counter
	failures    metric.Int64Counter
}

// New creates a paused Machine with an empty timeline.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(opts Options) (*Machine, error) {
	m := &Machine{
		secondsPerKeyframe: opts.SecondsPerKeyframe,
		tickInterval:       opts.TickInterval,
		scheduler:          opts.Scheduler,
		now:                opts.Clock,
		logger:             opts.Logger,
		fontAxes:           map[string]axis.Axis{},
		ranges:             map[string]axis.Range{},
		current:            -1,
		snapshot:           variation.Settings{},
	}
	if m.secondsPerKeyframe <= 0 {
		m.secondsPerKeyframe = timeline.DefaultSecondsPerKeyframe
	}
	if m.tickInterval <= 0 {
		m.tickInterval = DefaultTickInterval
	}
	if m.scheduler == nil {
		m.scheduler = TickerScheduler{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = nopLogger{}
	}

	mt := meter()
	var err error

	m.transitions, err = mt.Int64Counter(
		"animation.transitions",
		metric.WithDescription("State machine transitions by name"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	m.ticks, err = mt.Int64Counter(
		"animation.ticks",
		metric.WithDescription("Periodic refreshes delivered to listeners"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	m.failures, err = mt.Int64Counter(
		"animation.reconfigure.failures",
		metric.WithDescription("Reconfigurations rejected for lack of keyframes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	return m, nil
}

// OnReset registers a callback fired after every successful rebuild.
func (m *Machine) OnReset(fn ResetFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetListeners = append(m.resetListeners, fn)
}

// OnTick registers a callback fired on every refresh while playing or
// during an extra-axis animation, and after discrete moves.
func (m *Machine) OnTick(fn TickFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickListeners = append(m.tickListeners, fn)
}

// Reconfigure tears down any running animation and rebuilds the timeline
// from cfg. If cfg yields no keyframes a *ConfigurationError is returned and
// the previous timeline is kept, paused.
func (m *Machine) Reconfigure(cfg Configuration) error {
	m.mu.Lock()

	m.stopTimers()
	m.extra = nil
	if m.status == Playing {
		m.offset = m.percentageAt(m.now())
		m.status = Paused
	}

	tl, fontAxes, ranges, err := m.build(cfg)
	if err != nil {
		m.failures.Add(context.Background(), 1)
		m.logger.Error("reconfiguration rejected", "font", cfg.FontName, "error", err)
		m.mu.Unlock()
		return &ConfigurationError{FontName: cfg.FontName, Err: err}
	}

	m.cfg = cfg
	m.fontAxes = fontAxes
	m.ranges = ranges
	m.timeline = tl
	m.status = Paused
	m.current = -1
	m.offset = 0
	m.snapshot = m.mainValues(0)
	m.record("reconfigure")

	m.logger.Info("timeline rebuilt",
		"font", cfg.FontName,
		"keyframes", tl.Len(),
		"duration", tl.Duration,
		"bracket", cfg.Bracket != nil,
	)

	ev := ResetEvent{FontName: cfg.FontName, Timeline: copyTimeline(tl), Snapshot: m.snapshot.Clone()}
	listeners := append([]ResetFunc(nil), m.resetListeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
	return nil
}

func (m *Machine) build(cfg Configuration) (timeline.Timeline, map[string]axis.Axis, map[string]axis.Range, error) {
	for _, a := range cfg.Axes {
		if err := a.Validate(); err != nil {
			return timeline.Timeline{}, nil, nil, err
		}
	}

	fontAxes := axis.Index(cfg.Axes)
	ranges := axis.Resolve(fontAxes, cfg.Bracket, m.logger)
	order := axis.ExplorationOrder(ranges)

	frames := keyframe.Collect(keyframe.Generate(ranges, order, m.logger))
	if len(frames) == 0 {
		return timeline.Timeline{}, nil, nil, ErrNoKeyframes
	}
	m.logger.Debug("keyframes generated",
		"axes", order,
		"candidates", keyframe.Count(ranges, order),
		"keyframes", len(frames),
	)

	return timeline.Build(frames, m.secondsPerKeyframe), fontAxes, ranges, nil
}

// Configuration returns the configuration of the current timeline.
func (m *Machine) Configuration() Configuration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Timeline returns a copy of the current timeline.
func (m *Machine) Timeline() timeline.Timeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTimeline(m.timeline)
}

// Ranges returns a copy of the resolved exploration ranges.
func (m *Machine) Ranges() map[string]axis.Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]axis.Range, len(m.ranges))
	for k, v := range m.ranges {
		out[k] = v
	}
	return out
}

// State returns a copy of the playback state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{Status: m.status}
	if m.current >= 0 {
		i := m.current
		s.CurrentKeyframe = &i
	}
	if m.extra != nil {
		s.ExtraAxis = &ExtraAxis{Tag: m.extra.tag, Active: true}
	}
	return s
}

// Percentage returns the current position on the main timeline.
func (m *Machine) Percentage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percentageAt(m.now())
}

// Timestamp returns the current position in seconds within the loop.
func (m *Machine) Timestamp() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timeline.PercentageToTimestamp(m.percentageAt(m.now()))
}

// Snapshot returns the axis values currently applied.
func (m *Machine) Snapshot() variation.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values(m.now())
}

// percentageAt must be called with mu held.
func (m *Machine) percentageAt(now time.Time) float64 {
	if m.status != Playing || m.timeline.Duration <= 0 {
		return m.offset
	}
	elapsed := now.Sub(m.anchor)
	return timeline.Wrap(m.offset + float64(elapsed)/float64(m.timeline.Duration)*100)
}

// values must be called with mu held.
func (m *Machine) values(now time.Time) variation.Settings {
	if m.extra != nil {
		return m.extra.valuesAt(now)
	}
	if m.current >= 0 && m.current < m.timeline.Len() {
		return m.timeline.Keyframes[m.current].Values.Clone()
	}
	return m.mainValues(m.percentageAt(now))
}

// mainValues must be called with mu held.
func (m *Machine) mainValues(p float64) variation.Settings {
	if m.timeline.Empty() {
		return axis.Defaults(m.fontAxes)
	}
	return m.timeline.At(p)
}

// tickEvent must be called with mu held.
func (m *Machine) tickEvent(now time.Time) TickEvent {
	p := m.percentageAt(now)
	ev := TickEvent{
		FontName:   m.cfg.FontName,
		Values:     m.values(now),
		Percentage: p,
		Timestamp:  m.timeline.PercentageToTimestamp(p),
	}
	if m.extra != nil {
		ev.ExtraAxis = m.extra.tag
		ev.ExtraPercentage = m.extra.percentageAt(now)
	}
	m.snapshot = ev.Values.Clone()
	return ev
}

// startRefresh must be called with mu held.
func (m *Machine) startRefresh() {
	m.stopTimers()
	gen := m.generation
	m.cancelRefresh = m.scheduler.Every(m.tickInterval, func() {
		m.refresh(gen)
	})
}

// stopTimers cancels any scheduled refresh. Must be called with mu held.
func (m *Machine) stopTimers() {
	m.generation++
	if m.cancelRefresh != nil {
		m.cancelRefresh()
		m.cancelRefresh = nil
	}
}

func (m *Machine) refresh(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || (m.status != Playing && m.extra == nil) {
		m.mu.Unlock()
		return
	}
	ev := m.tickEvent(m.now())
	listeners := append([]TickFunc(nil), m.tickListeners...)
	m.mu.Unlock()

	m.ticks.Add(context.Background(), 1)
	for _, fn := range listeners {
		fn(ev)
	}
}

// emitTick delivers a one-off tick for a discrete move. Must be called
// with mu held; listeners run after the lock is released via the returned
// func.
func (m *Machine) emitTick() func() {
	ev := m.tickEvent(m.now())
	listeners := append([]TickFunc(nil), m.tickListeners...)
	return func() {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

func (m *Machine) record(transition string) {
	m.transitions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("transition", transition)))
}

func copyTimeline(tl timeline.Timeline) timeline.Timeline {
	out := timeline.Timeline{Duration: tl.Duration, Keyframes: make([]timeline.Keyframe, len(tl.Keyframes))}
	for i, k := range tl.Keyframes {
		out.Keyframes[i] = timeline.Keyframe{Percentage: k.Percentage, Values: k.Values.Clone()}
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
