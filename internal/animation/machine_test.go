package animation

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfproof/keyframer/internal/axis"
	"github.com/vfproof/keyframer/pkg/variation"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, kv ...any) { l.log("DEBUG", msg, kv) }
func (l *testLogger) Info(msg string, kv ...any)  { l.log("INFO", msg, kv) }
func (l *testLogger) Warn(msg string, kv ...any)  { l.log("WARN", msg, kv) }
func (l *testLogger) Error(msg string, kv ...any) { l.log("ERROR", msg, kv) }

func (l *testLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.messages {
		if len(m) > len(level) && m[:len(level)] == level {
			n++
		}
	}
	return n
}

type fakeJob struct {
	fn        func()
	cancelled bool
}

// fakeScheduler records scheduled callbacks and runs them on fire().
type fakeScheduler struct {
	mu   sync.Mutex
	jobs []*fakeJob
}

func (s *fakeScheduler) Every(_ time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &fakeJob{fn: fn}
	s.jobs = append(s.jobs, j)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		j.cancelled = true
	}
}

func (s *fakeScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if !j.cancelled {
			n++
		}
	}
	return n
}

// fire runs every active job once.
func (s *fakeScheduler) fire() {
	s.mu.Lock()
	var fns []func()
	for _, j := range s.jobs {
		if !j.cancelled {
			fns = append(fns, j.fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// fireAll runs every job ever scheduled, cancelled or not.
func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.jobs))
	for _, j := range s.jobs {
		fns = append(fns, j.fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	m      *Machine
	sched  *fakeScheduler
	clock  *fakeClock
	logger *testLogger

	mu     sync.Mutex
	ticks  []TickEvent
	resets []ResetEvent
}

func (h *harness) lastTick(t *testing.T) TickEvent {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.ticks)
	return h.ticks[len(h.ticks)-1]
}

func (h *harness) tickCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ticks)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sched:  &fakeScheduler{},
		clock:  &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		logger: &testLogger{},
	}

	m, err := New(Options{
		SecondsPerKeyframe: 2,
		TickInterval:       50 * time.Millisecond,
		Scheduler:          h.sched,
		Clock:              h.clock.Now,
		Logger:             h.logger,
	})
	require.NoError(t, err)

	m.OnTick(func(ev TickEvent) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.ticks = append(h.ticks, ev)
	})
	m.OnReset(func(ev ResetEvent) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.resets = append(h.resets, ev)
	})

	h.m = m
	return h
}

func testConfig() Configuration {
	return Configuration{
		FontName: "TestVF",
		Axes: []axis.Axis{
			{Tag: axis.Weight, Min: 100, Default: 400, Max: 900},
			{Tag: axis.Width, Min: 75, Default: 100, Max: 125},
			{Tag: "XTRA", Min: 323, Default: 468, Max: 603},
		},
	}
}

func configured(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	require.NoError(t, h.m.Reconfigure(testConfig()))
	return h
}

func value(t *testing.T, s variation.Settings, tag string) float64 {
	t.Helper()
	v, ok := s.Get(tag)
	require.True(t, ok, "missing %s in %s", tag, s)
	return v
}

func TestReconfigure_BuildsTimelineAndFiresReset(t *testing.T) {
	h := configured(t)

	tl := h.m.Timeline()
	require.Equal(t, 9, tl.Len(), "custom axes stay out of the main timeline")
	assert.Equal(t, 18.0, tl.DurationSeconds())

	require.Len(t, h.resets, 1)
	ev := h.resets[0]
	assert.Equal(t, "TestVF", ev.FontName)
	assert.Equal(t, 9, ev.Timeline.Len())
	assert.Equal(t, `"wght" 400, "wdth" 100`, ev.Snapshot.String())

	st := h.m.State()
	assert.Equal(t, Paused, st.Status)
	assert.Nil(t, st.CurrentKeyframe)
	assert.Nil(t, st.ExtraAxis)
	assert.Equal(t, 0.0, h.m.Timestamp())

	h.logger.mu.Lock()
	defer h.logger.mu.Unlock()
	assert.Contains(t, h.logger.messages,
		"DEBUG: keyframes generated [axes [wght wdth] candidates 9 keyframes 9]")
}

func TestReconfigure_WithBracket(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig()
	cfg.Bracket = &axis.Bracket{
		Pivot:      map[string]float64{axis.Weight: 400},
		Tolerances: map[string][2]float64{axis.Weight: {-100, 100}},
	}

	require.NoError(t, h.m.Reconfigure(cfg))

	assert.Equal(t, axis.Range{Tag: axis.Weight, Min: 300, Default: 400, Max: 500}, h.m.Ranges()[axis.Weight])
	tl := h.m.Timeline()
	require.Equal(t, 3, tl.Len())
	assert.Equal(t, `"wght" 300`, tl.Keyframes[1].Values.String())
}

func TestReconfigure_NoExplorableAxes(t *testing.T) {
	h := newHarness(t)

	err := h.m.Reconfigure(Configuration{
		FontName: "CustomOnly",
		Axes:     []axis.Axis{{Tag: "XTRA", Min: 323, Default: 468, Max: 603}},
	})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "CustomOnly", cfgErr.FontName)
	assert.True(t, errors.Is(err, ErrNoKeyframes))
	assert.Empty(t, h.resets)

	err = h.m.Play()
	assert.ErrorIs(t, err, ErrNoKeyframes)
	assert.Equal(t, Paused, h.m.State().Status)
	assert.Equal(t, 0, h.sched.active())
	assert.ErrorIs(t, h.m.Step(Forward), ErrNoKeyframes)
	assert.ErrorIs(t, h.m.JumpToKeyframe(0), ErrNoKeyframes)
}

func TestReconfigure_FailureKeepsPreviousTimeline(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.Play())

	cfg := testConfig()
	cfg.FontName = "Other"
	cfg.Bracket = &axis.Bracket{Pivot: map[string]float64{"GRAD": 0}}
	err := h.m.Reconfigure(cfg)

	require.Error(t, err)
	assert.Equal(t, 9, h.m.Timeline().Len())
	assert.Equal(t, "TestVF", h.m.Configuration().FontName)
	assert.Equal(t, Paused, h.m.State().Status)
	assert.Equal(t, 0, h.sched.active())
	assert.Equal(t, 1, h.logger.count("WARN"), "unknown pivot axis is logged")
	require.NoError(t, h.m.Play(), "previous timeline is still playable")
}

func TestReconfigure_InvalidAxis(t *testing.T) {
	h := newHarness(t)

	err := h.m.Reconfigure(Configuration{Axes: []axis.Axis{{Tag: "wg", Min: 1, Default: 2, Max: 3}}})

	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestReconfigure_CancelsRefreshFirst(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.Play())
	require.Equal(t, 1, h.sched.active())
	before := h.tickCount()

	require.NoError(t, h.m.Reconfigure(testConfig()))

	assert.Equal(t, 0, h.sched.active())
	h.sched.fireAll()
	assert.Equal(t, before, h.tickCount(), "stale refresh must not tick")
	assert.Len(t, h.resets, 2)
	assert.Nil(t, h.m.State().CurrentKeyframe)
}

func TestPlay_AdvancesWithClock(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.JumpToKeyframe(3))

	require.NoError(t, h.m.Play())

	st := h.m.State()
	assert.Equal(t, Playing, st.Status)
	assert.Nil(t, st.CurrentKeyframe, "play clears the current keyframe")
	assert.Equal(t, 1, h.sched.active())

	h.clock.Advance(2 * time.Second)
	h.sched.fire()

	ev := h.lastTick(t)
	assert.InDelta(t, 44.44, ev.Percentage, 0.01)
	assert.InDelta(t, 8, ev.Timestamp, 1e-9)
	assert.Equal(t, "main", ev.Mode())
	assert.InDelta(t, 100, value(t, ev.Values, axis.Weight), 1e-6)
	assert.InDelta(t, 75, value(t, ev.Values, axis.Width), 0.5)
}

func TestPlay_WrapsAroundTheLoop(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.Play())

	h.clock.Advance(18*time.Second + 500*time.Millisecond)

	assert.InDelta(t, 0.5, h.m.Timestamp(), 1e-9)
}

func TestPlay_Twice(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.Play())
	h.clock.Advance(time.Second)
	require.NoError(t, h.m.Play())

	assert.Equal(t, 1, h.sched.active())
	assert.InDelta(t, 1, h.m.Timestamp(), 1e-9, "second play keeps running")
}

func TestPause_StopsRefresh(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.Play())
	h.clock.Advance(3 * time.Second)

	h.m.Pause()
	h.m.Pause()

	assert.Equal(t, Paused, h.m.State().Status)
	assert.Equal(t, 0, h.sched.active())
	before := h.tickCount()
	h.sched.fireAll()
	assert.Equal(t, before, h.tickCount())

	h.clock.Advance(5 * time.Second)
	assert.InDelta(t, 3, h.m.Timestamp(), 1e-9, "paused position does not advance")
}

func TestPause_WhenNeverPlayed(t *testing.T) {
	h := newHarness(t)
	assert.NotPanics(t, func() { h.m.Pause() })
}

func TestJumpToKeyframe_AppliesExactValues(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.Play())

	require.NoError(t, h.m.JumpToKeyframe(4))

	st := h.m.State()
	assert.Equal(t, Paused, st.Status)
	require.NotNil(t, st.CurrentKeyframe)
	assert.Equal(t, 4, *st.CurrentKeyframe)
	assert.Equal(t, 0, h.sched.active())

	tl := h.m.Timeline()
	assert.InDelta(t, tl.IndexToTimestamp(4), h.m.Timestamp(), 1e-9)
	assert.Equal(t, tl.Keyframes[4].Values, h.m.Snapshot())
	assert.Equal(t, tl.Keyframes[4].Values, h.lastTick(t).Values)
	assert.Equal(t, `"wght" 100, "wdth" 75`, h.m.Snapshot().String())
}

func TestJumpToKeyframe_ClampsOutOfRange(t *testing.T) {
	h := configured(t)

	require.NoError(t, h.m.JumpToKeyframe(42))
	assert.Equal(t, 8, *h.m.State().CurrentKeyframe)

	require.NoError(t, h.m.JumpToKeyframe(-3))
	assert.Equal(t, 0, *h.m.State().CurrentKeyframe)

	assert.Equal(t, 2, h.logger.count("WARN"))
}

func TestStep_ForwardBackPairReturns(t *testing.T) {
	h := configured(t)

	for i := 0; i < 9; i++ {
		require.NoError(t, h.m.JumpToKeyframe(i))
		require.NoError(t, h.m.Step(Forward))
		require.NoError(t, h.m.Step(Back))
		assert.Equal(t, i, *h.m.State().CurrentKeyframe, "index %d", i)
	}
}

func TestStep_WrapsAtBounds(t *testing.T) {
	h := configured(t)

	require.NoError(t, h.m.JumpToKeyframe(8))
	require.NoError(t, h.m.Step(Forward))
	assert.Equal(t, 0, *h.m.State().CurrentKeyframe)

	require.NoError(t, h.m.Step(Back))
	assert.Equal(t, 8, *h.m.State().CurrentKeyframe)
}

func TestStep_FreeRunning(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		dir     Direction
		want    int
	}{
		{name: "between forward rounds up", elapsed: 3 * time.Second, dir: Forward, want: 2},
		{name: "between back rounds down", elapsed: 3 * time.Second, dir: Back, want: 1},
		{name: "on keyframe forward", elapsed: 4 * time.Second, dir: Forward, want: 3},
		{name: "on keyframe back", elapsed: 4 * time.Second, dir: Back, want: 1},
		{name: "start back wraps", elapsed: 0, dir: Back, want: 8},
		{name: "past last forward wraps", elapsed: 17 * time.Second, dir: Forward, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := configured(t)
			require.NoError(t, h.m.Play())
			h.clock.Advance(tt.elapsed)

			require.NoError(t, h.m.Step(tt.dir))

			st := h.m.State()
			assert.Equal(t, Paused, st.Status)
			require.NotNil(t, st.CurrentKeyframe)
			assert.Equal(t, tt.want, *st.CurrentKeyframe)
		})
	}
}

func TestSeek(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.JumpToKeyframe(2))

	require.NoError(t, h.m.Seek(9))

	assert.Nil(t, h.m.State().CurrentKeyframe)
	assert.InDelta(t, 9, h.m.Timestamp(), 1e-9)
	assert.InDelta(t, 50, h.m.Percentage(), 1e-9)

	require.NoError(t, h.m.Seek(-1))
	assert.InDelta(t, 17, h.m.Timestamp(), 1e-9)
}

func TestExtraAxis_LoopsWhileMainIsSuspended(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.Play())
	h.clock.Advance(time.Second)
	frozen := h.m.Percentage()

	require.NoError(t, h.m.StartExtraAxis("XTRA"))

	st := h.m.State()
	require.NotNil(t, st.ExtraAxis)
	assert.Equal(t, "XTRA", st.ExtraAxis.Tag)
	assert.True(t, st.ExtraAxis.Active)
	assert.Equal(t, 1, h.sched.active())

	snap := h.m.Snapshot()
	assert.Equal(t, 323.0, value(t, snap, "XTRA"))
	assert.Equal(t, 400.0, value(t, snap, axis.Weight))
	assert.InDelta(t, 87.5, value(t, snap, axis.Width), 0.1)

	h.clock.Advance(2 * time.Second)
	h.sched.fire()
	ev := h.lastTick(t)
	assert.Equal(t, "extra", ev.Mode())
	assert.Equal(t, "XTRA", ev.ExtraAxis)
	assert.InDelta(t, 468, value(t, ev.Values, "XTRA"), 0.5)
	assert.InDelta(t, frozen, ev.Percentage, 1e-9, "main timeline does not advance")

	h.clock.Advance(2 * time.Second)
	assert.InDelta(t, 603, value(t, h.m.Snapshot(), "XTRA"), 0.5)

	h.clock.Advance(2 * time.Second)
	assert.InDelta(t, 323, value(t, h.m.Snapshot(), "XTRA"), 1e-6, "loop returns to min")

	h.m.StopExtraAxis()

	st = h.m.State()
	assert.Nil(t, st.ExtraAxis)
	assert.Equal(t, Playing, st.Status)
	assert.InDelta(t, frozen, h.m.Percentage(), 1e-9)
	assert.Equal(t, 1, h.sched.active())

	h.clock.Advance(time.Second)
	assert.InDelta(t, 2, h.m.Timestamp(), 1e-9)
}

func TestExtraAxis_ResumesPausedKeyframe(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.JumpToKeyframe(5))

	require.NoError(t, h.m.StartExtraAxis("XTRA"))
	require.NotNil(t, h.m.State().CurrentKeyframe, "current keyframe survives the extra axis")
	h.clock.Advance(3 * time.Second)

	h.m.StopExtraAxis()
	h.m.StopExtraAxis()

	st := h.m.State()
	assert.Equal(t, Paused, st.Status)
	assert.Equal(t, 5, *st.CurrentKeyframe)
	assert.Equal(t, 0, h.sched.active())
	assert.Equal(t, h.m.Timeline().Keyframes[5].Values, h.m.Snapshot())
}

func TestExtraAxis_SwitchKeepsResumeState(t *testing.T) {
	h := configured(t)
	err := h.m.Reconfigure(Configuration{
		FontName: "TwoCustom",
		Axes: []axis.Axis{
			{Tag: axis.Weight, Min: 100, Default: 400, Max: 900},
			{Tag: "XTRA", Min: 323, Default: 468, Max: 603},
			{Tag: "YOPQ", Min: 25, Default: 79, Max: 135},
		},
	})
	require.NoError(t, err)
	require.NoError(t, h.m.Play())

	require.NoError(t, h.m.StartExtraAxis("XTRA"))
	require.NoError(t, h.m.StartExtraAxis("YOPQ"))
	assert.Equal(t, 1, h.sched.active())
	assert.Equal(t, "YOPQ", h.m.State().ExtraAxis.Tag)
	_, hasXtra := h.m.Snapshot().Get("XTRA")
	assert.False(t, hasXtra, "held values come from before the first extra axis")

	h.m.StopExtraAxis()
	assert.Equal(t, Playing, h.m.State().Status)
}

func TestExtraAxis_UnknownAxis(t *testing.T) {
	h := configured(t)

	err := h.m.StartExtraAxis("GRAD")

	assert.ErrorIs(t, err, ErrUnknownAxis)
	assert.Nil(t, h.m.State().ExtraAxis)
}

func TestExtraAxis_EndedByMainTransitions(t *testing.T) {
	h := configured(t)

	require.NoError(t, h.m.StartExtraAxis("XTRA"))
	require.NoError(t, h.m.Play())
	assert.Nil(t, h.m.State().ExtraAxis)
	assert.Equal(t, Playing, h.m.State().Status)

	require.NoError(t, h.m.StartExtraAxis("XTRA"))
	h.m.Pause()
	assert.Nil(t, h.m.State().ExtraAxis)
	assert.Equal(t, 0, h.sched.active())

	require.NoError(t, h.m.StartExtraAxis("XTRA"))
	require.NoError(t, h.m.Reconfigure(testConfig()))
	assert.Nil(t, h.m.State().ExtraAxis)
	assert.Equal(t, 0, h.sched.active())
}

func TestRestore(t *testing.T) {
	h := configured(t)
	require.NoError(t, h.m.JumpToKeyframe(6))
	pos := h.m.Position()
	cfg := h.m.Configuration()

	other := newHarness(t)
	require.NoError(t, other.m.Restore(cfg, pos))

	assert.Equal(t, 6, *other.m.State().CurrentKeyframe)
	assert.Equal(t, h.m.Snapshot(), other.m.Snapshot())

	require.NoError(t, other.m.Restore(cfg, Position{Timestamp: 5, Playing: true}))
	assert.Equal(t, Playing, other.m.State().Status)
	assert.InDelta(t, 5, other.m.Timestamp(), 1e-9)
}

func TestTickerScheduler_CancelIdempotent(t *testing.T) {
	var calls atomic.Int32
	cancel := TickerScheduler{}.Every(time.Millisecond, func() { calls.Add(1) })

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)

	cancel()
	assert.NotPanics(t, func() { cancel() })

	time.Sleep(5 * time.Millisecond)
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), after+1)
}

func TestMachine_DefaultsWithRealScheduler(t *testing.T) {
	m, err := New(Options{TickInterval: time.Millisecond})
	require.NoError(t, err)

	var ticks atomic.Int32
	m.OnTick(func(TickEvent) { ticks.Add(1) })
	require.NoError(t, m.Reconfigure(testConfig()))
	require.NoError(t, m.Play())

	assert.Eventually(t, func() bool { return ticks.Load() > 3 }, time.Second, time.Millisecond)
	m.Pause()
}
