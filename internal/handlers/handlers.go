// Package handlers binds the line commands read by the CLI to the animation
// machine and the bookmark store.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vfproof/keyframer/internal/animation"
	"github.com/vfproof/keyframer/internal/axis"
	"github.com/vfproof/keyframer/internal/dispatcher"
	"github.com/vfproof/keyframer/internal/storage"
	"github.com/vfproof/keyframer/internal/util"
	"github.com/vfproof/keyframer/pkg/core"
	"github.com/vfproof/keyframer/pkg/variation"
)

// ErrMissingArg is returned when a command lacks a required argument.
var ErrMissingArg = errors.New("missing argument")

// ErrNoBackend is returned by bookmark commands when no storage is configured.
var ErrNoBackend = errors.New("no storage backend")

const deleteBufferSize = 64

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Machine *animation.Machine
	Backend storage.Backend
	Logger  *slog.Logger
}

// Service provides handler methods for the line commands.
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// StateResult is the reply to :STATE:.
type StateResult struct {
	Font            string  `json:"font"`
	Status          string  `json:"status"`
	CurrentKeyframe *int    `json:"currentKeyframe,omitempty"`
	ExtraAxis       string  `json:"extraAxis,omitempty"`
	Keyframes       int     `json:"keyframes"`
	Percentage      float64 `json:"percentage"`
	Timestamp       float64 `json:"timestamp"`
}

// Register adds every command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(":FONT:", s.Font, dispatcher.Logged())
	d.Register(":BRACKET:", s.Bracket, dispatcher.Logged())

	d.Register(":PLAY:", s.Play)
	d.Register(":PAUSE:", s.Pause)
	d.Register(":JUMP:", s.Jump)
	d.Register(":STEP:", s.Step)
	d.Register(":SEEK:", s.Seek)
	d.Register(":EXTRA:START:", s.ExtraStart)
	d.Register(":EXTRA:STOP:", s.ExtraStop)

	d.Register(":STATE:", s.State)
	d.Register(":TIMESTAMP:", s.Timestamp)
	d.Register(":SNAPSHOT:", s.Snapshot)
	d.Register(":KEYFRAMES:", s.Keyframes)

	d.Register(":BOOKMARK:SAVE:", s.SaveBookmark, dispatcher.Logged())
	d.Register(":BOOKMARK:LOAD:", s.LoadBookmark, dispatcher.Logged())
	d.Register(":BOOKMARK:LIST:", s.ListBookmarks)
	d.Register(":BOOKMARK:DELETE:", s.DeleteBookmark,
		dispatcher.Buffered(deleteBufferSize), dispatcher.Logged())
}

// Font loads a font's axes: args are the font name and a JSON array of
// {tag,min,default,max}. The current bracket is kept.
func (s *Service) Font(e dispatcher.Event) (any, error) {
	name := util.Arg(e.Args, 0)
	raw := util.Arg(e.Args, 1)
	if raw == "" {
		return nil, fmt.Errorf("%w: axes", ErrMissingArg)
	}

	var axes []axis.Axis
	if err := json.Unmarshal([]byte(raw), &axes); err != nil {
		return nil, fmt.Errorf("error unmarshalling axes: %w", err)
	}

	cfg := s.deps.Machine.Configuration()
	cfg.FontName = name
	cfg.Axes = axes
	if err := s.deps.Machine.Reconfigure(cfg); err != nil {
		return nil, err
	}
	s.deps.Logger.Info("Font loaded", "font", name, "axes", len(axes))
	return s.deps.Machine.Timeline().Len(), nil
}

// Bracket sets the bracket and rebuilds the timeline. The first argument is
// either a JSON {pivot,tolerances} object or the pivot as variation
// settings ("wght" 500, "wdth" 90), in which case an optional second
// argument holds the tolerances as JSON. No argument clears the bracket.
func (s *Service) Bracket(e dispatcher.Event) (any, error) {
	bracket, err := parseBracket(util.Arg(e.Args, 0), util.Arg(e.Args, 1))
	if err != nil {
		return nil, err
	}

	cfg := s.deps.Machine.Configuration()
	cfg.Bracket = bracket
	if err := s.deps.Machine.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return s.deps.Machine.Timeline().Len(), nil
}

func parseBracket(raw, tolerances string) (*axis.Bracket, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}

	bracket := &axis.Bracket{}
	if strings.HasPrefix(raw, "{") {
		if err := json.Unmarshal([]byte(raw), bracket); err != nil {
			return nil, fmt.Errorf("error unmarshalling bracket: %w", err)
		}
		return bracket, nil
	}

	pivot, err := variation.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid bracket pivot: %w", err)
	}
	if len(pivot) == 0 {
		return nil, fmt.Errorf("invalid bracket pivot %q: no axes", raw)
	}
	bracket.Pivot = pivot.Map()
	if tolerances != "" {
		if err := json.Unmarshal([]byte(tolerances), &bracket.Tolerances); err != nil {
			return nil, fmt.Errorf("error unmarshalling tolerances: %w", err)
		}
	}
	return bracket, nil
}

func (s *Service) Play(dispatcher.Event) (any, error) {
	if err := s.deps.Machine.Play(); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Service) Pause(dispatcher.Event) (any, error) {
	s.deps.Machine.Pause()
	return "ok", nil
}

// Jump pauses on the keyframe given as the first argument.
func (s *Service) Jump(e dispatcher.Event) (any, error) {
	raw := util.Arg(e.Args, 0)
	if raw == "" {
		return nil, fmt.Errorf("%w: keyframe index", ErrMissingArg)
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid keyframe index %q: %w", raw, err)
	}
	if err := s.deps.Machine.JumpToKeyframe(i); err != nil {
		return nil, err
	}
	return s.currentKeyframe(), nil
}

// Step accepts "forward" (the default) or "back".
func (s *Service) Step(e dispatcher.Event) (any, error) {
	dir, err := parseDirection(util.Arg(e.Args, 0))
	if err != nil {
		return nil, err
	}
	if err := s.deps.Machine.Step(dir); err != nil {
		return nil, err
	}
	return s.currentKeyframe(), nil
}

func (s *Service) Seek(e dispatcher.Event) (any, error) {
	raw := util.Arg(e.Args, 0)
	if raw == "" {
		return nil, fmt.Errorf("%w: seconds", ErrMissingArg)
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid seconds %q: %w", raw, err)
	}
	if err := s.deps.Machine.Seek(seconds); err != nil {
		return nil, err
	}
	return s.deps.Machine.Timestamp(), nil
}

func (s *Service) ExtraStart(e dispatcher.Event) (any, error) {
	tag := util.Arg(e.Args, 0)
	if tag == "" {
		return nil, fmt.Errorf("%w: axis tag", ErrMissingArg)
	}
	if err := s.deps.Machine.StartExtraAxis(tag); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Service) ExtraStop(dispatcher.Event) (any, error) {
	s.deps.Machine.StopExtraAxis()
	return "ok", nil
}

func (s *Service) State(dispatcher.Event) (any, error) {
	m := s.deps.Machine
	st := m.State()
	res := StateResult{
		Font:            m.Configuration().FontName,
		Status:          st.Status.String(),
		CurrentKeyframe: st.CurrentKeyframe,
		Keyframes:       m.Timeline().Len(),
		Percentage:      m.Percentage(),
		Timestamp:       m.Timestamp(),
	}
	if st.ExtraAxis != nil {
		res.ExtraAxis = st.ExtraAxis.Tag
	}
	return res, nil
}

func (s *Service) Timestamp(dispatcher.Event) (any, error) {
	return s.deps.Machine.Timestamp(), nil
}

// Snapshot returns the current values in font-variation-settings form.
func (s *Service) Snapshot(dispatcher.Event) (any, error) {
	return s.deps.Machine.Snapshot().String(), nil
}

func (s *Service) Keyframes(dispatcher.Event) (any, error) {
	return s.deps.Machine.Timeline().Keyframes, nil
}

// SaveBookmark stores the current configuration and position and returns
// the new bookmark's ID.
func (s *Service) SaveBookmark(dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}

	cfg := s.deps.Machine.Configuration()
	if len(cfg.Axes) == 0 {
		return nil, &animation.ConfigurationError{Err: animation.ErrNoKeyframes}
	}
	pos := s.deps.Machine.Position()

	b := &core.Bookmark{
		FontName:      cfg.FontName,
		Axes:          cfg.Axes,
		Bracket:       cfg.Bracket,
		Timestamp:     pos.Timestamp,
		KeyframeIndex: pos.KeyframeIndex,
		Playing:       pos.Playing,
	}
	if err := s.deps.Backend.SaveBookmark(b); err != nil {
		return nil, fmt.Errorf("error saving bookmark: %w", err)
	}
	s.deps.Logger.Info("Bookmark saved", "id", b.ID, "font", b.FontName)
	return b.ID, nil
}

// LoadBookmark rebuilds the bookmarked timeline and returns to its position.
func (s *Service) LoadBookmark(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	id := util.Arg(e.Args, 0)
	if id == "" {
		return nil, fmt.Errorf("%w: bookmark id", ErrMissingArg)
	}

	b, err := s.deps.Backend.GetBookmark(id)
	if err != nil {
		return nil, err
	}

	cfg := animation.Configuration{FontName: b.FontName, Axes: b.Axes, Bracket: b.Bracket}
	pos := animation.Position{Timestamp: b.Timestamp, KeyframeIndex: b.KeyframeIndex, Playing: b.Playing}
	if err := s.deps.Machine.Restore(cfg, pos); err != nil {
		return nil, err
	}
	return s.State(e)
}

func (s *Service) ListBookmarks(dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	return s.deps.Backend.ListBookmarks()
}

func (s *Service) DeleteBookmark(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	id := util.Arg(e.Args, 0)
	if id == "" {
		return nil, fmt.Errorf("%w: bookmark id", ErrMissingArg)
	}
	if err := s.deps.Backend.DeleteBookmark(id); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Service) currentKeyframe() any {
	if i := s.deps.Machine.State().CurrentKeyframe; i != nil {
		return *i
	}
	return nil
}

func parseDirection(s string) (animation.Direction, error) {
	switch strings.ToLower(s) {
	case "", "forward", "next":
		return animation.Forward, nil
	case "back", "backward", "prev":
		return animation.Back, nil
	default:
		return animation.Forward, fmt.Errorf("invalid step direction %q", s)
	}
}
