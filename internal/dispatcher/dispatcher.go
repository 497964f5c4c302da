// Package dispatcher routes command lines such as ":JUMP: 4" to handlers.
// Handlers run inline unless registered with Buffered, in which case a
// dedicated goroutine drains a per-command queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking buffered handler drops an event.
	ErrQueueFull = errors.New("queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

// Event is one command line, e.g. ":JUMP:" with Args ["4"].
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

type HandlerFunc func(Event) (any, error)

// Logger is satisfied by logging.DispatcherLogger and by test fakes.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type Option func(*registration)

type registration struct {
	queue    int
	blocking bool
	logged   bool
}

// Buffered runs the handler asynchronously behind a queue of size events.
// Dispatch replies "queued".
func Buffered(size int) Option {
	return func(r *registration) { r.queue = size }
}

// Blocking makes Dispatch wait for queue space instead of dropping.
func Blocking() Option {
	return func(r *registration) { r.blocking = true }
}

// Logged logs each call with its duration, and failures at error level.
func Logged() Option {
	return func(r *registration) { r.logged = true }
}

// Dispatcher holds the command table. Register is meant for startup; it is
// not safe to call concurrently with Dispatch.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	metrics  instruments

	mu      sync.RWMutex
	queues  map[string]chan Event
	closed  bool
	workers sync.WaitGroup
}

func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
	}
	ins, err := newInstruments(d)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher metrics: %w", err)
	}
	d.metrics = ins
	return d, nil
}

func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var r registration
	for _, opt := range opts {
		opt(&r)
	}
	if r.queue > 0 {
		h = d.queued(command, r.queue, r.blocking, h)
	}
	if r.logged {
		h = d.logged(command, h)
	}
	d.handlers[command] = h
}

// Dispatch runs the handler for e.Command. A zero Timestamp is set to now.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	// held for the whole call so Close never closes a queue mid-send
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}

	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	return slices.Sorted(maps.Keys(d.handlers))
}

func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Close rejects further events and waits for every queue to drain. It is
// safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) queued(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	q := make(chan Event, size)
	attrs := metric.WithAttributes(commandAttr(command))

	d.mu.Lock()
	d.queues[command] = q
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range q {
			if _, err := h(e); err != nil {
				d.logger.Error("buffered event failed", "command", command, "error", err)
			}
			d.metrics.processed.Add(context.Background(), 1, attrs)
		}
	}()

	return func(e Event) (any, error) {
		if blocking {
			q <- e
			return "queued", nil
		}
		select {
		case q <- e:
			return "queued", nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, attrs)
			d.logger.Warn("dropping event", "command", command, "queued", len(q))
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		return result, nil
	}
}
