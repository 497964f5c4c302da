package dispatcher

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/vfproof/keyframer/internal/dispatcher"

// instruments are created on the global meter provider, so they are no-ops
// until one is installed.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

func newInstruments(d *Dispatcher) (instruments, error) {
	m := otel.Meter(instrumentationName)

	var ins instruments
	var errs [4]error
	ins.queueSize, errs[0] = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in buffered handler queues"))
	ins.processed, errs[1] = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Events handled by buffered handlers"))
	ins.dropped, errs[2] = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Events rejected because a queue was full"))
	if err := errors.Join(errs[:3]...); err != nil {
		return ins, err
	}

	_, errs[3] = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for cmd, q := range d.queues {
			o.ObserveInt64(ins.queueSize, int64(len(q)), metric.WithAttributes(commandAttr(cmd)))
		}
		return nil
	}, ins.queueSize)
	return ins, errs[3]
}

func commandAttr(command string) attribute.KeyValue {
	return attribute.String("command", command)
}
