package influx

import (
	"context"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/vfproof/keyframer/internal/animation"
	"github.com/vfproof/keyframer/internal/queue"
)

// Measurement is the measurement name of axis snapshots.
const Measurement = "axis_snapshot"

// maxBuffered caps the points held between flushes.
const maxBuffered = 10000

// PointWriter is the sink a Recorder flushes to. *Manager implements it.
type PointWriter interface {
	WritePoints(ctx context.Context, points ...*influxdb2_write.Point) error
	Flush() error
}

// Recorder turns tick events into points and writes them in batches.
type Recorder struct {
	writer   PointWriter
	points   *queue.Queue[*influxdb2_write.Point]
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewRecorder creates a recorder flushing every interval once started.
func NewRecorder(w PointWriter, interval time.Duration, log zerolog.Logger) *Recorder {
	if interval <= 0 {
		interval = time.Second
	}
	return &Recorder{
		writer:   w,
		points:   queue.NewBounded[*influxdb2_write.Point](maxBuffered),
		interval: interval,
		log:      log,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// TickPoint converts a tick into a point: one field per axis plus the
// timeline position, tagged with font and mode.
func TickPoint(ev animation.TickEvent, at time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("font", ev.FontName).
		AddTag("mode", ev.Mode()).
		AddField("percentage", ev.Percentage).
		AddField("timestamp", ev.Timestamp).
		SetTime(at)

	if ev.ExtraAxis != "" {
		p.AddTag("extra_axis", ev.ExtraAxis)
		p.AddField("extra_percentage", ev.ExtraPercentage)
	}
	for _, v := range ev.Values {
		p.AddField(v.Tag, v.Value)
	}
	return p
}

// Record queues a point for ev. It is a TickFunc and never blocks on I/O.
func (r *Recorder) Record(ev animation.TickEvent) {
	if dropped := r.points.Push(TickPoint(ev, r.now())); dropped > 0 {
		r.log.Warn().Int("dropped", dropped).Msg("Snapshot buffer full, dropping oldest points")
	}
}

// Pending returns the number of points waiting for the next flush.
func (r *Recorder) Pending() int {
	return r.points.Len()
}

// Start begins periodic flushing.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				if err := r.FlushNow(context.Background()); err != nil {
					r.log.Error().Err(err).Msg("Error flushing axis snapshots")
				}
			}
		}
	}()
}

// FlushNow writes all queued points.
func (r *Recorder) FlushNow(ctx context.Context) error {
	batch := r.points.Drain(0)
	if len(batch) == 0 {
		return nil
	}
	if err := r.writer.WritePoints(ctx, batch...); err != nil {
		return err
	}
	r.log.Trace().Int("points", len(batch)).Msg("Flushed axis snapshots")
	return r.writer.Flush()
}

// Close stops the flush loop and writes what is left.
func (r *Recorder) Close() error {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
	return r.FlushNow(context.Background())
}
