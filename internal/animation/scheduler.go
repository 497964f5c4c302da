package animation

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled callback. Calling it more than once is a no-op.
type CancelFunc func()

// Scheduler runs fn every interval until cancelled.
type Scheduler interface {
	Every(interval time.Duration, fn func()) CancelFunc
}

// TickerScheduler schedules callbacks on a time.Ticker goroutine.
type TickerScheduler struct{}

// Every starts a goroutine calling fn on each tick.
func (TickerScheduler) Every(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
