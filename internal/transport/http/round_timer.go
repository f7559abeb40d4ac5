package http

import (
	"sync"
	"time"
)

// Scheduler runs fn every interval for as long as fn returns true.
// The returned func stops it early; calling it more than once is safe.
type Scheduler interface {
	Every(interval time.Duration, fn func() bool) (stop func())
}

// TickerScheduler is the production Scheduler backed by time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func() bool) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !fn() {
					stop()
					return
				}
			}
		}
	}()
	return stop
}

// roundTimers keeps at most one poll timer per room. Starting a timer for a
// room cancels the one it supersedes.
type roundTimers struct {
	mu    sync.Mutex
	stops map[string]func()
}

func newRoundTimers() *roundTimers {
	return &roundTimers{stops: make(map[string]func())}
}

func (t *roundTimers) replace(roomID string, stop func()) {
	t.mu.Lock()
	prev := t.stops[roomID]
	t.stops[roomID] = stop
	t.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (t *roundTimers) stopAll() {
	t.mu.Lock()
	stops := t.stops
	t.stops = make(map[string]func())
	t.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}
