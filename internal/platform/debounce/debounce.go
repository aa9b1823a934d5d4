package debounce

import (
	"sync"
	"time"
)

// Debouncer delays running a callback until its input has settled for the
// configured delay. Each Trigger replaces the pending value and restarts the
// timer, so a burst of triggers produces exactly one run with the last value.
//
// A run that has already started cannot be cancelled at the transport level.
// Instead it receives a stale func: once a newer trigger arrives, stale
// reports true and the run is expected to discard its result.
type Debouncer[T any] struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
	armed bool
	run   func(value T, stale func() bool)
}

func New[T any](delay time.Duration, run func(value T, stale func() bool)) *Debouncer[T] {
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}
	return &Debouncer[T]{delay: delay, run: run}
}

func (d *Debouncer[T]) Trigger(value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	myGen := d.gen
	d.armed = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.disarm(myGen)
		d.run(value, func() bool {
			d.mu.Lock()
			defer d.mu.Unlock()
			return d.gen != myGen
		})
	})
}

// Pending reports whether a run is scheduled or still executing for the
// latest trigger. A superseded run finishing does not clear it.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

func (d *Debouncer[T]) disarm(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == gen {
		d.armed = false
	}
}

// Stop cancels any pending run. Runs already started are unaffected beyond
// their stale check.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
