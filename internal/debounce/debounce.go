// Package debounce delays high-rate input until it has been quiet for a fixed period.
package debounce

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the search-box delay used by the tables
const DefaultQuietPeriod = 300 * time.Millisecond

// Debouncer emits the latest pushed value once no new value has arrived for
// the quiet period. A push before the period elapses supersedes the pending
// value, so at most one emission happens per quiet period.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	emit    func(T)
	timer   *time.Timer
	value   T
	seq     uint64
	pending bool
	closed  bool
}

// New creates a debouncer calling emit with the settled value. emit runs on
// its own goroutine and must not call back into the debouncer synchronously.
func New[T any](delay time.Duration, emit func(T)) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultQuietPeriod
	}
	return &Debouncer[T]{delay: delay, emit: emit}
}

// Push records a new raw value and restarts the quiet period
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.seq++
	d.value = v
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	seq := d.seq
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Pending reports whether an emission is scheduled
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush emits the pending value now, if any
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	v := d.value
	d.pending = false
	d.mu.Unlock()

	d.emit(v)
}

// Cancel drops the pending value without emitting it
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Close cancels any pending value and ignores later pushes
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.closed = true
}

func (d *Debouncer[T]) cancelLocked() {
	d.seq++
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	// A timer that already fired cannot be stopped; the sequence check drops superseded ones.
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.value
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.emit(v)
}
