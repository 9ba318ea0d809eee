// Package debounce coalesces bursts of submitted actions into a single
// execution. A slider emits one drag-change event per pointer tick, easily
// dozens per second; the Debouncer makes sure only the most recent one is
// applied, and only once the stream has gone quiet for the configured wait.
package debounce

import (
	"sync"
	"time"
)

// Debouncer executes at most one pending action per quiet period, always
// keeping only the latest submitted one. The zero value is not usable; use
// New.
//
// All methods are safe for concurrent use. Go timers fire on their own
// goroutines, so the pending slot is mutex-guarded rather than relying on
// single-threaded event loop ordering.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	timer   *time.Timer
	pending func()

	// seq invalidates stale timer callbacks: Stop can race a callback that
	// has already fired but not yet taken the lock, so cancellation alone
	// isn't enough
	seq uint64
}

// New creates a Debouncer that waits for the given quiet period before
// executing the latest submitted action. A zero wait makes Submit execute
// synchronously, which suits hosts that already throttle their event stream
// (and keeps tests deterministic).
func New(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait}
}

// Submit replaces the pending action with fn and restarts the quiet-period
// timer. Earlier unsent actions are discarded without executing - pure
// replacement, not a queue. Submit returns immediately; fn runs later, on
// the timer's goroutine, unless the wait is zero.
func (d *Debouncer) Submit(fn func()) {
	if d.wait == 0 {
		fn()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = fn
	d.seq++
	submitted := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.wait, func() {
		d.fire(submitted)
	})
}

// fire runs the pending action if the firing timer is still the current one.
func (d *Debouncer) fire(submitted uint64) {
	d.mu.Lock()

	if d.seq != submitted || d.pending == nil {
		d.mu.Unlock()
		return
	}

	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	fn()
}

// Flush executes the pending action right away, if there is one, canceling
// its timer. Hosts call this on drag release so the final thumb position
// lands without waiting out the quiet period.
func (d *Debouncer) Flush() {
	d.mu.Lock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel drops the pending action without executing it and invalidates any
// outstanding timer. Owners must call it on teardown so no callback fires
// into a torn-down instance; it is safe to call repeatedly.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// Pending reports whether an action is waiting for its quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pending != nil
}
