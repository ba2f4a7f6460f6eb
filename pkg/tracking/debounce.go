package tracking

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of vehicle lists into a single trailing-edge
// publish. The timer resets on every Schedule, only the last list inside a
// quiet window reaches the callback.
//
// It is a small state machine: idle -> pending -> (fire | cancel) -> idle.
type Debouncer struct {
	window  time.Duration
	publish func([]Vehicle)

	mu      sync.Mutex
	timer   *time.Timer
	pending []Vehicle
}

func NewDebouncer(window time.Duration, publish func([]Vehicle)) *Debouncer {
	return &Debouncer{
		window:  window,
		publish: publish,
	}
}

// Schedule replaces any pending list and restarts the quiet window.
func (d *Debouncer) Schedule(list []Vehicle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = list

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()

	// Cancelled between timer expiry and lock acquisition
	if d.timer == nil {
		d.mu.Unlock()
		return
	}

	list := d.pending
	d.timer = nil
	d.pending = nil
	d.mu.Unlock()

	d.publish(list)
}

// Cancel drops any pending publish. Idempotent, a cancelled window never
// fires. The debouncer stays usable for later Schedule calls.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.pending = nil
}
