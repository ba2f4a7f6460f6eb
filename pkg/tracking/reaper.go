package tracking

import (
	"sync"
	"time"
)

// StalenessReaper re-evaluates the active vehicle set on a fixed period,
// independent of feed traffic. The feed only pushes on change, a vehicle that
// stops reporting produces no event at all, so this timer is the only thing
// that can take it offline.
type StalenessReaper struct {
	interval time.Duration
	sweep    func(now time.Time)

	done     chan struct{}
	stopOnce sync.Once
}

func NewStalenessReaper(interval time.Duration, sweep func(now time.Time)) *StalenessReaper {
	return &StalenessReaper{
		interval: interval,
		sweep:    sweep,
		done:     make(chan struct{}),
	}
}

func (r *StalenessReaper) Start() {
	go r.run()
}

func (r *StalenessReaper) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

// Stop ends the reaper. Idempotent, no tick fires after it returns once the
// run goroutine observes the close.
func (r *StalenessReaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}
