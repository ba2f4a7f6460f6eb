package tracking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/config"
	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/see2code/transport-platform/pkg/util"
)

// QueuePublisher is the slice of an rmq queue the tracker needs for history
// events.
type QueuePublisher interface {
	PublishBytes(payload ...[]byte) error
}

// Tracker is the composition root of the live tracking core. It owns the
// accepted vehicle set, wires the feed subscription through the position
// filter into the debouncer and runs the staleness reaper on its own timer.
//
// All feed and sweep events are serialised through the tracker, consumers
// only ever see immutable published lists.
type Tracker struct {
	companyID string
	cfg       config.TrackingConfig
	source    feed.Feed

	// HistoryQueue, when set before Start, receives every accepted position
	// as a history event
	HistoryQueue QueuePublisher

	// Enrich, when set before Start, can fill display metadata on accepted
	// vehicles (registry lookups for plate and driver)
	Enrich func(companyID string, vehicleID string, vehicle *Vehicle)

	metrics   *Collector
	filter    *PositionFilter
	debouncer *Debouncer
	reaper    *StalenessReaper

	mu        sync.RWMutex
	vehicles  map[string]Vehicle
	published []Vehicle
	loading   bool
	lastErr   error
	callbacks []func([]Vehicle)

	lastHash    uint64
	seenPayload bool

	cancel   context.CancelFunc
	stopOnce sync.Once

	now func() time.Time
}

func New(companyID string, source feed.Feed, cfg config.TrackingConfig) *Tracker {
	tracker := &Tracker{
		companyID: companyID,
		cfg:       cfg,
		source:    source,
		metrics:   NewCollector(),
		filter:    NewPositionFilter(companyID, cfg),
		vehicles:  map[string]Vehicle{},
		loading:   true,
		now:       time.Now,
	}

	tracker.debouncer = NewDebouncer(cfg.DebounceWindow(), tracker.publish)
	tracker.reaper = NewStalenessReaper(cfg.ReaperInterval(), tracker.sweep)

	return tracker
}

// Metrics exposes the tracker's prometheus collector.
func (t *Tracker) Metrics() *Collector {
	return t.metrics
}

// OnPublish registers a consumer of published vehicle lists. Lists are
// copies, consumers must not assume exclusive ownership across publishes but
// the tracker never mutates a published list afterwards.
func (t *Tracker) OnPublish(fn func([]Vehicle)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callbacks = append(t.callbacks, fn)
}

// Start subscribes to the feed and runs the tracker until ctx is cancelled
// or Stop is called.
func (t *Tracker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	snapshots, errs, err := t.source.Subscribe(ctx)
	if err != nil {
		cancel()
		t.setError(err)
		return err
	}

	t.reaper.Start()

	go t.run(ctx, snapshots, errs)

	return nil
}

func (t *Tracker) run(ctx context.Context, snapshots <-chan feed.Snapshot, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			t.processSnapshot(snapshot)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				log.Error().Err(err).Str("company", t.companyID).Msg("Vehicle feed subscription failed")
				t.setError(err)
			}
		}
	}
}

// Snapshot returns the most recently published vehicle list, whether the
// first feed snapshot is still outstanding and the sticky subscription
// error.
func (t *Tracker) Snapshot() ([]Vehicle, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	list := make([]Vehicle, len(t.published))
	copy(list, t.published)

	return list, t.loading, t.lastErr
}

// Stop tears the tracker down: the feed subscription, any pending debounced
// publish and the reaper. Idempotent, nothing fires after it returns.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		t.debouncer.Cancel()
		t.reaper.Stop()
	})
}

// sweep removes vehicles whose last accepted report fell out of the activity
// window and republishes when membership changed.
func (t *Tracker) sweep(now time.Time) {
	window := t.cfg.ActivityWindow()

	t.mu.Lock()
	removed := 0
	for id, vehicle := range t.vehicles {
		if !vehicle.IsActive(now, window) {
			delete(t.vehicles, id)
			removed++
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.metrics.ReapedVehicles.Add(float64(removed))
		t.publish(t.activeVehicles(now))
	}
}

// publish delivers a list to all registered consumers and records it as the
// current published set.
func (t *Tracker) publish(list []Vehicle) {
	t.mu.Lock()
	t.published = list
	callbacks := make([]func([]Vehicle), len(t.callbacks))
	copy(callbacks, t.callbacks)
	t.mu.Unlock()

	t.metrics.Publishes.Inc()
	t.metrics.ActiveVehicles.Set(float64(len(list)))

	for _, fn := range callbacks {
		fn(list)
	}
}

// activeVehicles returns the vehicles inside the activity window, ordered by
// id so published lists are deterministic.
func (t *Tracker) activeVehicles(now time.Time) []Vehicle {
	window := t.cfg.ActivityWindow()

	t.mu.RLock()
	list := make([]Vehicle, 0, len(t.vehicles))
	for _, vehicle := range t.vehicles {
		list = append(list, vehicle)
	}
	t.mu.RUnlock()

	util.InPlaceFilter(&list, func(v Vehicle) bool {
		return v.IsActive(now, window)
	})

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})

	return list
}

func (t *Tracker) setError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastErr = err
	t.loading = false
}

// markLoaded flips the loading flag, reporting whether this was the first
// processed snapshot.
func (t *Tracker) markLoaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := t.loading
	t.loading = false

	return was
}
