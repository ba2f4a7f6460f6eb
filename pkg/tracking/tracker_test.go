package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/see2code/transport-platform/pkg/config"
	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/see2code/transport-platform/pkg/tracking/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	snapshots chan feed.Snapshot
	errs      chan error

	subscribeErr error
}

func newStubFeed() *stubFeed {
	return &stubFeed{
		snapshots: make(chan feed.Snapshot, 16),
		errs:      make(chan error, 16),
	}
}

func (s *stubFeed) Subscribe(ctx context.Context) (<-chan feed.Snapshot, <-chan error, error) {
	if s.subscribeErr != nil {
		return nil, nil, s.subscribeErr
	}

	return s.snapshots, s.errs, nil
}

type stubQueue struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (q *stubQueue) PublishBytes(payload ...[]byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.payloads = append(q.payloads, payload...)

	return nil
}

func (q *stubQueue) events(t *testing.T) []history.PositionEvent {
	t.Helper()

	q.mu.Lock()
	defer q.mu.Unlock()

	events := make([]history.PositionEvent, 0, len(q.payloads))
	for _, payload := range q.payloads {
		var event history.PositionEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		events = append(events, event)
	}

	return events
}

func testTrackingConfig() config.TrackingConfig {
	cfg := config.Defaults().Tracking
	cfg.DebounceWindowMillis = 20
	return cfg
}

func newTestTracker(source feed.Feed) *Tracker {
	return New("company-1", source, testTrackingConfig())
}

func snapshotOf(records map[string]feed.RawRecord) feed.Snapshot {
	return feed.EncodeSnapshot(records, time.Now())
}

func trackedRecord(companyID string, lat float64, lng float64) feed.RawRecord {
	return feed.RawRecord{
		CompanyID: companyID,
		Location: &feed.RawLocation{
			Latitude:  lat,
			Longitude: lng,
			Accuracy:  15,
		},
	}
}

func TestTrackerProcessSnapshot(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())

	published := make(chan []Vehicle, 16)
	tracker.OnPublish(func(list []Vehicle) { published <- list })

	_, loading, err := tracker.Snapshot()
	assert.True(t, loading, "loading before the first snapshot")
	assert.NoError(t, err)

	tracker.processSnapshot(snapshotOf(map[string]feed.RawRecord{
		"vehicle-1": trackedRecord("company-1", 48.10, 17.10),
		"vehicle-2": trackedRecord("company-2", 48.20, 17.20), // foreign tenant
	}))

	select {
	case list := <-published:
		require.Len(t, list, 1)
		assert.Equal(t, "vehicle-1", list[0].ID)
		assert.Equal(t, "Unknown", list[0].LicensePlate)
		assert.Equal(t, "Unknown driver", list[0].DriverName)
		assert.True(t, list[0].IsOnline)
	case <-time.After(2 * time.Second):
		t.Fatal("no publish after first snapshot")
	}

	_, loading, err = tracker.Snapshot()
	assert.False(t, loading, "loading cleared by the first snapshot")
	assert.NoError(t, err)
}

func TestTrackerEmptyFirstSnapshotClearsLoading(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())

	published := make(chan []Vehicle, 16)
	tracker.OnPublish(func(list []Vehicle) { published <- list })

	tracker.processSnapshot(snapshotOf(map[string]feed.RawRecord{}))

	select {
	case list := <-published:
		assert.Empty(t, list)
	case <-time.After(2 * time.Second):
		t.Fatal("empty first snapshot must still publish")
	}

	_, loading, _ := tracker.Snapshot()
	assert.False(t, loading)
}

func TestTrackerSkipsRedundantPayload(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())

	snapshot := snapshotOf(map[string]feed.RawRecord{
		"vehicle-1": trackedRecord("company-1", 48.10, 17.10),
	})

	tracker.processSnapshot(snapshot)
	tracker.processSnapshot(snapshot)

	assert.Equal(t, float64(2), testutil.ToFloat64(tracker.metrics.SnapshotsReceived))
	assert.Equal(t, float64(1), testutil.ToFloat64(tracker.metrics.SnapshotsSkipped))
	assert.Equal(t, float64(1), testutil.ToFloat64(tracker.metrics.CandidatesAccepted))
}

func TestTrackerCountsTenantDrops(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())

	tracker.processSnapshot(snapshotOf(map[string]feed.RawRecord{
		"vehicle-1": trackedRecord("company-1", 48.10, 17.10),
		"vehicle-2": trackedRecord("company-2", 48.20, 17.20),
		"vehicle-3": trackedRecord("company-3", 48.30, 17.30),
	}))

	rejected := tracker.metrics.CandidatesRejected.WithLabelValues(string(GateTenant))
	assert.Equal(t, float64(2), testutil.ToFloat64(rejected))
	assert.Equal(t, float64(1), testutil.ToFloat64(tracker.metrics.CandidatesAccepted))
}

func TestTrackerSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())

	good, err := json.Marshal(trackedRecord("company-1", 48.10, 17.10))
	require.NoError(t, err)

	snapshot := feed.Snapshot{
		Raw: []byte(`{"vehicle-1":...broken`),
		Entries: map[string]json.RawMessage{
			"vehicle-1": good,
			"vehicle-2": json.RawMessage(`{"companyID": 42}`),
		},
		ReceivedAt: time.Now(),
	}

	tracker.processSnapshot(snapshot)

	assert.Equal(t, float64(1), testutil.ToFloat64(tracker.metrics.DecodeErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(tracker.metrics.CandidatesAccepted))
}

func TestTrackerSweepRemovesStaleVehicles(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())

	published := make(chan []Vehicle, 16)
	tracker.OnPublish(func(list []Vehicle) { published <- list })

	now := time.Now()
	window := testTrackingConfig().ActivityWindow()

	tracker.mu.Lock()
	tracker.vehicles["fresh"] = Vehicle{ID: "fresh", LastActive: now.UnixMilli()}
	tracker.vehicles["stale"] = Vehicle{ID: "stale", LastActive: now.Add(-window - time.Minute).UnixMilli()}
	tracker.mu.Unlock()

	tracker.sweep(now)

	select {
	case list := <-published:
		require.Len(t, list, 1)
		assert.Equal(t, "fresh", list[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("membership change must republish")
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(tracker.metrics.ReapedVehicles))

	// A second sweep with no change stays silent
	tracker.sweep(now)

	select {
	case <-published:
		t.Fatal("sweep without removals must not publish")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackerSubscribeFailure(t *testing.T) {
	t.Parallel()

	source := newStubFeed()
	source.subscribeErr = errors.New("feed unavailable")

	tracker := newTestTracker(source)

	err := tracker.Start(context.Background())
	require.Error(t, err)

	_, loading, snapErr := tracker.Snapshot()
	assert.False(t, loading)
	assert.ErrorContains(t, snapErr, "feed unavailable")
}

func TestTrackerStreamErrorIsSticky(t *testing.T) {
	t.Parallel()

	source := newStubFeed()
	tracker := newTestTracker(source)
	defer tracker.Stop()

	require.NoError(t, tracker.Start(context.Background()))

	source.errs <- errors.New("stream interrupted")

	require.Eventually(t, func() bool {
		_, _, err := tracker.Snapshot()
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	// A later snapshot keeps flowing but does not clear the error
	source.snapshots <- snapshotOf(map[string]feed.RawRecord{
		"vehicle-1": trackedRecord("company-1", 48.10, 17.10),
	})

	require.Eventually(t, func() bool {
		list, _, _ := tracker.Snapshot()
		return len(list) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, loading, err := tracker.Snapshot()
	assert.False(t, loading)
	assert.ErrorContains(t, err, "stream interrupted")
}

func TestTrackerEnrich(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())
	tracker.Enrich = func(companyID string, vehicleID string, vehicle *Vehicle) {
		vehicle.LicensePlate = "BA-123XY"
		vehicle.DriverName = "J. Novak"
	}

	published := make(chan []Vehicle, 16)
	tracker.OnPublish(func(list []Vehicle) { published <- list })

	tracker.processSnapshot(snapshotOf(map[string]feed.RawRecord{
		"vehicle-1": trackedRecord("company-1", 48.10, 17.10),
	}))

	select {
	case list := <-published:
		require.Len(t, list, 1)
		assert.Equal(t, "BA-123XY", list[0].LicensePlate)
		assert.Equal(t, "J. Novak", list[0].DriverName)
	case <-time.After(2 * time.Second):
		t.Fatal("no publish")
	}
}

func TestTrackerHistoryEvents(t *testing.T) {
	t.Parallel()

	queue := &stubQueue{}

	tracker := newTestTracker(newStubFeed())
	tracker.HistoryQueue = queue

	tracker.processSnapshot(snapshotOf(map[string]feed.RawRecord{
		"vehicle-1": trackedRecord("company-1", 48.10, 17.10),
		"vehicle-2": trackedRecord("company-2", 48.20, 17.20), // rejected, never archived
	}))

	events := queue.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "vehicle-1", events[0].VehicleID)
	assert.Equal(t, "company-1", events[0].CompanyID)
	assert.InDelta(t, 48.10, events[0].Latitude, 1e-9)
	assert.NotZero(t, events[0].RecordedAt)
}

func TestTrackerStopIdempotent(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(newStubFeed())
	require.NoError(t, tracker.Start(context.Background()))

	tracker.Stop()
	tracker.Stop()
}
