package tracking

import (
	"fmt"
	"testing"
	"time"

	"github.com/see2code/transport-platform/pkg/config"
	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/stretchr/testify/assert"
)

func testFilterConfig() config.TrackingConfig {
	cfg := config.Defaults().Tracking
	cfg.MaxTrackedVehicles = 3
	return cfg
}

func newTestFilter(t *testing.T) (*PositionFilter, *time.Time) {
	t.Helper()

	current := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	filter := NewPositionFilter("company-1", testFilterConfig())
	filter.now = func() time.Time { return current }

	return filter, &current
}

func report(companyID string, lat float64, lng float64, accuracy float64) feed.RawRecord {
	return feed.RawRecord{
		VehicleID: "vehicle-1",
		CompanyID: companyID,
		Location: &feed.RawLocation{
			Latitude:  lat,
			Longitude: lng,
			Accuracy:  accuracy,
		},
	}
}

func TestPositionFilterGates(t *testing.T) {
	t.Parallel()

	t.Run("first report accepted", func(t *testing.T) {
		t.Parallel()
		filter, _ := newTestFilter(t)

		accepted, gate := filter.Accept("vehicle-1", report("company-1", 48.10, 17.10, 20))
		assert.True(t, accepted)
		assert.Empty(t, gate)
	})

	t.Run("foreign company rejected", func(t *testing.T) {
		t.Parallel()
		filter, _ := newTestFilter(t)

		accepted, gate := filter.Accept("vehicle-1", report("company-2", 48.10, 17.10, 20))
		assert.False(t, accepted)
		assert.Equal(t, GateTenant, gate)
	})

	t.Run("report inside the rate window rejected", func(t *testing.T) {
		t.Parallel()
		filter, clock := newTestFilter(t)

		accepted, _ := filter.Accept("vehicle-1", report("company-1", 48.10, 17.10, 20))
		assert.True(t, accepted)

		// A large move still loses to the rate gate
		*clock = clock.Add(time.Minute)
		accepted, gate := filter.Accept("vehicle-1", report("company-1", 49.00, 18.00, 20))
		assert.False(t, accepted)
		assert.Equal(t, GateRate, gate)
	})

	t.Run("poor accuracy rejected", func(t *testing.T) {
		t.Parallel()
		filter, _ := newTestFilter(t)

		accepted, gate := filter.Accept("vehicle-1", report("company-1", 48.10, 17.10, 150))
		assert.False(t, accepted)
		assert.Equal(t, GateAccuracy, gate)
	})

	t.Run("small displacement rejected", func(t *testing.T) {
		t.Parallel()
		filter, clock := newTestFilter(t)

		accepted, _ := filter.Accept("vehicle-1", report("company-1", 48.10, 17.10, 20))
		assert.True(t, accepted)

		// ~11 metres north, well under the 50 metre threshold
		*clock = clock.Add(6 * time.Minute)
		accepted, gate := filter.Accept("vehicle-1", report("company-1", 48.1001, 17.10, 20))
		assert.False(t, accepted)
		assert.Equal(t, GateDisplacement, gate)
	})

	t.Run("significant movement after the window accepted", func(t *testing.T) {
		t.Parallel()
		filter, clock := newTestFilter(t)

		accepted, _ := filter.Accept("vehicle-1", report("company-1", 48.10, 17.10, 20))
		assert.True(t, accepted)

		// ~110 metres north
		*clock = clock.Add(6 * time.Minute)
		accepted, gate := filter.Accept("vehicle-1", report("company-1", 48.101, 17.10, 20))
		assert.True(t, accepted)
		assert.Empty(t, gate)
	})

	t.Run("missing location skipped without gate", func(t *testing.T) {
		t.Parallel()
		filter, _ := newTestFilter(t)

		accepted, gate := filter.Accept("vehicle-1", feed.RawRecord{VehicleID: "vehicle-1", CompanyID: "company-1"})
		assert.False(t, accepted)
		assert.Empty(t, gate)
		assert.Zero(t, filter.TrackedCount())
	})
}

func TestPositionFilterRejectionKeepsState(t *testing.T) {
	t.Parallel()

	filter, clock := newTestFilter(t)

	accepted, _ := filter.Accept("vehicle-1", report("company-1", 48.10, 17.10, 20))
	assert.True(t, accepted)

	// Two consecutive ~30 metre moves: each is rejected against the ORIGINAL
	// accepted position, the reference never creeps forward on rejection
	*clock = clock.Add(6 * time.Minute)
	accepted, gate := filter.Accept("vehicle-1", report("company-1", 48.10027, 17.10, 20))
	assert.False(t, accepted)
	assert.Equal(t, GateDisplacement, gate)

	*clock = clock.Add(6 * time.Minute)
	accepted, gate = filter.Accept("vehicle-1", report("company-1", 48.10054, 17.10, 20))
	assert.True(t, accepted, "cumulative drift past the threshold must be accepted")
	assert.Empty(t, gate)
}

func TestPositionFilterPerVehicleState(t *testing.T) {
	t.Parallel()

	filter, _ := newTestFilter(t)

	accepted, _ := filter.Accept("vehicle-1", report("company-1", 48.10, 17.10, 20))
	assert.True(t, accepted)

	// A different vehicle at the same coordinate is a fresh track
	other := report("company-1", 48.10, 17.10, 20)
	other.VehicleID = "vehicle-2"
	accepted, gate := filter.Accept("vehicle-2", other)
	assert.True(t, accepted)
	assert.Empty(t, gate)

	assert.Equal(t, 2, filter.TrackedCount())
}

func TestPositionFilterEviction(t *testing.T) {
	t.Parallel()

	filter, clock := newTestFilter(t)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("vehicle-%d", i)
		record := report("company-1", 48.10+float64(i), 17.10, 20)
		record.VehicleID = id

		accepted, _ := filter.Accept(id, record)
		assert.True(t, accepted)

		*clock = clock.Add(time.Second)
	}

	assert.Equal(t, 3, filter.TrackedCount())

	// The oldest entry was evicted, so its next report is treated as new and
	// accepted immediately despite the rate window
	accepted, gate := filter.Accept("vehicle-0", report("company-1", 48.10, 17.10, 20))
	assert.True(t, accepted)
	assert.Empty(t, gate)
}
