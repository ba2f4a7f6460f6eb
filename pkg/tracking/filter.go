package tracking

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/config"
	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/see2code/transport-platform/pkg/geo"
)

// Gate names a rejection reason of the position filter.
type Gate string

const (
	GateTenant       Gate = "tenant"
	GateRate         Gate = "rate"
	GateAccuracy     Gate = "accuracy"
	GateDisplacement Gate = "displacement"
)

type filterState struct {
	previousLocation geo.Location
	lastUpdateTime   time.Time
}

// PositionFilter decides per vehicle whether a raw report is significant
// enough to become the new authoritative position. State is instance scoped,
// two trackers never share filter history.
//
// The filter is owned by the tracker's run loop and is not safe for
// concurrent use.
type PositionFilter struct {
	companyID string

	accuracyThreshold float64
	minDisplacement   float64
	minUpdateInterval time.Duration
	maxEntries        int

	states map[string]*filterState

	now func() time.Time
}

func NewPositionFilter(companyID string, cfg config.TrackingConfig) *PositionFilter {
	return &PositionFilter{
		companyID:         companyID,
		accuracyThreshold: cfg.AccuracyThresholdMetres,
		minDisplacement:   cfg.MinDisplacementMetres,
		minUpdateInterval: cfg.MinUpdateInterval(),
		maxEntries:        cfg.MaxTrackedVehicles,
		states:            map[string]*filterState{},
		now:               time.Now,
	}
}

// Accept runs the candidate through the gates in order: tenant, rate,
// accuracy, displacement. Only acceptance mutates the per-vehicle state and
// an acceptance is never rolled back. Returns the gate that rejected the
// candidate, or empty on acceptance.
func (f *PositionFilter) Accept(id string, record feed.RawRecord) (bool, Gate) {
	// Malformed records are skipped, never fatal for the batch
	if record.Location == nil {
		log.Debug().Str("vehicle", id).Msg("Skipping candidate without location")
		return false, ""
	}

	if record.CompanyID != f.companyID {
		return false, GateTenant
	}

	now := f.now()
	state := f.states[id]

	// At most one accepted update per vehicle per window. Coarse on purpose,
	// the published track is a sparse sample of the real movement
	if state != nil && now.Sub(state.lastUpdateTime) < f.minUpdateInterval {
		return false, GateRate
	}

	if record.Location.Accuracy > f.accuracyThreshold {
		return false, GateAccuracy
	}

	candidate := geo.Location{
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}

	if state != nil && state.previousLocation.Distance(candidate) < f.minDisplacement {
		return false, GateDisplacement
	}

	if state == nil {
		f.evictIfFull()
		state = &filterState{}
		f.states[id] = state
	}

	state.previousLocation = candidate
	state.lastUpdateTime = now

	return true, ""
}

// TrackedCount returns the number of vehicles with filter state.
func (f *PositionFilter) TrackedCount() int {
	return len(f.states)
}

// evictIfFull drops the entry with the oldest acceptance so the state stays
// bounded under vehicle churn. Forgetting an entry only costs one extra
// accepted update for that vehicle.
func (f *PositionFilter) evictIfFull() {
	if len(f.states) < f.maxEntries {
		return
	}

	var oldestID string
	var oldestTime time.Time

	for id, state := range f.states {
		if oldestID == "" || state.lastUpdateTime.Before(oldestTime) {
			oldestID = id
			oldestTime = state.lastUpdateTime
		}
	}

	if oldestID != "" {
		delete(f.states, oldestID)
	}
}
