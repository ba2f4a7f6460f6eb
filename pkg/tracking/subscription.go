package tracking

import (
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/see2code/transport-platform/pkg/feed"
	"github.com/see2code/transport-platform/pkg/tracking/history"
)

// processSnapshot handles one full feed push: skip when the payload is
// byte-identical to the previous one, decode each entry, scope to the
// tracker's company, run the significance filter and hand the accepted set
// to the debouncer.
func (t *Tracker) processSnapshot(snapshot feed.Snapshot) {
	t.metrics.SnapshotsReceived.Inc()

	hash := xxhash.Sum64(snapshot.Raw)
	if t.seenPayload && hash == t.lastHash {
		t.metrics.SnapshotsSkipped.Inc()

		// A no-op push still completes the initial load
		if t.markLoaded() {
			t.debouncer.Schedule(t.activeVehicles(t.now()))
		}
		return
	}

	t.lastHash = hash
	t.seenPayload = true

	now := t.now()
	accepted := 0

	for id, raw := range snapshot.Entries {
		var record feed.RawRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			// One bad record never aborts the rest of the snapshot
			t.metrics.DecodeErrors.Inc()
			log.Warn().Err(err).Str("vehicle", id).Msg("Skipping undecodable feed entry")
			continue
		}

		if record.VehicleID == "" {
			record.VehicleID = id
		}

		// Tenant scoping happens before the filter, so the rejection counting
		// for the tenant gate lives here too
		if record.CompanyID != t.companyID {
			t.metrics.CandidatesRejected.WithLabelValues(string(GateTenant)).Inc()
			continue
		}

		ok, gate := t.filter.Accept(id, record)
		if !ok {
			if gate != "" {
				t.metrics.CandidatesRejected.WithLabelValues(string(gate)).Inc()
			}
			continue
		}

		t.metrics.CandidatesAccepted.Inc()

		vehicle := buildVehicle(id, record, now)
		if t.Enrich != nil {
			t.Enrich(t.companyID, id, &vehicle)
		}

		t.mu.Lock()
		t.vehicles[id] = vehicle
		t.mu.Unlock()

		accepted++

		t.publishHistory(record, now)
	}

	firstSnapshot := t.markLoaded()

	if accepted > 0 || firstSnapshot {
		t.debouncer.Schedule(t.activeVehicles(now))
	}
}

// publishHistory records an accepted update on the history queue. Rejected
// updates never reach history, the persisted track is the same sparse sample
// the live view gets.
func (t *Tracker) publishHistory(record feed.RawRecord, now time.Time) {
	if t.HistoryQueue == nil {
		return
	}

	event := history.PositionEvent{
		VehicleID:  record.VehicleID,
		CompanyID:  record.CompanyID,
		Latitude:   record.Location.Latitude,
		Longitude:  record.Location.Longitude,
		Accuracy:   record.Location.Accuracy,
		Heading:    record.Location.Heading,
		Speed:      record.Location.Speed,
		RecordedAt: now.UnixMilli(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	if err := t.HistoryQueue.PublishBytes(payload); err != nil {
		log.Error().Err(err).Str("vehicle", record.VehicleID).Msg("Failed to queue history event")
	}
}
