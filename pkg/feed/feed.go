package feed

import (
	"context"
	"encoding/json"
	"time"
)

// RawLocation is the position block of a feed record. Heading and Speed are
// optional, gateways omit them when the GPS fix has no movement vector.
type RawLocation struct {
	Latitude  float64  `json:"latitude" bson:"latitude"`
	Longitude float64  `json:"longitude" bson:"longitude"`
	Accuracy  float64  `json:"accuracy" bson:"accuracy"`
	Heading   *float64 `json:"heading,omitempty" bson:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty" bson:"speed,omitempty"`
	Timestamp int64    `json:"timestamp" bson:"timestamp"`
}

// RawRecord is one vehicle entry as pushed by the realtime feed. The feed is
// a single shared channel across all companies, records carry their tenant.
type RawRecord struct {
	VehicleID    string       `json:"vehicleId,omitempty" bson:"vehicleid,omitempty"`
	CompanyID    string       `json:"companyID" bson:"companyid"`
	LicensePlate string       `json:"licensePlate,omitempty" bson:"licenseplate,omitempty"`
	DriverName   string       `json:"driverName,omitempty" bson:"drivername,omitempty"`
	Status       string       `json:"status,omitempty" bson:"status,omitempty"`
	LastUpdate   string       `json:"lastUpdate,omitempty" bson:"lastupdate,omitempty"`
	Location     *RawLocation `json:"location,omitempty" bson:"location,omitempty"`
}

// Snapshot is the full state of the feed path at one point in time. Entries
// are kept raw so that a single malformed record never poisons the rest of
// the snapshot.
type Snapshot struct {
	// Raw is the canonical payload, used for redundant-push detection
	Raw []byte

	Entries map[string]json.RawMessage

	ReceivedAt time.Time
}

// Feed is a push transport delivering full snapshots whenever any vehicle
// record changes.
type Feed interface {
	// Subscribe starts snapshot delivery until ctx is cancelled. Transport
	// failures after establishment arrive on the error channel and end the
	// subscription.
	Subscribe(ctx context.Context) (<-chan Snapshot, <-chan error, error)
}

// EncodeSnapshot builds a Snapshot from decoded records. encoding/json
// marshals map keys in sorted order so Raw is deterministic for identical
// content.
func EncodeSnapshot(records map[string]RawRecord, receivedAt time.Time) Snapshot {
	entries := make(map[string]json.RawMessage, len(records))

	for id, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		entries[id] = data
	}

	raw, _ := json.Marshal(entries)

	return Snapshot{
		Raw:        raw,
		Entries:    entries,
		ReceivedAt: receivedAt,
	}
}

// DecodeSnapshot parses a wire payload of id -> record objects.
func DecodeSnapshot(payload []byte, receivedAt time.Time) (Snapshot, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Raw:        payload,
		Entries:    entries,
		ReceivedAt: receivedAt,
	}, nil
}
