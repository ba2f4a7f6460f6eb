package tracking

import (
	"time"

	"github.com/see2code/transport-platform/pkg/feed"
)

const defaultLicensePlate = "Unknown"
const defaultDriverName = "Unknown driver"
const defaultStatus = "unknown"

// Position is an accepted vehicle coordinate. Lat/Lng duplicate
// Latitude/Longitude for consumers that expect the short names.
type Position struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  float64  `json:"accuracy"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Vehicle is one entry of the published set. A vehicle only appears while its
// last accepted report is inside the activity window.
type Vehicle struct {
	ID           string   `json:"id"`
	VehicleID    string   `json:"vehicleId"`
	LicensePlate string   `json:"licensePlate"`
	DriverName   string   `json:"driverName"`
	Location     Position `json:"location"`
	LastUpdate   string   `json:"lastUpdate"`

	// LastActive is the wall clock at acceptance time in milliseconds, not
	// the GPS timestamp. Staleness checks use this
	LastActive int64 `json:"lastActive"`

	IsOnline bool   `json:"isOnline"`
	Status   string `json:"status"`
}

// IsActive reports whether the vehicle's last accepted report is within the
// activity window of now.
func (v Vehicle) IsActive(now time.Time, window time.Duration) bool {
	return now.UnixMilli()-v.LastActive <= window.Milliseconds()
}

func buildVehicle(id string, record feed.RawRecord, now time.Time) Vehicle {
	location := record.Location

	licensePlate := record.LicensePlate
	if licensePlate == "" {
		licensePlate = defaultLicensePlate
	}

	driverName := record.DriverName
	if driverName == "" {
		driverName = defaultDriverName
	}

	status := record.Status
	if status == "" {
		status = defaultStatus
	}

	lastUpdate := record.LastUpdate
	if lastUpdate == "" {
		lastUpdate = now.Format(time.RFC3339)
	}

	return Vehicle{
		ID:           id,
		VehicleID:    id,
		LicensePlate: licensePlate,
		DriverName:   driverName,
		Location: Position{
			Lat:       location.Latitude,
			Lng:       location.Longitude,
			Latitude:  location.Latitude,
			Longitude: location.Longitude,
			Accuracy:  location.Accuracy,
			Heading:   location.Heading,
			Speed:     location.Speed,
			Timestamp: location.Timestamp,
		},
		LastUpdate: lastUpdate,
		LastActive: now.UnixMilli(),
		IsOnline:   true,
		Status:     status,
	}
}
