package history

import "encoding/json"

// PositionEvent is one accepted position update, queued by the tracker and
// persisted by the archiver for path-line rendering.
type PositionEvent struct {
	VehicleID string `json:"vehicleId" bson:"vehicleid"`
	CompanyID string `json:"companyId" bson:"companyid"`

	Latitude  float64  `json:"latitude" bson:"latitude"`
	Longitude float64  `json:"longitude" bson:"longitude"`
	Accuracy  float64  `json:"accuracy" bson:"accuracy"`
	Heading   *float64 `json:"heading,omitempty" bson:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty" bson:"speed,omitempty"`

	// RecordedAt is the acceptance wall clock in milliseconds
	RecordedAt int64 `json:"recordedAt" bson:"recordedat"`
}

func (e PositionEvent) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}
