package maprender

// Surface is the rendering side of the reconciler: something that can hold
// markers and a viewport. The production implementation broadcasts operations
// to map clients over websockets, tests record them.
//
// Implementations must treat removal of an unknown marker as a no-op. Errors
// are per-operation, the reconciler logs and isolates them.
type Surface interface {
	CreateMarker(id string, latitude float64, longitude float64, rotation *float64) error
	MoveMarker(id string, latitude float64, longitude float64) error
	RotateMarker(id string, rotation float64) error
	RemoveMarker(id string) error

	// Center moves the viewport to the coordinate
	Center(latitude float64, longitude float64) error

	// Pan recenters on the coordinate shifted horizontally by pixelOffsetX,
	// used when a side panel covers part of the map
	Pan(latitude float64, longitude float64, pixelOffsetX int) error
}
