package geo

import "math"

const earthRadiusMetres = 6371000.0

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// DistanceMeters returns the great-circle distance between two coordinates
// using the Haversine formula. Identical points return 0.
func DistanceMeters(lat1 float64, lon1 float64, lat2 float64, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)

	// Clamp before the square roots, floating point error can push a past 1
	// for antipodal points
	if a > 1 {
		a = 1
	}

	return earthRadiusMetres * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func (l Location) Distance(other Location) float64 {
	return DistanceMeters(l.Latitude, l.Longitude, other.Latitude, other.Longitude)
}

// DistanceFromLineMeters returns the approximate distance between the
// location and the segment a-b. Used for matching positions against recorded
// path lines, good enough at path-line scales where the segment is short.
func (l Location) DistanceFromLineMeters(a Location, b Location) float64 {
	ax := a.Longitude
	ay := a.Latitude
	bx := b.Longitude
	by := b.Latitude

	cx := bx - ax
	cy := by - ay

	lenSq := cx*cx + cy*cy

	param := -1.0
	if lenSq != 0 {
		param = ((l.Longitude-ax)*cx + (l.Latitude-ay)*cy) / lenSq
	}

	var px, py float64
	if param < 0 {
		px = ax
		py = ay
	} else if param > 1 {
		px = bx
		py = by
	} else {
		px = ax + param*cx
		py = ay + param*cy
	}

	return DistanceMeters(l.Latitude, l.Longitude, py, px)
}
