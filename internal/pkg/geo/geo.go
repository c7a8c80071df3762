package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies within latitude [-90, 90] and longitude [-180, 180].
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// String formats the coordinate as "lat, lon" with six decimals.
// It doubles as the display address when reverse geocoding fails.
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}

// Near reports whether both axes of c and other differ by no more than epsilon degrees.
func (c Coordinate) Near(other Coordinate, epsilon float64) bool {
	return math.Abs(c.Latitude-other.Latitude) <= epsilon &&
		math.Abs(c.Longitude-other.Longitude) <= epsilon
}

// DistanceMeters returns the great-circle (haversine) distance between a and b in meters.
// The result does not depend on argument order. NaN inputs propagate to the result.
func DistanceMeters(a, b Coordinate) float64 {
	if less(b, a) {
		a, b = b, a
	}

	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	lat1Rad := toRadians(a.Latitude)
	lat2Rad := toRadians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*(math.Cos(lat1Rad)*math.Cos(lat2Rad))
	// rounding can push h just outside [0, 1] for antipodal points
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// WithinRadius reports whether point lies inside the circle of radiusMeters around center.
// The boundary counts as inside.
func WithinRadius(point, center Coordinate, radiusMeters float64) bool {
	return DistanceMeters(point, center) <= radiusMeters
}

// less orders coordinates by latitude, then longitude.
func less(a, b Coordinate) bool {
	if a.Latitude != b.Latitude {
		return a.Latitude < b.Latitude
	}
	return a.Longitude < b.Longitude
}

func toRadians(deg float64) float64 {
	return deg * (math.Pi / 180.0)
}
