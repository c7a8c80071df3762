package location

import (
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

var fixedTime = time.Date(2025, 3, 10, 4, 0, 0, 0, time.UTC)

func coord(lat, lon float64) geo.Coordinate {
	return geo.Coordinate{Latitude: lat, Longitude: lon}
}
