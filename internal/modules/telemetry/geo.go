// README: Great-circle distance helpers for accumulating trip distance from GPS fixes.
package telemetry

import (
	"math"

	"drivesafe/internal/types"
)

const earthRadiusKm = 6371.0

// maxJumpKm drops GPS jumps between two polls that no road vehicle could
// cover in a poll interval (multipath, cold fix at 0,0 neighbours).
const maxJumpKm = 2.0

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// LegKm is the distance to add to a trip between two consecutive fixes.
// Missing fixes and implausible jumps contribute nothing.
func LegKm(prev, next types.Point) float64 {
	if prev.IsZero() || next.IsZero() {
		return 0
	}
	d := HaversineKm(prev, next)
	if d > maxJumpKm {
		return 0
	}
	return d
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
