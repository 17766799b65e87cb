// Package geo holds the great-circle helpers used by feature extraction.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371000.0

// Distance returns the haversine distance in meters between two coordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Bearing returns the initial bearing in degrees [0,360) from point 1 to
// point 2. Identical points yield 0.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lonDiff := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(lonDiff) * math.Cos(lat2Rad)
	x := math.Cos(lat1Rad)*math.Sin(lat2Rad) - math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lonDiff)
	if x == 0 && y == 0 {
		return 0
	}

	deg := math.Atan2(y, x) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// BearingDelta returns the absolute angular difference in [0,180].
func BearingDelta(b1, b2 float64) float64 {
	diff := math.Mod(math.Abs(b2-b1), 360)
	if diff > 180 {
		diff = 360 - diff
	}
	return diff
}
