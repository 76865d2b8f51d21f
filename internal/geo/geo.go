// Package geo provides spherical-geometry primitives for distance and
// bearing calculations between latitude/longitude coordinates.
//
// All functions are pure and defined for finite inputs. NaN or infinite
// inputs propagate through the underlying trigonometry unchecked; the
// results are undefined.
package geo

import (
	"math"

	"github.com/couchcryptid/building-lens/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// DistanceMeters calculates the great-circle distance between two points
// on the Earth's surface using the haversine formula. The result is in
// meters and symmetric in its arguments.
func DistanceMeters(a, b domain.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180.0
	lon1 := a.Longitude * math.Pi / 180.0
	lat2 := b.Latitude * math.Pi / 180.0
	lon2 := b.Longitude * math.Pi / 180.0

	dlat := lat2 - lat1
	dlon := lon2 - lon1
	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Asin(math.Sqrt(h))

	return EarthRadiusMeters * c
}

// BearingDegrees calculates the initial (forward azimuth) bearing from one
// point to another: 0 = north, clockwise positive, in [0,360).
func BearingDegrees(from, to domain.Coordinate) float64 {
	lat1 := from.Latitude * math.Pi / 180.0
	lat2 := to.Latitude * math.Pi / 180.0
	dlon := (to.Longitude - from.Longitude) * math.Pi / 180.0

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) -
		math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)

	return NormalizeAngle(math.Atan2(y, x) * 180.0 / math.Pi)
}

// NormalizeAngle reduces an angle in degrees to [0,360), mapping negative
// values into the positive range (e.g. -45 → 315).
func NormalizeAngle(deg float64) float64 {
	m := math.Mod(deg, 360.0)
	if m < 0 {
		m += 360.0
	}
	return m
}

// AngularDifference returns the smallest rotation between two bearings in
// degrees, in [0,180]. It is symmetric and wraparound-correct: the
// difference between 350° and 10° is 20°, not 340°.
func AngularDifference(b1, b2 float64) float64 {
	d := math.Abs(NormalizeAngle(b1) - NormalizeAngle(b2))
	if d > 180.0 {
		d = 360.0 - d
	}
	return d
}
