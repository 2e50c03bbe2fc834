package sim

import (
	"math"

	geo "github.com/kellydunn/golang-geo"
)

// Bearing is the initial great-circle bearing from the first point to the
// second, in degrees within [0, 360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	b := geo.NewPoint(lat1, lon1).BearingTo(geo.NewPoint(lat2, lon2))
	return math.Mod(b+360, 360)
}

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.NewPoint(lat1, lon1).GreatCircleDistance(geo.NewPoint(lat2, lon2)) * 1000
}

// planarDistance is the straight-line distance in coordinate-degree space
// used for stepping and arrival checks.
func planarDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return math.Hypot(lat2-lat1, lon2-lon1)
}
