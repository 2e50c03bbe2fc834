package sim

import (
	"errors"

	"dronebridge/pkg/telemetry"
)

// cmdNavWaypoint is the mission command for a plain navigation waypoint.
const cmdNavWaypoint = 16

// DefaultRoute is a loop along Marina Beach, Chennai. The first waypoint
// doubles as home.
func DefaultRoute() []telemetry.Waypoint {
	points := [][3]float64{
		{13.0500, 80.2824, 50},
		{13.0550, 80.2850, 60},
		{13.0600, 80.2800, 70},
		{13.0580, 80.2750, 65},
		{13.0520, 80.2780, 55},
		{13.0500, 80.2824, 50},
	}
	route := make([]telemetry.Waypoint, len(points))
	for i, p := range points {
		route[i] = telemetry.Waypoint{Seq: i, Lat: p[0], Lon: p[1], Alt: p[2], Command: cmdNavWaypoint}
	}
	return route
}

func validateRoute(route []telemetry.Waypoint) error {
	if len(route) == 0 {
		return errors.New("route has no waypoints")
	}
	for i, wp := range route {
		if wp.Lat < -90 || wp.Lat > 90 || wp.Lon < -180 || wp.Lon > 180 {
			return errors.New("route waypoint out of range")
		}
		if wp.Seq != i {
			return errors.New("route sequence numbers must start at 0 and be contiguous")
		}
	}
	return nil
}

// RouteLength sums the great-circle legs of a route in metres.
func RouteLength(route []telemetry.Waypoint) float64 {
	var total float64
	for i := 1; i < len(route); i++ {
		total += DistanceMeters(route[i-1].Lat, route[i-1].Lon, route[i].Lat, route[i].Lon)
	}
	return total
}
