// Package airspace implements no-fly-zone containment checks for flight
// plan waypoints.
package airspace

import (
	"fmt"

	"github.com/skylane-uas/skylane/pkg/geo"
)

// Zone geometry kinds.
const (
	KindCircle    = "CIRCLE"
	KindRectangle = "RECTANGLE"
)

// Zone describes a restricted airspace volume.
//
// A zone is either a circle (center + radius) or an axis-aligned rectangle
// (lat/lon bounds). Altitude bounds are optional; a zone with no bounds
// restricts all altitudes. All altitudes are meters AMSL.
type Zone struct {
	ID          int
	Name        string
	Description string
	Kind        string

	// Circle geometry
	CenterLatitude  float64
	CenterLongitude float64
	RadiusM         float64

	// Rectangle geometry
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64

	// Optional altitude band. nil means unbounded on that side.
	MinAltitudeM *float64
	MaxAltitudeM *float64
}

// Contains reports whether the given point falls inside the zone.
// Horizontal containment is evaluated first, then the altitude band.
func (z *Zone) Contains(lat, lon, altM float64) bool {
	switch z.Kind {
	case KindCircle:
		if geo.HaversineDistance(lat, lon, z.CenterLatitude, z.CenterLongitude) > z.RadiusM {
			return false
		}
	case KindRectangle:
		if lat < z.MinLatitude || lat > z.MaxLatitude ||
			lon < z.MinLongitude || lon > z.MaxLongitude {
			return false
		}
	default:
		return false
	}

	if z.MinAltitudeM != nil && altM < *z.MinAltitudeM {
		return false
	}
	if z.MaxAltitudeM != nil && altM > *z.MaxAltitudeM {
		return false
	}
	return true
}

// Checker evaluates points against an ordered list of active zones.
//
// The zone order is significant: CheckPoint returns the first matching zone,
// so overlapping zones resolve deterministically ("first defined wins").
// Callers rely on this for reproducible violation messages.
type Checker struct {
	zones []Zone
}

// NewChecker creates a checker over the given zones. The slice order is
// preserved as the evaluation order.
func NewChecker(zones []Zone) *Checker {
	return &Checker{zones: zones}
}

// CheckPoint tests a single position against all zones, in order.
// Returns the first zone containing the point, or nil if none does.
// Input ranges are the caller's responsibility; this function only
// evaluates containment.
func (c *Checker) CheckPoint(lat, lon, altM float64) *Zone {
	for i := range c.zones {
		if c.zones[i].Contains(lat, lon, altM) {
			return &c.zones[i]
		}
	}
	return nil
}

// RouteViolation identifies which waypoint of a route violated which zone.
type RouteViolation struct {
	WaypointIndex int
	Zone          Zone
}

// Error formats the violation the way submission rejections report it.
func (v *RouteViolation) Error() string {
	return fmt.Sprintf("waypoint %d is inside no-fly zone %q: %s",
		v.WaypointIndex, v.Zone.Name, v.Zone.Description)
}

// CheckRoute runs CheckPoint over every waypoint in sequence order and
// returns the first violation found, or nil if the whole route is clear.
func (c *Checker) CheckRoute(points []geo.Point) *RouteViolation {
	for i, p := range points {
		if z := c.CheckPoint(p.Latitude, p.Longitude, p.AltitudeM); z != nil {
			return &RouteViolation{WaypointIndex: i, Zone: *z}
		}
	}
	return nil
}
