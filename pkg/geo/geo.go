// Package geo provides the geographic primitives shared by airspace
// validation and telemetry simulation.
package geo

import "math"

// Constants for geographic calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusMeters is the Earth's mean radius in meters (WGS84)
	EarthRadiusMeters = 6371000.0
)

// Point represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Point struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64

	// AltitudeM in meters above mean sea level (AMSL)
	AltitudeM float64
}

// HaversineDistance returns the great-circle distance in meters between
// two lat/lon positions, ignoring altitude.
//
// Uses the Haversine formula on a sphere of Earth's mean radius. Accurate
// enough for airspace containment and flight-segment timing; not suitable
// for survey-grade geodesy.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * DegreesToRadians
	phi2 := lat2 * DegreesToRadians
	deltaPhi := (lat2 - lat1) * DegreesToRadians
	deltaLambda := (lon2 - lon1) * DegreesToRadians

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Interpolate returns the point at the given fraction along the straight
// line (in coordinate space) between a and b. fraction is clamped to [0, 1].
//
// Linear interpolation of lat/lon is an approximation that diverges from the
// true great-circle path over long segments, but drone flight legs are short
// enough that the error is negligible.
func Interpolate(a, b Point, fraction float64) Point {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	return Point{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*fraction,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*fraction,
		AltitudeM: a.AltitudeM + (b.AltitudeM-a.AltitudeM)*fraction,
	}
}

// ValidLatitude reports whether lat is a finite value in [-90, 90].
func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && !math.IsInf(lat, 0) && lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon is a finite value in [-180, 180].
func ValidLongitude(lon float64) bool {
	return !math.IsNaN(lon) && !math.IsInf(lon, 0) && lon >= -180 && lon <= 180
}
