// Package telemetry turns a started flight plan's waypoint list into a
// time-ordered motion trace, broadcasts it to observers, and drives the
// plan to completion.
package telemetry

// Telemetry status labels, as they appear on the wire.
const (
	StatusOnSchedule      = "ON_SCHEDULE"
	StatusWaypointReached = "WAYPOINT_REACHED"
	StatusFlightCompleted = "FLIGHT_COMPLETED"
)

// Event is one telemetry sample published to the broadcast hub. Events
// are ephemeral: generated, published once, and discarded.
//
// Timestamp is Unix seconds with fractional precision. WaypointIdx is
// set on ON_SCHEDULE/WAYPOINT_REACHED events (the waypoint the drone is
// at); HeadingToWaypointIdx on interpolated samples (the waypoint the
// drone is flying toward).
type Event struct {
	FlightID             int     `json:"flightId"`
	DroneID              int     `json:"droneId"`
	Latitude             float64 `json:"lat"`
	Longitude            float64 `json:"lon"`
	AltitudeM            float64 `json:"alt"`
	Timestamp            float64 `json:"timestamp"`
	Status               string  `json:"status"`
	WaypointIdx          *int    `json:"waypoint_idx,omitempty"`
	HeadingToWaypointIdx *int    `json:"heading_to_waypoint_idx,omitempty"`
}
