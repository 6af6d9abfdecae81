package flight

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced flight plan or drone
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor lacks the ownership or
	// role an operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a status change is illegal
	// from the plan's current status, including the case where a
	// concurrent transition already moved the plan out of the expected
	// status.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports malformed caller input. It is detected before
// any write and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ZoneViolationError reports that a specific waypoint of a submitted plan
// falls inside a no-fly zone. The whole submission is rejected; nothing
// is persisted.
type ZoneViolationError struct {
	WaypointIndex   int
	ZoneName        string
	ZoneDescription string
}

func (e *ZoneViolationError) Error() string {
	return fmt.Sprintf("waypoint %d is inside no-fly zone %q: %s",
		e.WaypointIndex, e.ZoneName, e.ZoneDescription)
}
