// Package flight implements the flight-plan lifecycle: submission with
// airspace admission control, the approval/rejection/start/completion
// state machine, and the authorization rules around each transition.
package flight

import (
	"time"

	"github.com/skylane-uas/skylane/internal/auth"
)

// Status is the lifecycle state of a flight plan.
type Status string

// Flight plan statuses.
const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the legal state machine. A missing entry means the
// status is terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusActive, StatusCancelled},
	StatusActive:   {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// FlightPlan is a submitted flight authorization request.
type FlightPlan struct {
	ID               int        `json:"id"`
	UserID           int        `json:"userId"`
	DroneID          int        `json:"droneId"`
	OrganizationID   *int       `json:"organizationId,omitempty"`
	PlannedDeparture time.Time  `json:"plannedDeparture"`
	PlannedArrival   time.Time  `json:"plannedArrival"`
	ActualDeparture  *time.Time `json:"actualDeparture,omitempty"`
	ActualArrival    *time.Time `json:"actualArrival,omitempty"`
	Status           Status     `json:"status"`
	Notes            string     `json:"notes,omitempty"`
	RejectionReason  *string    `json:"rejectionReason,omitempty"`

	ApprovedByOrgAdminID  *int       `json:"approvedByOrgAdminId,omitempty"`
	ApprovedByAuthorityID *int       `json:"approvedByAuthorityId,omitempty"`
	ApprovedAt            *time.Time `json:"approvedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Waypoint is a single position in a flight plan's traversal order.
// Waypoints are created atomically with their plan and never mutated.
type Waypoint struct {
	ID            int     `json:"id"`
	FlightPlanID  int     `json:"flightPlanId"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	AltitudeM     float64 `json:"altitudeM"`
	SequenceOrder int     `json:"sequenceOrder"`
}

// Drone is the subset of drone state the flight service needs for
// ownership checks at submission time.
type Drone struct {
	ID             int    `json:"id"`
	ModelName      string `json:"modelName"`
	SerialNumber   string `json:"serialNumber"`
	OwnerUserID    int    `json:"ownerUserId"`
	OrganizationID *int   `json:"organizationId,omitempty"`
}

// Actor is the authenticated principal performing an operation, derived
// from validated token claims by the transport layer.
type Actor struct {
	UserID         int
	Role           string
	OrganizationID *int
}

// IsAuthority reports whether the actor is an aviation-authority admin.
func (a Actor) IsAuthority() bool {
	return a.Role == auth.RoleAuthorityAdmin
}

// Owns reports whether the actor submitted the given plan.
func (a Actor) Owns(p *FlightPlan) bool {
	return p != nil && p.UserID == a.UserID
}
