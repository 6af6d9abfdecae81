package flight

import (
	"context"
	"fmt"
	"time"

	"github.com/skylane-uas/skylane/internal/airspace"
	"github.com/skylane-uas/skylane/pkg/geo"
)

// StatusChange carries the extra fields a conditional status update writes
// alongside the new status.
type StatusChange struct {
	RejectionReason       *string
	ApprovedByAuthorityID *int
	ApprovedAt            *time.Time
	ActualDeparture       *time.Time
	ActualArrival         *time.Time
}

// ListFilter selects which plans a list operation returns.
type ListFilter struct {
	// SubmitterID limits results to plans submitted by this user.
	// Zero means no submitter filter (admin listing).
	SubmitterID int
	Limit       int
	Offset      int
}

// PlanStore is the persistence contract the state machine requires.
//
// Get returns (nil, nil) when the id does not exist. UpdateStatus is a
// compare-and-set: it applies the change only if the stored status still
// equals expected, and returns (nil, nil) when the precondition fails or
// the plan is gone; distinguishing the two is the caller's job via a
// prior read.
type PlanStore interface {
	CreateWithWaypoints(ctx context.Context, plan *FlightPlan, waypoints []Waypoint) error
	Get(ctx context.Context, id int) (*FlightPlan, error)
	GetWaypoints(ctx context.Context, planID int) ([]Waypoint, error)
	List(ctx context.Context, filter ListFilter) ([]FlightPlan, error)
	UpdateStatus(ctx context.Context, id int, expected, next Status, change StatusChange) (*FlightPlan, error)
	SoftDelete(ctx context.Context, id int) error
	HardDelete(ctx context.Context, id int) error
}

// ZoneSource yields the active restricted zones, in definition order.
type ZoneSource interface {
	ListActiveZones(ctx context.Context) ([]airspace.Zone, error)
}

// DroneSource resolves drones for ownership checks at submission time.
// Returns (nil, nil) when the drone does not exist.
type DroneSource interface {
	GetDrone(ctx context.Context, id int) (*Drone, error)
}

// Service owns every status mutation of a flight plan. All transitions go
// through the store's compare-and-set discipline so concurrent actors
// (pilots, admins, the telemetry simulator) cannot lose updates.
type Service struct {
	plans  PlanStore
	zones  ZoneSource
	drones DroneSource
	now    func() time.Time
}

// NewService creates a flight plan service over the given collaborators.
func NewService(plans PlanStore, zones ZoneSource, drones DroneSource) *Service {
	return &Service{
		plans:  plans,
		zones:  zones,
		drones: drones,
		now:    time.Now,
	}
}

// SubmitRequest is the validated input for a new flight plan.
type SubmitRequest struct {
	DroneID   int
	Departure time.Time
	Arrival   time.Time
	Notes     string
	Waypoints []WaypointInput
}

// WaypointInput is one waypoint of a submission, in traversal order.
type WaypointInput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AltitudeM float64 `json:"altitudeM"`
}

// Submit validates a new flight plan and persists it in PENDING status,
// atomically with its waypoint sequence.
//
// Preconditions, checked in order before any write: arrival after
// departure, non-empty in-range waypoints, actor authorized to operate
// the drone, and every waypoint clear of active no-fly zones. The first
// failing waypoint and zone are identified in the returned error.
func (s *Service) Submit(ctx context.Context, actor Actor, req SubmitRequest) (*FlightPlan, error) {
	if !req.Arrival.After(req.Departure) {
		return nil, validationf("planned arrival must be after planned departure")
	}
	if len(req.Waypoints) == 0 {
		return nil, validationf("flight plan requires at least one waypoint")
	}
	for i, wp := range req.Waypoints {
		if !geo.ValidLatitude(wp.Latitude) {
			return nil, validationf("waypoint %d: latitude %v out of range [-90, 90]", i, wp.Latitude)
		}
		if !geo.ValidLongitude(wp.Longitude) {
			return nil, validationf("waypoint %d: longitude %v out of range [-180, 180]", i, wp.Longitude)
		}
		if wp.AltitudeM < 0 {
			return nil, validationf("waypoint %d: altitude %vm below ground", i, wp.AltitudeM)
		}
	}

	drone, err := s.drones.GetDrone(ctx, req.DroneID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up drone: %w", err)
	}
	if drone == nil {
		return nil, fmt.Errorf("drone %d: %w", req.DroneID, ErrNotFound)
	}
	if !s.canOperate(actor, drone) {
		return nil, fmt.Errorf("not authorized to operate drone %d: %w", drone.ID, ErrForbidden)
	}

	zones, err := s.zones.ListActiveZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load restricted zones: %w", err)
	}
	route := make([]geo.Point, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		route[i] = geo.Point{Latitude: wp.Latitude, Longitude: wp.Longitude, AltitudeM: wp.AltitudeM}
	}
	if v := airspace.NewChecker(zones).CheckRoute(route); v != nil {
		return nil, &ZoneViolationError{
			WaypointIndex:   v.WaypointIndex,
			ZoneName:        v.Zone.Name,
			ZoneDescription: v.Zone.Description,
		}
	}

	plan := &FlightPlan{
		UserID:           actor.UserID,
		DroneID:          drone.ID,
		OrganizationID:   drone.OrganizationID,
		PlannedDeparture: req.Departure,
		PlannedArrival:   req.Arrival,
		Status:           StatusPending,
		Notes:            req.Notes,
	}
	waypoints := make([]Waypoint, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		waypoints[i] = Waypoint{
			Latitude:      wp.Latitude,
			Longitude:     wp.Longitude,
			AltitudeM:     wp.AltitudeM,
			SequenceOrder: i,
		}
	}
	if err := s.plans.CreateWithWaypoints(ctx, plan, waypoints); err != nil {
		return nil, fmt.Errorf("failed to create flight plan: %w", err)
	}
	return plan, nil
}

// canOperate reports whether the actor may fly the drone: either they own
// it, or both belong to the same organization.
func (s *Service) canOperate(actor Actor, drone *Drone) bool {
	if drone.OwnerUserID == actor.UserID {
		return true
	}
	if drone.OrganizationID != nil && actor.OrganizationID != nil &&
		*drone.OrganizationID == *actor.OrganizationID {
		return true
	}
	return false
}

// Decide approves or rejects a PENDING flight plan. Only an authority
// admin may decide. Approval stamps the approval time and the deciding
// actor; rejection stores the reason.
func (s *Service) Decide(ctx context.Context, actor Actor, planID int, decision Status, reason string) (*FlightPlan, error) {
	if decision != StatusApproved && decision != StatusRejected {
		return nil, validationf("decision must be APPROVED or REJECTED, got %s", decision)
	}
	if !actor.IsAuthority() {
		return nil, fmt.Errorf("only an authority admin may decide flight plans: %w", ErrForbidden)
	}

	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flight plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("flight plan %d: %w", planID, ErrNotFound)
	}
	if plan.Status != StatusPending {
		return nil, fmt.Errorf("cannot decide a %s plan: %w", plan.Status, ErrInvalidTransition)
	}

	change := StatusChange{}
	if decision == StatusApproved {
		now := s.now().UTC()
		change.ApprovedAt = &now
		change.ApprovedByAuthorityID = &actor.UserID
	} else {
		change.RejectionReason = &reason
	}
	return s.commitTransition(ctx, planID, StatusPending, decision, change)
}

// Start transitions an APPROVED plan to ACTIVE. Only the submitting pilot
// may start their flight. The caller is responsible for launching the
// telemetry simulation after a successful start.
func (s *Service) Start(ctx context.Context, actor Actor, planID int) (*FlightPlan, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flight plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("flight plan %d: %w", planID, ErrNotFound)
	}
	if !actor.Owns(plan) {
		return nil, fmt.Errorf("only the submitting pilot may start flight %d: %w", planID, ErrForbidden)
	}
	if plan.Status != StatusApproved {
		return nil, fmt.Errorf("flight must be APPROVED to start, currently %s: %w", plan.Status, ErrInvalidTransition)
	}

	now := s.now().UTC()
	return s.commitTransition(ctx, planID, StatusApproved, StatusActive, StatusChange{ActualDeparture: &now})
}

// Complete moves an ACTIVE plan to COMPLETED and stamps the actual
// arrival time. It is invoked by the telemetry simulator upon reaching
// the final waypoint, never by an external actor.
func (s *Service) Complete(ctx context.Context, planID int) (*FlightPlan, error) {
	now := s.now().UTC()
	plan, err := s.commitTransition(ctx, planID, StatusActive, StatusCompleted, StatusChange{ActualArrival: &now})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Cancel moves a non-terminal plan to CANCELLED. The submitting pilot may
// cancel while the plan is PENDING or APPROVED; an authority admin may
// cancel any non-terminal plan, including an ACTIVE one. Callers cancel
// the running simulation separately when the previous status was ACTIVE.
func (s *Service) Cancel(ctx context.Context, actor Actor, planID int) (*FlightPlan, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flight plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("flight plan %d: %w", planID, ErrNotFound)
	}
	if IsTerminal(plan.Status) {
		return nil, fmt.Errorf("cannot cancel a %s plan: %w", plan.Status, ErrInvalidTransition)
	}
	if !actor.IsAuthority() {
		if !actor.Owns(plan) {
			return nil, fmt.Errorf("not authorized to cancel flight %d: %w", planID, ErrForbidden)
		}
		if plan.Status == StatusActive {
			return nil, fmt.Errorf("only an authority admin may cancel an active flight: %w", ErrForbidden)
		}
	}
	return s.commitTransition(ctx, planID, plan.Status, StatusCancelled, StatusChange{})
}

// Delete removes a flight plan and its waypoints. The submitting pilot
// soft-deletes their own plan while it is PENDING, REJECTED or CANCELLED;
// an authority admin hard-deletes regardless of status.
func (s *Service) Delete(ctx context.Context, actor Actor, planID int) error {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to load flight plan: %w", err)
	}
	if plan == nil {
		return fmt.Errorf("flight plan %d: %w", planID, ErrNotFound)
	}

	if actor.IsAuthority() {
		if err := s.plans.HardDelete(ctx, planID); err != nil {
			return fmt.Errorf("failed to delete flight plan: %w", err)
		}
		return nil
	}

	if !actor.Owns(plan) {
		return fmt.Errorf("not authorized to delete flight %d: %w", planID, ErrForbidden)
	}
	switch plan.Status {
	case StatusPending, StatusRejected, StatusCancelled:
	default:
		return fmt.Errorf("cannot delete a %s plan: %w", plan.Status, ErrForbidden)
	}
	if err := s.plans.SoftDelete(ctx, planID); err != nil {
		return fmt.Errorf("failed to delete flight plan: %w", err)
	}
	return nil
}

// Get returns one flight plan. A pilot may only read their own plans;
// authority admins may read any. NotFound takes precedence over Forbidden.
func (s *Service) Get(ctx context.Context, actor Actor, planID int) (*FlightPlan, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flight plan: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("flight plan %d: %w", planID, ErrNotFound)
	}
	if !actor.Owns(plan) && !actor.IsAuthority() {
		return nil, fmt.Errorf("not authorized to read flight %d: %w", planID, ErrForbidden)
	}
	return plan, nil
}

// Waypoints returns the ordered waypoint sequence of a plan the actor may
// read.
func (s *Service) Waypoints(ctx context.Context, actor Actor, planID int) ([]Waypoint, error) {
	if _, err := s.Get(ctx, actor, planID); err != nil {
		return nil, err
	}
	wps, err := s.plans.GetWaypoints(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waypoints: %w", err)
	}
	return wps, nil
}

// ListMine returns the actor's own flight plans, newest departure first.
func (s *Service) ListMine(ctx context.Context, actor Actor, limit, offset int) ([]FlightPlan, error) {
	plans, err := s.plans.List(ctx, ListFilter{SubmitterID: actor.UserID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list flight plans: %w", err)
	}
	return plans, nil
}

// ListAll returns every flight plan in the system. Authority admins only.
func (s *Service) ListAll(ctx context.Context, actor Actor, limit, offset int) ([]FlightPlan, error) {
	if !actor.IsAuthority() {
		return nil, fmt.Errorf("only an authority admin may list all flights: %w", ErrForbidden)
	}
	plans, err := s.plans.List(ctx, ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list flight plans: %w", err)
	}
	return plans, nil
}

// commitTransition applies a compare-and-set status update and maps a
// precondition miss back to NotFound or InvalidTransition via a re-read.
func (s *Service) commitTransition(ctx context.Context, planID int, expected, next Status, change StatusChange) (*FlightPlan, error) {
	updated, err := s.plans.UpdateStatus(ctx, planID, expected, next, change)
	if err != nil {
		return nil, fmt.Errorf("failed to update flight plan status: %w", err)
	}
	if updated != nil {
		return updated, nil
	}

	// CAS miss: either the plan vanished or a concurrent transition won.
	current, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read flight plan: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("flight plan %d: %w", planID, ErrNotFound)
	}
	return nil, fmt.Errorf("flight plan %d moved from %s to %s concurrently: %w",
		planID, expected, current.Status, ErrInvalidTransition)
}
