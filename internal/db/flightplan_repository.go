package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skylane-uas/skylane/internal/flight"
)

// FlightPlanRepository handles database operations for flight plans and
// their waypoints. It is the production implementation of the flight
// service's PlanStore.
type FlightPlanRepository struct {
	db *DB
}

// NewFlightPlanRepository creates a new flight plan repository.
func NewFlightPlanRepository(db *DB) *FlightPlanRepository {
	return &FlightPlanRepository{db: db}
}

const flightPlanColumns = `
	id, user_id, drone_id, organization_id,
	planned_departure, planned_arrival, actual_departure, actual_arrival,
	status, notes, rejection_reason,
	approved_by_org_admin_id, approved_by_authority_id, approved_at,
	created_at, updated_at`

// scanFlightPlan reads one flight plan row in flightPlanColumns order.
func scanFlightPlan(row interface{ Scan(...any) error }) (*flight.FlightPlan, error) {
	var fp flight.FlightPlan
	var orgID, orgAdminID, authorityID sql.NullInt64
	var actualDep, actualArr, approvedAt sql.NullTime
	var rejectionReason sql.NullString

	err := row.Scan(
		&fp.ID, &fp.UserID, &fp.DroneID, &orgID,
		&fp.PlannedDeparture, &fp.PlannedArrival, &actualDep, &actualArr,
		&fp.Status, &fp.Notes, &rejectionReason,
		&orgAdminID, &authorityID, &approvedAt,
		&fp.CreatedAt, &fp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if orgID.Valid {
		v := int(orgID.Int64)
		fp.OrganizationID = &v
	}
	if orgAdminID.Valid {
		v := int(orgAdminID.Int64)
		fp.ApprovedByOrgAdminID = &v
	}
	if authorityID.Valid {
		v := int(authorityID.Int64)
		fp.ApprovedByAuthorityID = &v
	}
	if actualDep.Valid {
		t := actualDep.Time
		fp.ActualDeparture = &t
	}
	if actualArr.Valid {
		t := actualArr.Time
		fp.ActualArrival = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		fp.ApprovedAt = &t
	}
	if rejectionReason.Valid {
		s := rejectionReason.String
		fp.RejectionReason = &s
	}

	return &fp, nil
}

// CreateWithWaypoints inserts a flight plan and its waypoint sequence in
// a single transaction: either all rows commit or none do. On success the
// plan's ID and timestamps are filled in, and each waypoint gets its ID
// and flight plan reference.
func (r *FlightPlanRepository) CreateWithWaypoints(ctx context.Context, plan *flight.FlightPlan, waypoints []flight.Waypoint) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO flight_plans (
			user_id, drone_id, organization_id,
			planned_departure, planned_arrival, status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		plan.UserID, plan.DroneID, nullableInt(plan.OrganizationID),
		plan.PlannedDeparture, plan.PlannedArrival, plan.Status, plan.Notes,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert flight plan: %w", err)
	}

	for i := range waypoints {
		wp := &waypoints[i]
		wp.FlightPlanID = plan.ID
		err = tx.QueryRowContext(ctx,
			`INSERT INTO waypoints (
				flight_plan_id, latitude, longitude, altitude_m, sequence_order
			) VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			wp.FlightPlanID, wp.Latitude, wp.Longitude, wp.AltitudeM, wp.SequenceOrder,
		).Scan(&wp.ID)
		if err != nil {
			return fmt.Errorf("failed to insert waypoint %d: %w", wp.SequenceOrder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit flight plan: %w", err)
	}
	return nil
}

// Get retrieves one flight plan by id. Returns (nil, nil) if the plan
// does not exist or is soft-deleted.
func (r *FlightPlanRepository) Get(ctx context.Context, id int) (*flight.FlightPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT`+flightPlanColumns+`
		 FROM flight_plans
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)

	fp, err := scanFlightPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flight plan: %w", err)
	}
	return fp, nil
}

// GetWaypoints returns a plan's waypoints sorted by sequence order.
func (r *FlightPlanRepository) GetWaypoints(ctx context.Context, planID int) ([]flight.Waypoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, flight_plan_id, latitude, longitude, altitude_m, sequence_order
		 FROM waypoints
		 WHERE flight_plan_id = $1
		 ORDER BY sequence_order ASC`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query waypoints: %w", err)
	}
	defer rows.Close()

	var waypoints []flight.Waypoint
	for rows.Next() {
		var wp flight.Waypoint
		if err := rows.Scan(&wp.ID, &wp.FlightPlanID, &wp.Latitude, &wp.Longitude, &wp.AltitudeM, &wp.SequenceOrder); err != nil {
			return nil, fmt.Errorf("failed to scan waypoint: %w", err)
		}
		waypoints = append(waypoints, wp)
	}

	return waypoints, rows.Err()
}

// List returns flight plans matching the filter, newest planned
// departure first.
func (r *FlightPlanRepository) List(ctx context.Context, filter flight.ListFilter) ([]flight.FlightPlan, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT` + flightPlanColumns + `
		 FROM flight_plans
		 WHERE deleted_at IS NULL`
	args := []any{}

	if filter.SubmitterID != 0 {
		args = append(args, filter.SubmitterID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY planned_departure DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query flight plans: %w", err)
	}
	defer rows.Close()

	var plans []flight.FlightPlan
	for rows.Next() {
		fp, err := scanFlightPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight plan: %w", err)
		}
		plans = append(plans, *fp)
	}

	return plans, rows.Err()
}

// UpdateStatus applies a conditional status transition: the update only
// takes effect if the stored status still equals expected. Returns
// (nil, nil) when the precondition fails or the plan is gone -- the
// caller distinguishes the two via a prior read.
func (r *FlightPlanRepository) UpdateStatus(ctx context.Context, id int, expected, next flight.Status, change flight.StatusChange) (*flight.FlightPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE flight_plans SET
			status = $1,
			rejection_reason = COALESCE($2, rejection_reason),
			approved_by_authority_id = COALESCE($3, approved_by_authority_id),
			approved_at = COALESCE($4, approved_at),
			actual_departure = COALESCE($5, actual_departure),
			actual_arrival = COALESCE($6, actual_arrival),
			updated_at = NOW()
		 WHERE id = $7 AND status = $8 AND deleted_at IS NULL
		 RETURNING`+flightPlanColumns,
		next,
		change.RejectionReason,
		nullableInt(change.ApprovedByAuthorityID),
		change.ApprovedAt,
		change.ActualDeparture,
		change.ActualArrival,
		id, expected,
	)

	fp, err := scanFlightPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update flight plan status: %w", err)
	}
	return fp, nil
}

// SoftDelete marks a plan deleted without removing its rows. Soft-deleted
// plans disappear from reads but stay auditable.
func (r *FlightPlanRepository) SoftDelete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE flight_plans SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete flight plan: %w", err)
	}
	return nil
}

// HardDelete removes a plan permanently; the waypoints go with it via
// the ON DELETE CASCADE constraint.
func (r *FlightPlanRepository) HardDelete(ctx context.Context, id int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM flight_plans WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete flight plan: %w", err)
	}
	return nil
}

// nullableInt adapts *int to a driver-friendly value.
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
