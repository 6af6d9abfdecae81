package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/skylane-uas/skylane/internal/flight"
)

// ErrDroneExists is returned when registering a serial number that is
// already taken.
var ErrDroneExists = errors.New("drone already registered")

// DroneRepository handles database operations for registered drones.
// It is the production implementation of the flight service's
// DroneSource.
type DroneRepository struct {
	db *DB
}

// NewDroneRepository creates a new drone repository.
func NewDroneRepository(db *DB) *DroneRepository {
	return &DroneRepository{db: db}
}

// Create registers a new drone.
func (r *DroneRepository) Create(ctx context.Context, drone *flight.Drone) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO drones (model_name, serial_number, owner_user_id, organization_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		drone.ModelName, drone.SerialNumber, drone.OwnerUserID, nullableInt(drone.OrganizationID),
	).Scan(&drone.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDroneExists
		}
		return fmt.Errorf("failed to insert drone: %w", err)
	}
	return nil
}

// GetDrone retrieves one drone by id. Returns (nil, nil) when it does
// not exist.
func (r *DroneRepository) GetDrone(ctx context.Context, id int) (*flight.Drone, error) {
	var d flight.Drone
	var orgID sql.NullInt64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, model_name, serial_number, owner_user_id, organization_id
		 FROM drones
		 WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.ModelName, &d.SerialNumber, &d.OwnerUserID, &orgID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get drone: %w", err)
	}

	if orgID.Valid {
		v := int(orgID.Int64)
		d.OrganizationID = &v
	}
	return &d, nil
}

// ListByOwner returns the drones owned by a user.
func (r *DroneRepository) ListByOwner(ctx context.Context, ownerUserID int) ([]flight.Drone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, model_name, serial_number, owner_user_id, organization_id
		 FROM drones
		 WHERE owner_user_id = $1
		 ORDER BY id ASC`,
		ownerUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query drones: %w", err)
	}
	defer rows.Close()

	var drones []flight.Drone
	for rows.Next() {
		var d flight.Drone
		var orgID sql.NullInt64
		if err := rows.Scan(&d.ID, &d.ModelName, &d.SerialNumber, &d.OwnerUserID, &orgID); err != nil {
			return nil, fmt.Errorf("failed to scan drone: %w", err)
		}
		if orgID.Valid {
			v := int(orgID.Int64)
			d.OrganizationID = &v
		}
		drones = append(drones, d)
	}

	return drones, rows.Err()
}
