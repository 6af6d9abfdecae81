package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skylane-uas/skylane/internal/airspace"
)

// ZoneRepository handles database operations for restricted zones.
// Zones are read-mostly reference data: the authority manages them,
// every flight submission reads them.
type ZoneRepository struct {
	db *DB
}

// NewZoneRepository creates a new restricted zone repository.
func NewZoneRepository(db *DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

const zoneColumns = `
	id, name, description, kind,
	center_latitude, center_longitude, radius_m,
	min_latitude, max_latitude, min_longitude, max_longitude,
	min_altitude_m, max_altitude_m`

func scanZone(row interface{ Scan(...any) error }) (*airspace.Zone, error) {
	var z airspace.Zone
	var centerLat, centerLon, radius sql.NullFloat64
	var minLat, maxLat, minLon, maxLon sql.NullFloat64
	var minAlt, maxAlt sql.NullFloat64

	err := row.Scan(
		&z.ID, &z.Name, &z.Description, &z.Kind,
		&centerLat, &centerLon, &radius,
		&minLat, &maxLat, &minLon, &maxLon,
		&minAlt, &maxAlt,
	)
	if err != nil {
		return nil, err
	}

	z.CenterLatitude = centerLat.Float64
	z.CenterLongitude = centerLon.Float64
	z.RadiusM = radius.Float64
	z.MinLatitude = minLat.Float64
	z.MaxLatitude = maxLat.Float64
	z.MinLongitude = minLon.Float64
	z.MaxLongitude = maxLon.Float64
	if minAlt.Valid {
		v := minAlt.Float64
		z.MinAltitudeM = &v
	}
	if maxAlt.Valid {
		v := maxAlt.Float64
		z.MaxAltitudeM = &v
	}

	return &z, nil
}

// ListActiveZones returns all active zones ordered by id, which is the
// definition order the airspace checker's first-match tie-break relies
// on.
func (r *ZoneRepository) ListActiveZones(ctx context.Context) ([]airspace.Zone, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+zoneColumns+`
		 FROM restricted_zones
		 WHERE is_active = TRUE
		 ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query restricted zones: %w", err)
	}
	defer rows.Close()

	var zones []airspace.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restricted zone: %w", err)
		}
		zones = append(zones, *z)
	}

	return zones, rows.Err()
}

// Create inserts a new restricted zone. createdBy is the authority admin
// defining it; zero records no creator (seed tooling).
func (r *ZoneRepository) Create(ctx context.Context, z *airspace.Zone, createdBy int) error {
	var creator any
	if createdBy > 0 {
		creator = createdBy
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO restricted_zones (
			name, description, kind,
			center_latitude, center_longitude, radius_m,
			min_latitude, max_latitude, min_longitude, max_longitude,
			min_altitude_m, max_altitude_m, is_active, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, $13)
		RETURNING id`,
		z.Name, z.Description, z.Kind,
		nullableZero(z.CenterLatitude, z.Kind == airspace.KindCircle),
		nullableZero(z.CenterLongitude, z.Kind == airspace.KindCircle),
		nullableZero(z.RadiusM, z.Kind == airspace.KindCircle),
		nullableZero(z.MinLatitude, z.Kind == airspace.KindRectangle),
		nullableZero(z.MaxLatitude, z.Kind == airspace.KindRectangle),
		nullableZero(z.MinLongitude, z.Kind == airspace.KindRectangle),
		nullableZero(z.MaxLongitude, z.Kind == airspace.KindRectangle),
		z.MinAltitudeM, z.MaxAltitudeM, creator,
	).Scan(&z.ID)

	if err != nil {
		return fmt.Errorf("failed to insert restricted zone: %w", err)
	}
	return nil
}

// Deactivate flips a zone inactive so it no longer gates submissions.
// Zones are never hard-deleted; past rejections reference them.
func (r *ZoneRepository) Deactivate(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE restricted_zones SET is_active = FALSE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate restricted zone: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// nullableZero stores NULL instead of a meaningless zero when the field
// does not apply to the zone's geometry kind.
func nullableZero(v float64, applies bool) any {
	if !applies {
		return nil
	}
	return v
}
