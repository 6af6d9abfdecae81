package db

import (
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/skylane-uas/skylane/internal/flight"
)

// fakeRow feeds canned values into scanFlightPlan's destinations.
type fakeRow struct {
	values []any
}

func (r *fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		if i >= len(r.values) || r.values[i] == nil {
			continue
		}
		switch dst := d.(type) {
		case *int:
			*dst = r.values[i].(int)
		case *string:
			*dst = r.values[i].(string)
		case *time.Time:
			*dst = r.values[i].(time.Time)
		case *flight.Status:
			*dst = flight.Status(r.values[i].(string))
		default:
			// sql.Null* destinations implement sql.Scanner.
			if scanner, ok := d.(interface{ Scan(any) error }); ok {
				if err := scanner.Scan(r.values[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func TestScanFlightPlan(t *testing.T) {
	dep := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	arr := dep.Add(time.Hour)
	created := dep.Add(-24 * time.Hour)
	approvedAt := dep.Add(-time.Hour)

	t.Run("pending plan with null optionals", func(t *testing.T) {
		row := &fakeRow{values: []any{
			7, 10, 3, nil, // id, user_id, drone_id, organization_id
			dep, arr, nil, nil, // planned/actual times
			"PENDING", "survey run", nil, // status, notes, rejection_reason
			nil, nil, nil, // approvals
			created, created,
		}}

		fp, err := scanFlightPlan(row)
		if err != nil {
			t.Fatalf("scanFlightPlan() error: %v", err)
		}
		if fp.ID != 7 || fp.UserID != 10 || fp.DroneID != 3 {
			t.Errorf("identity = (%d, %d, %d)", fp.ID, fp.UserID, fp.DroneID)
		}
		if fp.OrganizationID != nil {
			t.Errorf("OrganizationID = %v, want nil", fp.OrganizationID)
		}
		if fp.ActualDeparture != nil || fp.ActualArrival != nil {
			t.Error("actual times set on a pending plan")
		}
		if fp.RejectionReason != nil || fp.ApprovedAt != nil {
			t.Error("decision fields set on a pending plan")
		}
		if string(fp.Status) != "PENDING" {
			t.Errorf("Status = %s", fp.Status)
		}
	})

	t.Run("approved plan with populated optionals", func(t *testing.T) {
		row := &fakeRow{values: []any{
			8, 10, 3, int64(5),
			dep, arr, dep, nil,
			"ACTIVE", "", nil,
			nil, int64(99), approvedAt,
			created, created,
		}}

		fp, err := scanFlightPlan(row)
		if err != nil {
			t.Fatalf("scanFlightPlan() error: %v", err)
		}
		if fp.OrganizationID == nil || *fp.OrganizationID != 5 {
			t.Errorf("OrganizationID = %v, want 5", fp.OrganizationID)
		}
		if fp.ApprovedByAuthorityID == nil || *fp.ApprovedByAuthorityID != 99 {
			t.Errorf("ApprovedByAuthorityID = %v, want 99", fp.ApprovedByAuthorityID)
		}
		if fp.ApprovedAt == nil || !fp.ApprovedAt.Equal(approvedAt) {
			t.Errorf("ApprovedAt = %v, want %v", fp.ApprovedAt, approvedAt)
		}
		if fp.ActualDeparture == nil || !fp.ActualDeparture.Equal(dep) {
			t.Errorf("ActualDeparture = %v, want %v", fp.ActualDeparture, dep)
		}
	})
}

func TestNullableInt(t *testing.T) {
	if got := nullableInt(nil); got != nil {
		t.Errorf("nullableInt(nil) = %v, want nil", got)
	}
	v := 42
	if got := nullableInt(&v); got != 42 {
		t.Errorf("nullableInt(&42) = %v, want 42", got)
	}
}

func TestNullableZero(t *testing.T) {
	if got := nullableZero(1.5, false); got != nil {
		t.Errorf("nullableZero(1.5, false) = %v, want nil", got)
	}
	if got := nullableZero(1.5, true); got != 1.5 {
		t.Errorf("nullableZero(1.5, true) = %v, want 1.5", got)
	}
	// Zero is a legal stored value when the field applies.
	if got := nullableZero(0, true); got != 0.0 {
		t.Errorf("nullableZero(0, true) = %v, want 0", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Error("unique_violation code not detected")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("foreign key violation misclassified as unique violation")
	}
	if isUniqueViolation(nil) {
		t.Error("nil error classified as unique violation")
	}
}
