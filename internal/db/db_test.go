package db

import (
	"strings"
	"testing"
)

// TestSchemaEmbedded verifies the embedded schema is present and creates
// every table the repositories query.
func TestSchemaEmbedded(t *testing.T) {
	data, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("schema.sql not embedded: %v", err)
	}
	schema := string(data)

	for _, table := range []string{
		"organizations",
		"users",
		"drones",
		"flight_plans",
		"waypoints",
		"restricted_zones",
	} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("schema missing table %s", table)
		}
	}
}

// TestSchemaIdempotent verifies every DDL statement tolerates re-running,
// since InitSchema executes on every startup.
func TestSchemaIdempotent(t *testing.T) {
	data, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("schema.sql not embedded: %v", err)
	}
	schema := string(data)

	creates := strings.Count(schema, "CREATE TABLE ")
	guarded := strings.Count(schema, "CREATE TABLE IF NOT EXISTS ")
	if creates != guarded {
		t.Errorf("%d of %d CREATE TABLE statements lack IF NOT EXISTS", creates-guarded, creates)
	}

	idxCreates := strings.Count(schema, "CREATE INDEX ")
	idxGuarded := strings.Count(schema, "CREATE INDEX IF NOT EXISTS ")
	if idxCreates != idxGuarded {
		t.Errorf("%d of %d CREATE INDEX statements lack IF NOT EXISTS", idxCreates-idxGuarded, idxCreates)
	}
}
