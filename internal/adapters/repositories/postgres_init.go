package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Initialize the Postgres schema. Statements are idempotent.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createRoutesQuery := `
	CREATE TABLE IF NOT EXISTS mobile_routes (
		id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		route_date TIMESTAMPTZ NOT NULL,
		start_lat DOUBLE PRECISION NOT NULL,
		start_lng DOUBLE PRECISION NOT NULL,
		start_label TEXT NOT NULL DEFAULT '',
		end_lat DOUBLE PRECISION,
		end_lng DOUBLE PRECISION,
		end_label TEXT,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`

	createWaypointsQuery := `
	CREATE TABLE IF NOT EXISTS route_waypoints (
		route_id TEXT NOT NULL REFERENCES mobile_routes(id),
		position INTEGER NOT NULL,
		order_id TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		service_time_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		PRIMARY KEY (route_id, position)
	);
	`

	createStatusChangesQuery := `
	CREATE TABLE IF NOT EXISTS route_status_changes (
		id BIGSERIAL PRIMARY KEY,
		route_id TEXT NOT NULL REFERENCES mobile_routes(id),
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		changed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createConstraintsQuery := `
	CREATE TABLE IF NOT EXISTS capacity_constraints (
		vehicle_id TEXT NOT NULL,
		material_id TEXT NOT NULL,
		max_quantity DOUBLE PRECISION NOT NULL CHECK (max_quantity > 0),
		unit TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (vehicle_id, material_id)
	);
	`

	createInventoryQuery := `
	CREATE TABLE IF NOT EXISTS vehicle_inventory (
		vehicle_id TEXT NOT NULL,
		material_id TEXT NOT NULL,
		current_quantity DOUBLE PRECISION NOT NULL CHECK (current_quantity >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (vehicle_id, material_id)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_mobile_routes_driver_date
	ON mobile_routes(driver_id, route_date);
	`

	statements := []string{
		createRoutesQuery,
		createWaypointsQuery,
		createStatusChangesQuery,
		createConstraintsQuery,
		createInventoryQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type ConstraintSeed struct {
	VehicleID   string  `json:"vehicle_id"`
	MaterialID  string  `json:"material_id"`
	MaxQuantity float64 `json:"max_quantity"`
	Unit        string  `json:"unit"`
}

// Populate capacity constraints from a JSON file.
func SeedConstraintsFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed constraints: read %q: %w", jsonPath, err)
	}

	var data []ConstraintSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed constraints: parse json: %w", err)
	}

	rows := make([]ConstraintSeed, 0, len(data))
	for i, item := range data {
		vehicle := strings.TrimSpace(item.VehicleID)
		material := strings.TrimSpace(item.MaterialID)
		if vehicle == "" || material == "" {
			return fmt.Errorf("seed constraints: item at index %d: vehicle_id and material_id are required", i+1)
		}
		if item.MaxQuantity <= 0 {
			return fmt.Errorf("seed constraints: item at index %d: max_quantity must be positive, got %g", i+1, item.MaxQuantity)
		}
		rows = append(rows, ConstraintSeed{
			VehicleID:   vehicle,
			MaterialID:  material,
			MaxQuantity: item.MaxQuantity,
			Unit:        strings.TrimSpace(item.Unit),
		})
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed constraints: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertConstraintQuery)
	if err != nil {
		return fmt.Errorf("seed constraints: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range rows {
		if _, err := stmt.ExecContext(ctx, c.VehicleID, c.MaterialID, c.MaxQuantity, c.Unit); err != nil {
			return fmt.Errorf("seed constraints: upsert %s/%s: %w", c.VehicleID, c.MaterialID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed constraints: commit tx: %w", err)
	}

	return nil
}
