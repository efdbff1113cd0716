package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fleet-ops-service/internal/domain"
	"fmt"
	"time"
)

const upsertConstraintQuery = `
	INSERT INTO capacity_constraints (vehicle_id, material_id, max_quantity, unit)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (vehicle_id, material_id) DO UPDATE
	SET max_quantity = EXCLUDED.max_quantity,
		unit = EXCLUDED.unit;
	`

// Postgres-backed implementation of the RouteStore and CapacityStore ports.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) GetRoute(ctx context.Context, id string) (*domain.MobileRoute, error) {
	if s.DB == nil {
		return nil, errors.New("postgres store: DB is nil")
	}

	q := `
	SELECT
		driver_id, name, route_date,
		start_lat, start_lng, start_label,
		end_lat, end_lng, end_label,
		status, created_at, updated_at
	FROM mobile_routes
	WHERE id = $1;
	`

	r := domain.MobileRoute{ID: id}
	var (
		status         string
		endLat, endLng sql.NullFloat64
		endLabel       sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, q, id).Scan(
		&r.DriverID, &r.Name, &r.RouteDate,
		&r.StartLocation.Lat, &r.StartLocation.Lng, &r.StartLocation.Label,
		&endLat, &endLng, &endLabel,
		&status, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get route %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route %q: query mobile_routes: %w", id, err)
	}

	r.Status = domain.RouteStatus(status)
	if endLat.Valid && endLng.Valid {
		r.EndLocation = &domain.Coordinates{Lat: endLat.Float64, Lng: endLng.Float64, Label: endLabel.String}
	}

	waypoints, err := s.listWaypoints(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Waypoints = waypoints

	return &r, nil
}

func (s *PostgresStore) listWaypoints(ctx context.Context, routeID string) ([]domain.Waypoint, error) {
	q := `
	SELECT order_id, lat, lng, label, service_time_minutes, status
	FROM route_waypoints
	WHERE route_id = $1
	ORDER BY position;
	`

	rows, err := s.DB.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, fmt.Errorf("get route %q: query route_waypoints: %w", routeID, err)
	}
	defer rows.Close()

	out := make([]domain.Waypoint, 0, 16)
	for rows.Next() {
		var w domain.Waypoint
		var status string
		if err := rows.Scan(&w.OrderID, &w.Location.Lat, &w.Location.Lng, &w.Location.Label, &w.ServiceTime, &status); err != nil {
			return nil, fmt.Errorf("get route %q: scan waypoint: %w", routeID, err)
		}
		w.Status = domain.WaypointStatus(status)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get route %q: waypoint iteration: %w", routeID, err)
	}

	return out, nil
}

func (s *PostgresStore) CreateRoute(ctx context.Context, route *domain.MobileRoute) error {
	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}
	if route == nil || route.ID == "" {
		return errors.New("create route: route id must be non-empty")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create route: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var endLat, endLng sql.NullFloat64
	var endLabel sql.NullString
	if route.EndLocation != nil {
		endLat = sql.NullFloat64{Float64: route.EndLocation.Lat, Valid: true}
		endLng = sql.NullFloat64{Float64: route.EndLocation.Lng, Valid: true}
		endLabel = sql.NullString{String: route.EndLocation.Label, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO mobile_routes (
		id, driver_id, name, route_date,
		start_lat, start_lng, start_label,
		end_lat, end_lng, end_label,
		status, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
	`,
		route.ID, route.DriverID, route.Name, route.RouteDate,
		route.StartLocation.Lat, route.StartLocation.Lng, route.StartLocation.Label,
		endLat, endLng, endLabel,
		string(route.Status), route.CreatedAt, route.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create route %q: insert mobile_routes: %w", route.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO route_waypoints (route_id, position, order_id, lat, lng, label, service_time_minutes, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`)
	if err != nil {
		return fmt.Errorf("create route %q: prepare waypoints: %w", route.ID, err)
	}
	defer stmt.Close()

	for i, w := range route.Waypoints {
		if _, err := stmt.ExecContext(ctx,
			route.ID, i, w.OrderID, w.Location.Lat, w.Location.Lng, w.Location.Label, w.ServiceTime, string(w.Status),
		); err != nil {
			return fmt.Errorf("create route %q: insert waypoint %d: %w", route.ID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create route %q: commit: %w", route.ID, err)
	}

	return nil
}

// UpdateRouteStatus writes the new status and an audit row in one transaction.
// The UPDATE is conditional on oldStatus so concurrent writers cannot both win.
func (s *PostgresStore) UpdateRouteStatus(ctx context.Context, id string, oldStatus, newStatus domain.RouteStatus) error {
	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update route status: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE mobile_routes
	SET status = $3, updated_at = $4
	WHERE id = $1 AND status = $2;
	`, id, string(oldStatus), string(newStatus), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update route status %q: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update route status %q: rows affected: %w", id, err)
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM mobile_routes WHERE id = $1);`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update route status %q: check existence: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("update route status %q: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("update route status %q: status is no longer %q: %w", id, oldStatus, domain.ErrInvalidTransition)
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO route_status_changes (route_id, old_status, new_status)
	VALUES ($1, $2, $3);
	`, id, string(oldStatus), string(newStatus)); err != nil {
		return fmt.Errorf("update route status %q: insert status change: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update route status %q: commit: %w", id, err)
	}

	return nil
}

func (s *PostgresStore) UpdateWaypointStatus(ctx context.Context, id string, orderID string, status domain.WaypointStatus) error {
	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	res, err := s.DB.ExecContext(ctx, `
	UPDATE route_waypoints
	SET status = $3
	WHERE route_id = $1 AND order_id = $2;
	`, id, orderID, string(status))
	if err != nil {
		return fmt.Errorf("update waypoint %q/%q: %w", id, orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update waypoint %q/%q: rows affected: %w", id, orderID, err)
	}
	if n == 0 {
		return fmt.Errorf("update waypoint %q/%q: %w", id, orderID, domain.ErrNotFound)
	}

	return nil
}

func (s *PostgresStore) GetConstraint(ctx context.Context, vehicleID, materialID string) (*domain.CapacityConstraint, error) {
	if s.DB == nil {
		return nil, errors.New("postgres store: DB is nil")
	}

	c := domain.CapacityConstraint{VehicleID: vehicleID, MaterialID: materialID}
	err := s.DB.QueryRowContext(ctx, `
	SELECT max_quantity, unit
	FROM capacity_constraints
	WHERE vehicle_id = $1 AND material_id = $2;
	`, vehicleID, materialID).Scan(&c.MaxQuantity, &c.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get constraint %s/%s: %w", vehicleID, materialID, err)
	}

	return &c, nil
}

func (s *PostgresStore) UpsertConstraint(ctx context.Context, c domain.CapacityConstraint) error {
	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	if _, err := s.DB.ExecContext(ctx, upsertConstraintQuery, c.VehicleID, c.MaterialID, c.MaxQuantity, c.Unit); err != nil {
		return fmt.Errorf("upsert constraint %s/%s: %w", c.VehicleID, c.MaterialID, err)
	}

	return nil
}

func (s *PostgresStore) ListConstraints(ctx context.Context, vehicleID string) ([]domain.CapacityConstraint, error) {
	if s.DB == nil {
		return nil, errors.New("postgres store: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT material_id, max_quantity, unit
	FROM capacity_constraints
	WHERE vehicle_id = $1
	ORDER BY material_id;
	`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list constraints %s: query capacity_constraints: %w", vehicleID, err)
	}
	defer rows.Close()

	out := make([]domain.CapacityConstraint, 0, 8)
	for rows.Next() {
		c := domain.CapacityConstraint{VehicleID: vehicleID}
		if err := rows.Scan(&c.MaterialID, &c.MaxQuantity, &c.Unit); err != nil {
			return nil, fmt.Errorf("list constraints %s: scan row: %w", vehicleID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list constraints %s: row iteration: %w", vehicleID, err)
	}

	return out, nil
}

func (s *PostgresStore) GetInventory(ctx context.Context, vehicleID, materialID string) (domain.InventoryRecord, error) {
	rec := domain.InventoryRecord{VehicleID: vehicleID, MaterialID: materialID}
	if s.DB == nil {
		return rec, errors.New("postgres store: DB is nil")
	}

	err := s.DB.QueryRowContext(ctx, `
	SELECT current_quantity
	FROM vehicle_inventory
	WHERE vehicle_id = $1 AND material_id = $2;
	`, vehicleID, materialID).Scan(&rec.CurrentQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("get inventory %s/%s: %w", vehicleID, materialID, err)
	}

	return rec, nil
}

// SetInventory locks the inventory row and writes quantity only if the stored
// value still equals expected. A missing row counts as zero.
func (s *PostgresStore) SetInventory(ctx context.Context, vehicleID, materialID string, expected, quantity float64) error {
	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set inventory: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO vehicle_inventory (vehicle_id, material_id, current_quantity, updated_at)
	VALUES ($1, $2, 0, now())
	ON CONFLICT (vehicle_id, material_id) DO NOTHING;
	`, vehicleID, materialID); err != nil {
		return fmt.Errorf("set inventory %s/%s: ensure row: %w", vehicleID, materialID, err)
	}

	var current float64
	if err := tx.QueryRowContext(ctx, `
	SELECT current_quantity FROM vehicle_inventory
	WHERE vehicle_id = $1 AND material_id = $2
	FOR UPDATE;
	`, vehicleID, materialID).Scan(&current); err != nil {
		return fmt.Errorf("set inventory %s/%s: lock row: %w", vehicleID, materialID, err)
	}
	if current != expected {
		return fmt.Errorf("set inventory %s/%s: stored %g, expected %g: %w", vehicleID, materialID, current, expected, domain.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `
	UPDATE vehicle_inventory
	SET current_quantity = $3, updated_at = now()
	WHERE vehicle_id = $1 AND material_id = $2;
	`, vehicleID, materialID, quantity); err != nil {
		return fmt.Errorf("set inventory %s/%s: %w", vehicleID, materialID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set inventory %s/%s: commit: %w", vehicleID, materialID, err)
	}

	return nil
}
