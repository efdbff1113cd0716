package services

import (
	"context"
	"errors"
	"fleet-ops-service/internal/domain"
	"fleet-ops-service/internal/platform/metrics"
	"fleet-ops-service/internal/platform/obs"
	"fleet-ops-service/internal/ports"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CapacityLedger tracks on-board inventory per (vehicle, material) and keeps
// every stored quantity within [0, max] of the matching constraint.
type CapacityLedger struct {
	store        ports.CapacityStore
	notifier     Notifier
	logger       *zap.Logger
	metrics      *metrics.Metrics
	storeTimeout time.Duration
	locks        *keyedMutex
}

func NewCapacityLedger(
	store ports.CapacityStore,
	notifier Notifier,
	logger *zap.Logger,
	m *metrics.Metrics,
	storeTimeout time.Duration,
) *CapacityLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &CapacityLedger{
		store:        store,
		notifier:     notifier,
		logger:       logger,
		metrics:      m,
		storeTimeout: storeTimeout,
		locks:        newKeyedMutex(),
	}
}

const (
	// Relative tolerance for comparing accumulated float quantities against
	// zero and the constraint maximum.
	quantityTolerance = 1e-9

	maxInventoryWriteAttempts = 3
)

// withinTolerance reports whether a and b differ by no more than
// quantityTolerance relative to scale (absolute below magnitude 1).
func withinTolerance(a, b, scale float64) bool {
	return math.Abs(a-b) <= quantityTolerance*math.Max(1, math.Abs(scale))
}

func ledgerKey(vehicleID, materialID string) string {
	return vehicleID + "|" + materialID
}

// SetConstraint creates or replaces the constraint for a key.
// A maximum below the quantity already aboard is rejected.
func (l *CapacityLedger) SetConstraint(
	ctx context.Context,
	vehicleID, materialID string,
	maxQuantity float64,
	unit string,
) (_ domain.CapacityConstraint, err error) {
	defer obs.Time(ctx, l.logger, "capacity.SetConstraint")(&err)

	if err := validateKey(vehicleID, materialID); err != nil {
		return domain.CapacityConstraint{}, fmt.Errorf("set constraint: %w: %v", domain.ErrInvalidConstraint, err)
	}
	if maxQuantity <= 0 || math.IsNaN(maxQuantity) || math.IsInf(maxQuantity, 0) {
		return domain.CapacityConstraint{}, fmt.Errorf(
			"set constraint: %w: max quantity must be positive, got %g",
			domain.ErrInvalidConstraint, maxQuantity,
		)
	}

	unlock := l.locks.Lock(ledgerKey(vehicleID, materialID))
	defer unlock()

	inv, err := l.getInventory(ctx, vehicleID, materialID)
	if err != nil {
		return domain.CapacityConstraint{}, fmt.Errorf("set constraint: %w", err)
	}
	if inv.CurrentQuantity > maxQuantity && !withinTolerance(inv.CurrentQuantity, maxQuantity, maxQuantity) {
		return domain.CapacityConstraint{}, fmt.Errorf(
			"set constraint: %w: max quantity %g is below current quantity %g",
			domain.ErrInvalidConstraint, maxQuantity, inv.CurrentQuantity,
		)
	}

	c := domain.CapacityConstraint{
		VehicleID:   vehicleID,
		MaterialID:  materialID,
		MaxQuantity: maxQuantity,
		Unit:        strings.TrimSpace(unit),
	}

	err = callStore(ctx, l.storeTimeout, "set constraint", func(ctx context.Context) error {
		return l.store.UpsertConstraint(ctx, c)
	})
	if err != nil {
		return domain.CapacityConstraint{}, err
	}

	return c, nil
}

// CheckCapacity reports whether additional units would fit. It does not reserve anything.
func (l *CapacityLedger) CheckCapacity(
	ctx context.Context,
	vehicleID, materialID string,
	additional float64,
) (_ domain.CapacityCheck, err error) {
	defer obs.Time(ctx, l.logger, "capacity.CheckCapacity")(&err)

	if err := validateKey(vehicleID, materialID); err != nil {
		return domain.CapacityCheck{}, fmt.Errorf("check capacity: %w: %v", domain.ErrInvalidRequest, err)
	}
	if math.IsNaN(additional) || math.IsInf(additional, 0) {
		return domain.CapacityCheck{}, fmt.Errorf("check capacity: %w: additional quantity must be finite", domain.ErrInvalidRequest)
	}

	c, err := l.getConstraint(ctx, vehicleID, materialID)
	if err != nil {
		return domain.CapacityCheck{}, fmt.Errorf("check capacity: %w", err)
	}
	inv, err := l.getInventory(ctx, vehicleID, materialID)
	if err != nil {
		return domain.CapacityCheck{}, fmt.Errorf("check capacity: %w", err)
	}

	check := domain.CapacityCheck{
		CanAdd:          true,
		CurrentQuantity: inv.CurrentQuantity,
	}
	if c != nil {
		check.HasConstraint = true
		check.MaxQuantity = c.MaxQuantity
		total := inv.CurrentQuantity + additional
		check.CanAdd = total <= c.MaxQuantity || withinTolerance(total, c.MaxQuantity, c.MaxQuantity)
	}

	return check, nil
}

// ApplyDelta adds delta (negative to unload) to the quantity aboard.
//
// The read-check-write runs under a per-key lock and the write is conditional
// on the quantity read, so a writer in another process cannot be overwritten;
// a lost write is re-read and retried a few times. Results within
// quantityTolerance of zero or the maximum are snapped to it. Rejections
// return a *domain.QuantityError and leave the stored quantity untouched.
// Under contention ErrCapacityExceeded may be transient; callers may retry.
func (l *CapacityLedger) ApplyDelta(
	ctx context.Context,
	vehicleID, materialID string,
	delta float64,
) (_ domain.InventoryRecord, err error) {
	defer obs.Time(ctx, l.logger, "capacity.ApplyDelta")(&err)

	if err := validateKey(vehicleID, materialID); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("apply delta: %w: %v", domain.ErrInvalidRequest, err)
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return domain.InventoryRecord{}, fmt.Errorf("apply delta: %w: delta must be finite", domain.ErrInvalidRequest)
	}

	unlock := l.locks.Lock(ledgerKey(vehicleID, materialID))
	defer unlock()

	var (
		c              *domain.CapacityConstraint
		previous, next float64
	)
	for attempt := 1; ; attempt++ {
		c, previous, next, err = l.applyOnce(ctx, vehicleID, materialID, delta)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.InventoryRecord{}, err
		}
		if attempt >= maxInventoryWriteAttempts {
			l.metrics.InventoryDeltas.WithLabelValues("store_error").Inc()
			return domain.InventoryRecord{}, fmt.Errorf("apply delta: %w: %w", domain.ErrStoreUnavailable, err)
		}
		l.logger.Warn("inventory write lost to concurrent update, retrying",
			zap.String("vehicle_id", vehicleID),
			zap.String("material_id", materialID),
			zap.Int("attempt", attempt),
		)
	}

	l.metrics.InventoryDeltas.WithLabelValues("applied").Inc()
	l.notifier.Publish(domain.TopicInventoryChanged, domain.InventoryChanged{
		VehicleID:        vehicleID,
		MaterialID:       materialID,
		PreviousQuantity: previous,
		NewQuantity:      next,
	})

	if c != nil {
		if alert, ok := c.Alert(next); ok {
			l.logger.Info("low stock",
				zap.String("vehicle_id", vehicleID),
				zap.String("material_id", materialID),
				zap.Float64("percent_remaining", alert.PercentRemaining),
			)
		}
	}

	return domain.InventoryRecord{
		VehicleID:       vehicleID,
		MaterialID:      materialID,
		CurrentQuantity: next,
	}, nil
}

// applyOnce reads, checks and conditionally writes one delta. A lost write
// comes back wrapping domain.ErrConflict.
func (l *CapacityLedger) applyOnce(
	ctx context.Context,
	vehicleID, materialID string,
	delta float64,
) (*domain.CapacityConstraint, float64, float64, error) {
	c, err := l.getConstraint(ctx, vehicleID, materialID)
	if err != nil {
		l.metrics.InventoryDeltas.WithLabelValues("store_error").Inc()
		return nil, 0, 0, fmt.Errorf("apply delta: %w", err)
	}
	inv, err := l.getInventory(ctx, vehicleID, materialID)
	if err != nil {
		l.metrics.InventoryDeltas.WithLabelValues("store_error").Inc()
		return nil, 0, 0, fmt.Errorf("apply delta: %w", err)
	}

	previous := inv.CurrentQuantity
	next := previous + delta

	// 0.1 + 0.2 must land on a maximum of 0.3, and unloading everything on 0.
	if withinTolerance(next, 0, math.Max(math.Abs(previous), math.Abs(delta))) {
		next = 0
	}
	if c != nil && withinTolerance(next, c.MaxQuantity, c.MaxQuantity) {
		next = c.MaxQuantity
	}

	qe := &domain.QuantityError{
		VehicleID:  vehicleID,
		MaterialID: materialID,
		Current:    previous,
		Delta:      delta,
		Attempted:  next,
	}
	if c != nil {
		qe.Max = c.MaxQuantity
	}

	switch {
	case next < 0:
		qe.Err = domain.ErrNegativeQuantity
	case c != nil && next > c.MaxQuantity:
		qe.Err = domain.ErrCapacityExceeded
	}
	if qe.Err != nil {
		l.metrics.InventoryDeltas.WithLabelValues("rejected").Inc()
		l.logger.Info("inventory delta rejected",
			zap.String("vehicle_id", vehicleID),
			zap.String("material_id", materialID),
			zap.Float64("current", previous),
			zap.Float64("delta", delta),
			zap.Error(qe.Err),
		)
		return nil, 0, 0, qe
	}

	err = callStore(ctx, l.storeTimeout, "apply delta", func(ctx context.Context) error {
		return l.store.SetInventory(ctx, vehicleID, materialID, previous, next)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			l.metrics.InventoryDeltas.WithLabelValues("store_error").Inc()
		}
		return nil, 0, 0, err
	}

	return c, previous, next, nil
}

// LowStockAlerts lists materials on the vehicle whose remaining headroom is
// below the threshold, ordered by material id.
func (l *CapacityLedger) LowStockAlerts(ctx context.Context, vehicleID string) (_ []domain.LowStockAlert, err error) {
	defer obs.Time(ctx, l.logger, "capacity.LowStockAlerts")(&err)

	if strings.TrimSpace(vehicleID) == "" {
		return nil, fmt.Errorf("low stock alerts: %w: vehicle id is required", domain.ErrInvalidRequest)
	}

	var constraints []domain.CapacityConstraint
	err = callStore(ctx, l.storeTimeout, "list constraints", func(ctx context.Context) error {
		var err error
		constraints, err = l.store.ListConstraints(ctx, vehicleID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("low stock alerts: %w", err)
	}

	alerts := make([]domain.LowStockAlert, 0)
	for _, c := range constraints {
		inv, err := l.getInventory(ctx, vehicleID, c.MaterialID)
		if err != nil {
			return nil, fmt.Errorf("low stock alerts: %w", err)
		}
		if alert, ok := c.Alert(inv.CurrentQuantity); ok {
			alerts = append(alerts, alert)
		}
	}

	slices.SortFunc(alerts, func(a, b domain.LowStockAlert) int {
		return strings.Compare(a.MaterialID, b.MaterialID)
	})

	return alerts, nil
}

func (l *CapacityLedger) getConstraint(ctx context.Context, vehicleID, materialID string) (*domain.CapacityConstraint, error) {
	var c *domain.CapacityConstraint
	err := callStore(ctx, l.storeTimeout, "get constraint", func(ctx context.Context) error {
		var err error
		c, err = l.store.GetConstraint(ctx, vehicleID, materialID)
		return err
	})
	return c, err
}

func (l *CapacityLedger) getInventory(ctx context.Context, vehicleID, materialID string) (domain.InventoryRecord, error) {
	var inv domain.InventoryRecord
	err := callStore(ctx, l.storeTimeout, "get inventory", func(ctx context.Context) error {
		var err error
		inv, err = l.store.GetInventory(ctx, vehicleID, materialID)
		return err
	})
	return inv, err
}

func validateKey(vehicleID, materialID string) error {
	if strings.TrimSpace(vehicleID) == "" {
		return errors.New("vehicle id is required")
	}
	if strings.TrimSpace(materialID) == "" {
		return errors.New("material id is required")
	}
	return nil
}
