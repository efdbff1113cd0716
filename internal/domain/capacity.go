package domain

// Alerts are raised when remaining headroom drops below this percentage.
const LowStockThresholdPercent = 20.0

// Upper bound on how much of a material a vehicle may carry.
// One active constraint exists per (VehicleID, MaterialID).
type CapacityConstraint struct {
	VehicleID   string  `json:"vehicle_id"`
	MaterialID  string  `json:"material_id"`
	MaxQuantity float64 `json:"max_quantity"`
	Unit        string  `json:"unit"`
}

// Quantity of a material currently aboard a vehicle.
type InventoryRecord struct {
	VehicleID       string  `json:"vehicle_id"`
	MaterialID      string  `json:"material_id"`
	CurrentQuantity float64 `json:"current_quantity"`
}

// Result of a capacity pre-check. MaxQuantity is zero when HasConstraint is false.
type CapacityCheck struct {
	CanAdd          bool    `json:"can_add"`
	CurrentQuantity float64 `json:"current_quantity"`
	MaxQuantity     float64 `json:"max_quantity"`
	HasConstraint   bool    `json:"has_constraint"`
}

// Derived warning; never stored.
type LowStockAlert struct {
	VehicleID        string  `json:"vehicle_id"`
	MaterialID       string  `json:"material_id"`
	PercentRemaining float64 `json:"percent_remaining"`
	CurrentQuantity  float64 `json:"current_quantity"`
	MaxQuantity      float64 `json:"max_quantity"`
	Unit             string  `json:"unit"`
}

// PercentRemaining returns the capacity headroom left for current as a
// percentage of MaxQuantity.
func (c CapacityConstraint) PercentRemaining(current float64) float64 {
	if c.MaxQuantity <= 0 {
		return 0
	}
	return (c.MaxQuantity - current) / c.MaxQuantity * 100
}

// Alert returns the low-stock alert for current, if any.
func (c CapacityConstraint) Alert(current float64) (LowStockAlert, bool) {
	pct := c.PercentRemaining(current)
	if pct >= LowStockThresholdPercent {
		return LowStockAlert{}, false
	}
	return LowStockAlert{
		VehicleID:        c.VehicleID,
		MaterialID:       c.MaterialID,
		PercentRemaining: pct,
		CurrentQuantity:  current,
		MaxQuantity:      c.MaxQuantity,
		Unit:             c.Unit,
	}, true
}
