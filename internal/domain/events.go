package domain

import "time"

// Event bus topics.
const (
	TopicRouteStatusChanged = "mobile.route.status_changed"
	TopicInventoryChanged   = "mobile.inventory.changed"
	TopicLocationUpdated    = "mobile.location.updated"
	TopicDeliveryQueued     = "fulfillment.delivery.queued"
)

type RouteStatusChanged struct {
	RouteID   string      `json:"route_id"`
	OldStatus RouteStatus `json:"old_status"`
	NewStatus RouteStatus `json:"new_status"`
}

type InventoryChanged struct {
	VehicleID        string  `json:"vehicle_id"`
	MaterialID       string  `json:"material_id"`
	PreviousQuantity float64 `json:"previous_quantity"`
	NewQuantity      float64 `json:"new_quantity"`
}

// A single GPS sample reported by the live-location feed.
type LocationSample struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	IsOnline  bool      `json:"is_online"`
}

type LocationUpdated struct {
	DriverID string         `json:"driver_id"`
	Location LocationSample `json:"location"`
}

// Consumed from fulfillment as an optional re-planning trigger.
type DeliveryQueued struct {
	DeliveryID          string      `json:"delivery_id"`
	OrderID             string      `json:"order_id"`
	DeliveryCoordinates Coordinates `json:"delivery_coordinates"`
}
