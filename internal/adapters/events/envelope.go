package events

import (
	"encoding/json"
	"fleet-ops-service/internal/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire format shared by every broker sink.
type Envelope struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func encode(topic string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: marshal payload: %w", topic, err)
	}

	b, err := json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s: marshal envelope: %w", topic, err)
	}

	return b, nil
}

// partitionKey keeps events about one entity on one partition so consumers see
// them in order.
func partitionKey(payload any) string {
	switch p := payload.(type) {
	case domain.RouteStatusChanged:
		return p.RouteID
	case domain.InventoryChanged:
		return p.VehicleID + "|" + p.MaterialID
	case domain.LocationUpdated:
		return p.DriverID
	case domain.DeliveryQueued:
		return p.DeliveryID
	default:
		return ""
	}
}
