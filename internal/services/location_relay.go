package services

import (
	"context"
	"fleet-ops-service/internal/domain"
	"fmt"
	"strings"
	"time"
)

// LocationRelay republishes live GPS samples for downstream consumers.
// This core does not interpret the samples.
type LocationRelay struct {
	notifier Notifier
	now      func() time.Time
}

func NewLocationRelay(notifier Notifier) *LocationRelay {
	return &LocationRelay{notifier: notifier, now: time.Now}
}

// Report validates a sample and publishes it on mobile.location.updated.
// A zero timestamp is stamped with the current time.
func (r *LocationRelay) Report(ctx context.Context, driverID string, sample domain.LocationSample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return fmt.Errorf("report location: %w: driver id is required", domain.ErrInvalidRequest)
	}

	coords := domain.Coordinates{Lat: sample.Lat, Lng: sample.Lng}
	if err := coords.Validate(); err != nil {
		return fmt.Errorf("report location: %w: %v", domain.ErrInvalidRequest, err)
	}

	if sample.Timestamp.IsZero() {
		sample.Timestamp = r.now().UTC()
	}

	r.notifier.Publish(domain.TopicLocationUpdated, domain.LocationUpdated{
		DriverID: driverID,
		Location: sample,
	})

	return nil
}
