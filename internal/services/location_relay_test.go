package services

import (
	"context"
	"errors"
	"fleet-ops-service/internal/domain"
	"testing"
	"time"
)

func TestLocationRelayReport(t *testing.T) {
	notifier := &recordingNotifier{}
	r := NewLocationRelay(notifier)
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	err := r.Report(context.Background(), "driver-7", domain.LocationSample{Lat: -34.6, Lng: -58.4, IsOnline: true})
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	events := notifier.Events()
	if len(events) != 1 || events[0].topic != domain.TopicLocationUpdated {
		t.Fatalf("unexpected events: %+v", events)
	}
	ev, ok := events[0].payload.(domain.LocationUpdated)
	if !ok {
		t.Fatalf("payload type %T", events[0].payload)
	}
	if ev.DriverID != "driver-7" || !ev.Location.Timestamp.Equal(fixed) || !ev.Location.IsOnline {
		t.Fatalf("unexpected payload: %+v", ev)
	}
}

func TestLocationRelayRejectsBadSamples(t *testing.T) {
	notifier := &recordingNotifier{}
	r := NewLocationRelay(notifier)

	if err := r.Report(context.Background(), "", domain.LocationSample{}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("empty driver: expected ErrInvalidRequest, got %v", err)
	}
	if err := r.Report(context.Background(), "d1", domain.LocationSample{Lat: 95}); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("bad lat: expected ErrInvalidRequest, got %v", err)
	}
	if len(notifier.Events()) != 0 {
		t.Fatal("rejected samples must not publish")
	}
}
