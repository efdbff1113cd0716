package events

import (
	"context"
	"fleet-ops-service/internal/ports"

	"golang.org/x/sync/errgroup"
)

// MultiSink fans one event out to several sinks concurrently.
// It fails if any sink fails; the others still receive the event.
type MultiSink struct {
	sinks []ports.NotificationSink
}

func NewMultiSink(sinks ...ports.NotificationSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, topic string, payload any) error {
	var g errgroup.Group
	for _, s := range m.sinks {
		g.Go(func() error {
			return s.Publish(ctx, topic, payload)
		})
	}
	return g.Wait()
}
