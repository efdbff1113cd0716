package ports

import "context"

// Port: publish side of the event bus.
type NotificationSink interface {
	// Publish payload on topic. Implementations encode payload as JSON.
	Publish(ctx context.Context, topic string, payload any) error
}
