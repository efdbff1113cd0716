package services

import (
	"context"
	"fleet-ops-service/internal/platform/metrics"
	"fleet-ops-service/internal/ports"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultBridgeQueueSize = 1024

// Notifier is the fire-and-forget publishing contract used by the services.
type Notifier interface {
	Publish(topic string, payload any)
}

type envelope struct {
	topic   string
	payload any
}

// NotificationBridge forwards state-change events to the event bus.
//
// Publish never blocks the caller: events are queued and delivered in order by
// a single background worker. Delivery is best-effort. Sink failures, a full
// queue or a closed bridge are logged and counted, never returned, because a
// lost notification must not undo a committed write.
type NotificationBridge struct {
	sink    ports.NotificationSink
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	done   chan struct{}
}

func NewNotificationBridge(
	sink ports.NotificationSink,
	logger *zap.Logger,
	m *metrics.Metrics,
	timeout time.Duration,
) *NotificationBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}

	b := &NotificationBridge{
		sink:    sink,
		logger:  logger,
		metrics: m,
		timeout: timeout,
		queue:   make(chan envelope, defaultBridgeQueueSize),
		done:    make(chan struct{}),
	}
	go b.run()

	return b
}

func (b *NotificationBridge) Publish(topic string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.drop(topic, "bridge closed")
		return
	}

	select {
	case b.queue <- envelope{topic: topic, payload: payload}:
	default:
		b.drop(topic, "queue full")
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (b *NotificationBridge) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	b.mu.Unlock()

	<-b.done
}

func (b *NotificationBridge) run() {
	defer close(b.done)

	for env := range b.queue {
		b.deliver(env)
	}
}

func (b *NotificationBridge) deliver(env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err := b.safePublish(ctx, env)
	if err != nil {
		b.metrics.Notifications.WithLabelValues(env.topic, "failed").Inc()
		b.logger.Warn("publish notification failed",
			zap.String("topic", env.topic),
			zap.Error(err),
		)
		return
	}

	b.metrics.Notifications.WithLabelValues(env.topic, "published").Inc()
}

// safePublish shields the worker from panicking sinks.
func (b *NotificationBridge) safePublish(ctx context.Context, env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return b.sink.Publish(ctx, env.topic, env.payload)
}

func (b *NotificationBridge) drop(topic, reason string) {
	b.metrics.Notifications.WithLabelValues(topic, "dropped").Inc()
	b.logger.Warn("notification dropped",
		zap.String("topic", topic),
		zap.String("reason", reason),
	)
}
