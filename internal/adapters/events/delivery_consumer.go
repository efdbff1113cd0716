package events

import (
	"context"
	"encoding/json"
	"fleet-ops-service/internal/domain"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaReader is the subset of kafka.Reader the consumer needs.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type DeliveryQueuedHandler func(ctx context.Context, ev domain.DeliveryQueued) error

// DeliveryQueuedConsumer reads fulfillment.delivery.queued and hands each
// decoded event to a handler. A failing handler is retried with backoff on
// the same message until it succeeds or the run ends; nothing further is
// fetched meanwhile, so a later commit can never move the offset past an
// unhandled event. Undecodable messages are committed and skipped.
type DeliveryQueuedConsumer struct {
	reader         KafkaReader
	logger         *zap.Logger
	handlerTimeout time.Duration
	retryBackoff   time.Duration
}

func NewDeliveryQueuedConsumer(brokers []string, topic, groupID string, logger *zap.Logger) *DeliveryQueuedConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewDeliveryQueuedConsumerWithReader(r, logger)
}

func NewDeliveryQueuedConsumerWithReader(r KafkaReader, logger *zap.Logger) *DeliveryQueuedConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryQueuedConsumer{
		reader:         r,
		logger:         logger,
		handlerTimeout: 10 * time.Second,
		retryBackoff:   time.Second,
	}
}

// Run blocks until ctx is canceled.
func (c *DeliveryQueuedConsumer) Run(ctx context.Context, handle DeliveryQueuedHandler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("fetch delivery event failed", zap.Error(err))
			if !sleepCtx(ctx, c.retryBackoff) {
				return nil
			}
			continue
		}

		ev, err := decodeDeliveryQueued(m.Value)
		if err != nil {
			c.logger.Warn("skip undecodable delivery event",
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
			c.commit(ctx, m)
			continue
		}

		if !c.handleWithRetry(ctx, handle, m, ev) {
			return nil
		}

		c.commit(ctx, m)
	}
}

// handleWithRetry reports false when ctx ended before the handler succeeded;
// the message is then left uncommitted for redelivery.
func (c *DeliveryQueuedConsumer) handleWithRetry(
	ctx context.Context,
	handle DeliveryQueuedHandler,
	m kafka.Message,
	ev domain.DeliveryQueued,
) bool {
	for attempt := 1; ; attempt++ {
		handleCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		err := handle(handleCtx, ev)
		cancel()
		if err == nil {
			return true
		}

		c.logger.Warn("delivery event handler failed",
			zap.Int64("offset", m.Offset),
			zap.String("delivery_id", ev.DeliveryID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !sleepCtx(ctx, c.retryBackoff) {
			return false
		}
	}
}

func (c *DeliveryQueuedConsumer) Close() error {
	return c.reader.Close()
}

func (c *DeliveryQueuedConsumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.Warn("commit delivery event failed",
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
	}
}

// decodeDeliveryQueued accepts both a bare payload and one wrapped in an Envelope.
func decodeDeliveryQueued(b []byte) (domain.DeliveryQueued, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err == nil && len(env.Payload) > 0 {
		b = env.Payload
	}

	var ev domain.DeliveryQueued
	if err := json.Unmarshal(b, &ev); err != nil {
		return domain.DeliveryQueued{}, fmt.Errorf("decode delivery queued: %w", err)
	}
	if ev.DeliveryID == "" {
		return domain.DeliveryQueued{}, fmt.Errorf("decode delivery queued: %w: delivery_id is required", domain.ErrInvalidRequest)
	}
	if err := ev.DeliveryCoordinates.Validate(); err != nil {
		return domain.DeliveryQueued{}, fmt.Errorf("decode delivery queued: %w: %v", domain.ErrInvalidRequest, err)
	}
	return ev, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
