package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink publishes events on a Redis pub/sub channel named after the topic.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(addr string) *RedisSink {
	return &RedisSink{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func NewRedisSinkWithClient(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Publish(ctx context.Context, topic string, payload any) error {
	body, err := encode(topic, payload)
	if err != nil {
		return err
	}

	if err := s.client.Publish(ctx, topic, body).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Ping verifies the connection at startup.
func (s *RedisSink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
