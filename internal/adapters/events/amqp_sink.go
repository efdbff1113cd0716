package events

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPChannel is the subset of *amqp.Channel the sink needs.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes events to a topic exchange using the event topic as routing key.
type AMQPSink struct {
	conn     *amqp.Connection
	channel  AMQPChannel
	exchange string
}

// NewAMQPSink dials the broker and declares a durable topic exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %q: %w", exchange, err)
	}

	return &AMQPSink{conn: conn, channel: ch, exchange: exchange}, nil
}

func NewAMQPSinkWithChannel(ch AMQPChannel, exchange string) *AMQPSink {
	return &AMQPSink{channel: ch, exchange: exchange}
}

func (s *AMQPSink) Publish(ctx context.Context, topic string, payload any) error {
	body, err := encode(topic, payload)
	if err != nil {
		return err
	}

	err = s.channel.PublishWithContext(
		ctx,
		s.exchange,
		topic,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", topic, err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if err := s.channel.Close(); err != nil {
		return err
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
