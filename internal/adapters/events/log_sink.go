package events

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to the structured log. Used when no broker is configured.
type LogSink struct {
	Logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{Logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Logger.Info("event",
		zap.String("topic", topic),
		zap.Any("payload", payload),
	)
	return nil
}
