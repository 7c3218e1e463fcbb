// Package track emits delivery outcome events to an external sink. Sinks
// are fire-and-forget: a sink failure never affects item state.
package track

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome of a terminal dispatch attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "failed"
)

// Event describes one terminal dispatch attempt.
type Event struct {
	ItemID    uuid.UUID `json:"item_id"`
	UserID    string    `json:"user_id"`
	Outcome   Outcome   `json:"outcome"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives delivery events. Record must not block the dispatch loop
// for long and must swallow its own errors.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// LogSink writes events to the logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Record(ctx context.Context, event Event) {
	s.logger.Info("delivery tracked",
		zap.String("item_id", event.ItemID.String()),
		zap.String("user_id", event.UserID),
		zap.String("outcome", string(event.Outcome)),
		zap.String("message_id", event.MessageID),
		zap.String("error", event.Error),
	)
}
