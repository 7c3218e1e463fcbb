// Package gateway defines the delivery transport contract consumed by the
// dispatch loop, plus adapters for development, webhook and SNS delivery.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Receipt is the transport's acknowledgement of an accepted delivery.
type Receipt struct {
	MessageID string
}

// Gateway delivers a rendered payload to a user. Implementations own their
// timeouts: a Send must not block indefinitely, and a timeout surfaces as
// an ordinary error.
type Gateway interface {
	Send(ctx context.Context, userID string, payload json.RawMessage) (*Receipt, error)
}

// LogGateway logs deliveries instead of sending them, for development and
// tests.
type LogGateway struct {
	logger *zap.Logger
}

func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, userID string, payload json.RawMessage) (*Receipt, error) {
	id := uuid.NewString()
	g.logger.Info("delivering notification",
		zap.String("user_id", userID),
		zap.String("message_id", id),
		zap.ByteString("payload", payload),
	)
	return &Receipt{MessageID: id}, nil
}
