package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sloreti/chime/internal/circuitbreaker"
)

// Protected wraps a Gateway with a circuit breaker. When the transport is
// down the breaker opens and deliveries fail fast; the dispatch loop treats
// a breaker rejection like any other delivery failure, so affected items go
// back through the normal retry backoff.
type Protected struct {
	gateway Gateway
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewProtected wraps gateway with breaker.
func NewProtected(gateway Gateway, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Protected {
	return &Protected{
		gateway: gateway,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *Protected) Send(ctx context.Context, userID string, payload json.RawMessage) (*Receipt, error) {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected delivery",
			zap.String("breaker", p.breaker.Name()),
			zap.String("user_id", userID),
			zap.String("state", p.breaker.State().String()),
		)
		return nil, fmt.Errorf("%w: %s transport unavailable", circuitbreaker.ErrOpen, p.breaker.Name())
	}

	receipt, err := p.gateway.Send(ctx, userID, payload)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}

	p.breaker.RecordSuccess()
	return receipt, nil
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *Protected) Breaker() *circuitbreaker.CircuitBreaker {
	return p.breaker
}
