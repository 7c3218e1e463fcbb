package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultWebhookTimeout bounds a single delivery call.
const DefaultWebhookTimeout = 30 * time.Second

// WebhookGateway POSTs deliveries to a fixed HTTP endpoint. A non-2xx
// response or a timeout is a delivery failure.
type WebhookGateway struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// webhookRequest is the body sent to the endpoint.
type webhookRequest struct {
	DeliveryID string          `json:"delivery_id"`
	UserID     string          `json:"user_id"`
	Payload    json.RawMessage `json:"payload"`
	SentAt     int64           `json:"sent_at"`
}

// NewWebhookGateway creates a gateway delivering to endpoint. A timeout of
// zero means DefaultWebhookTimeout.
func NewWebhookGateway(endpoint string, timeout time.Duration, logger *zap.Logger) *WebhookGateway {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	return &WebhookGateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (g *WebhookGateway) Send(ctx context.Context, userID string, payload json.RawMessage) (*Receipt, error) {
	deliveryID := uuid.NewString()
	body, err := json.Marshal(webhookRequest{
		DeliveryID: deliveryID,
		UserID:     userID,
		Payload:    payload,
		SentAt:     time.Now().Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	g.logger.Debug("webhook delivery accepted",
		zap.String("user_id", userID),
		zap.String("delivery_id", deliveryID),
		zap.Int("status", resp.StatusCode),
	)

	return &Receipt{MessageID: deliveryID}, nil
}
