package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/pkg/logger"
)

// PushGatewayNotifier delivers events to an external device-push endpoint
// for recipients with a registered device token. The engine does not wait on
// the gateway's own fan-out; a 2xx means accepted.
type PushGatewayNotifier struct {
	logger      logger.Logger
	baseURL     string
	bearerToken string
	client      *http.Client
}

// NewPushGatewayNotifier creates a new push gateway notifier
func NewPushGatewayNotifier(baseURL, bearerToken string, log logger.Logger) *PushGatewayNotifier {
	return &PushGatewayNotifier{
		logger:      log,
		baseURL:     baseURL,
		bearerToken: bearerToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the channel in logs and metrics
func (n *PushGatewayNotifier) Name() string {
	return "push_gateway"
}

type pushMessage struct {
	RecipientID string        `json:"recipientId"`
	Audience    string        `json:"audience"`
	Event       *entity.Event `json:"event"`
}

// Push sends the event to the gateway's notify endpoint
func (n *PushGatewayNotifier) Push(ctx context.Context, to entity.Recipient, event *entity.Event) error {
	msg := pushMessage{
		RecipientID: to.ID,
		Audience:    to.Kind.String(),
		Event:       event,
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/notify", n.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+n.bearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	n.logger.Debug("Push delivered to gateway",
		"recipient", to.ID,
		"audience", to.Kind.String(),
		"event", event.Type)

	return nil
}
