package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"metersquare/internal/dto"
)

// GatewayRejectedError is a 4xx answer other than 408 or 429. The gateway
// refused the event itself, so resending it cannot help.
type GatewayRejectedError struct{ Status int }

func (e *GatewayRejectedError) Error() string {
	return fmt.Sprintf("gateway: rejected event with %d", e.Status)
}

// GatewayClient forwards workflow notifications to the external notification
// gateway (push, chat and the like). Delivery is one POST per event.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether NOTIFY_GATEWAY_URL is configured.
func (c *GatewayClient) Enabled() bool { return c != nil && c.baseURL != "" }

// Publish POSTs n to <baseURL>/events. Any non-2xx status is an error;
// see GatewayRejectedError for the ones not worth retrying.
func (c *GatewayClient) Publish(ctx context.Context, n dto.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("gateway: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests:
		return &GatewayRejectedError{Status: code}
	default:
		return fmt.Errorf("gateway: returned %d", code)
	}
}
