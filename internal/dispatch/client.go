package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yegors/skywatch/pkg/logger"
)

// CallRequest carries what the callee needs to hear.
type CallRequest struct {
	IncidentID    string
	IncidentKey   string
	Callsign      string
	EmergencyType string
	UrgencyLevel  string
	Reason        string
}

// CallResult is the provider's response to a placed call.
type CallResult struct {
	CallID  string
	Status  string
	Contact string
}

// Caller places outbound voice calls.
type Caller interface {
	PlaceCall(ctx context.Context, req CallRequest, contact Contact) (*CallResult, error)
}

// Client places calls through an HTTP voice-call provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new voice-call client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("dispatch-client"),
	}
}

type callPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type callResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PlaceCall implements Caller, retrying transient failures with
// exponential backoff.
func (c *Client) PlaceCall(ctx context.Context, req CallRequest, contact Contact) (*CallResult, error) {
	body, err := json.Marshal(callPayload{
		Phone:   contact.Phone,
		Message: briefingMessage(req),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal call payload: %w", err)
	}

	maxRetries := 3
	retryDelay := 1 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create call request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err == nil && resp.StatusCode == http.StatusOK {
			defer resp.Body.Close()
			var parsed callResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return nil, fmt.Errorf("failed to decode call response: %w", err)
			}
			c.logger.Info("Emergency call placed",
				logger.String("call_id", parsed.ID),
				logger.String("contact", contact.Name),
				logger.String("callsign", req.Callsign))
			return &CallResult{
				CallID:  parsed.ID,
				Status:  parsed.Status,
				Contact: contact.Name,
			}, nil
		}

		if err != nil {
			lastErr = err
		} else {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(payload))
		}

		if attempt == maxRetries-1 {
			break
		}

		c.logger.Warn("Retrying emergency call",
			logger.String("contact", contact.Name),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", maxRetries),
			logger.Error(lastErr))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
			retryDelay *= 2
		}
	}

	return nil, fmt.Errorf("failed to place call after %d attempts: %w", maxRetries, lastErr)
}

// briefingMessage renders the spoken briefing for the callee.
func briefingMessage(req CallRequest) string {
	return fmt.Sprintf(
		"This is an automated air traffic emergency notification. Aircraft %s has declared a %s emergency, urgency level %s. %s",
		req.Callsign, req.EmergencyType, req.UrgencyLevel, req.Reason)
}

var _ Caller = (*Client)(nil)
