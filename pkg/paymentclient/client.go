/**
 * @description
 * This package provides a client for the external payment processor. It
 * encapsulates authenticated HTTP calls for the manual-capture flow the
 * booking engine depends on: create an intent (authorize now, capture later),
 * retrieve its current state, and capture an authorized amount.
 *
 * Capture is idempotent on the processor side by intent reference, so callers
 * treat a timeout as "unknown outcome, safe to re-query" rather than failed.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package paymentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Intent statuses reported by the processor.
const (
	IntentStatusRequiresCapture = "requires_capture"
	IntentStatusSucceeded       = "succeeded"
	IntentStatusCancelled       = "cancelled"
	IntentStatusFailed          = "failed"
)

const requestRetries = 2

// Client is a client for the payment processor API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new payment processor client with a bounded request
// timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateIntentRequest is the payload for creating a manual-capture intent.
type CreateIntentRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerRef   string            `json:"customer_ref"`
	ManualCapture bool              `json:"manual_capture"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CaptureRequest is the payload for capturing an authorized intent. A nil
// Amount captures the full authorized amount.
type CaptureRequest struct {
	Amount *int64 `json:"amount,omitempty"`
}

// Intent is the processor's view of a payment intent.
type Intent struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	AmountReceived int64  `json:"amount_received"`
	Currency       string `json:"currency"`
}

// ErrorResponse represents an error from the payment processor API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("payment api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown payment api error"
}

func firstErrorTitle(e ErrorResponse) string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Title
	}
	return ""
}

func firstErrorDetail(e ErrorResponse) string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Detail
	}
	return ""
}

// CreateIntent creates a manual-capture intent for the given amount.
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency, customerRef string, metadata map[string]string) (*Intent, error) {
	payload := CreateIntentRequest{
		Amount:        amount,
		Currency:      currency,
		CustomerRef:   customerRef,
		ManualCapture: true,
		Metadata:      metadata,
	}
	return c.doIntent(ctx, "POST", "/api/v1/intents", payload, "create")
}

// RetrieveIntent fetches the current state of an intent. Idempotent and safe
// to call after a timed-out create or capture.
func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	return c.doIntent(ctx, "GET", "/api/v1/intents/"+intentID, nil, "retrieve")
}

// CaptureIntent captures an authorized intent. A nil amount captures the full
// authorized amount.
func (c *Client) CaptureIntent(ctx context.Context, intentID string, amount *int64) (*Intent, error) {
	payload := CaptureRequest{Amount: amount}
	return c.doIntent(ctx, "POST", "/api/v1/intents/"+intentID+"/capture", payload, "capture")
}

// doIntent executes a processor request with a small fixed number of retries
// on transport failure. Non-2xx responses are never retried here; the caller
// decides based on the typed error.
func (c *Client) doIntent(ctx context.Context, method, path string, payload interface{}, op string) (*Intent, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= requestRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewBuffer(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s request: %w", op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.APIKey)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to execute %s request: %w", op, err)
			log.Printf("level=warn component=payment_client op=%s attempt=%d msg=\"request failed\" err=%v", op, attempt+1, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read %s response: %w", op, err)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var errResp ErrorResponse
			if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
				log.Printf("level=warn component=payment_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
				return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
			}
			log.Printf("level=warn component=payment_client op=%s status=%d title=%q detail=%q", op, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
			return nil, &errResp
		}

		var intent Intent
		if err := json.Unmarshal(bodyBytes, &intent); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
		return &intent, nil
	}
	return nil, lastErr
}
