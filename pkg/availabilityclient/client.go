/**
 * @description
 * This package provides a client for communicating with the availability
 * service. The booking engine asks it whether a professional can take a
 * requested slot before a booking or a scheduled plan firing is persisted.
 */
package availabilityclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the availability service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new availability service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CheckAvailabilityRequest defines the request payload for an availability check.
type CheckAvailabilityRequest struct {
	ProfessionalID string    `json:"professional_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

// CheckAvailabilityResponse defines the availability service's answer.
type CheckAvailabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// CheckAvailability asks the availability service whether the professional is
// free for the slot. When no base URL is configured the check is skipped and
// the slot is treated as available, so a missing collaborator never blocks
// booking creation in lower environments.
func (c *Client) CheckAvailability(ctx context.Context, professionalID string, start, end time.Time) (*CheckAvailabilityResponse, error) {
	if c.baseURL == "" {
		return &CheckAvailabilityResponse{Available: true}, nil
	}

	url := fmt.Sprintf("%s/internal/availability/check", c.baseURL)

	payload := CheckAvailabilityRequest{
		ProfessionalID: professionalID,
		Start:          start,
		End:            end,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to availability service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("availability service returned error status %d", resp.StatusCode)
	}

	var response CheckAvailabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
