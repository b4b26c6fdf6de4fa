// Package comms is the I/O boundary to the support-communication
// platform. It exposes the two read-only query shapes the discovery
// engine needs and normalizes responses into domain candidates.
package comms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/portside-labs/portside/internal/domain"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the communication platform.
// Search failures are values, not panics: the orchestrator decides how
// to degrade.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("communication api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("communication api: status %d", e.StatusCode)
}

// IsRateLimited reports whether the platform throttled us.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Config holds connection settings for the communication platform.
type Config struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration
}

// Client queries the communication platform over HTTP.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a Client with a bounded request timeout.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type participantPayload struct {
	Handle string `json:"handle"`
}

type conversationPayload struct {
	ID            string               `json:"id"`
	Subject       *string              `json:"subject"`
	LastMessageAt *time.Time           `json:"last_message_at"`
	Participants  []participantPayload `json:"participants"`
}

type searchResponse struct {
	Results []conversationPayload `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SearchByContact returns conversations involving the given contact
// handle (customer email).
func (c *Client) SearchByContact(ctx context.Context, handle string) ([]domain.Candidate, error) {
	return c.search(ctx, url.Values{"contact": []string{handle}})
}

// SearchByQuery returns conversations matching a free-text query
// (order name or number).
func (c *Client) SearchByQuery(ctx context.Context, query string) ([]domain.Candidate, error) {
	return c.search(ctx, url.Values{"q": []string{query}})
}

func (c *Client) search(ctx context.Context, params url.Values) ([]domain.Candidate, error) {
	endpoint := fmt.Sprintf("%s/conversations/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope errorResponse
		if json.Unmarshal(body, &envelope) == nil {
			apiErr.Message = envelope.Error
		}
		return nil, apiErr
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(parsed.Results))
	for _, conv := range parsed.Results {
		candidates = append(candidates, normalizeConversation(conv))
	}
	return candidates, nil
}

func normalizeConversation(conv conversationPayload) domain.Candidate {
	candidate := domain.Candidate{
		ConversationID: conv.ID,
		LastMessageAt:  conv.LastMessageAt,
	}
	if conv.Subject != nil {
		candidate.Subject = *conv.Subject
	}
	for _, p := range conv.Participants {
		if p.Handle != "" {
			candidate.Participants = append(candidate.Participants, p.Handle)
		}
	}
	return candidate
}
