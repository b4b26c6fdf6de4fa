package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/portside-labs/portside/internal/domain"
)

const webhookTimeout = 5 * time.Second

// WebhookSink POSTs each event as JSON to a configured endpoint.
// Failures are logged and dropped; delivery is best effort.
type WebhookSink struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

func NewWebhookSink(url string, logger zerolog.Logger) *WebhookSink {
	return &WebhookSink{
		url: url,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

func (s *WebhookSink) Deliver(ctx context.Context, event domain.ThreadEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode webhook payload")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", s.url).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn().
			Int("status", resp.StatusCode).
			Str("url", s.url).
			Str("event_type", string(event.Type)).
			Msg("webhook endpoint returned non-success status")
	}
}
