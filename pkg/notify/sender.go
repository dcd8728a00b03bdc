package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rentalops/backoffice-api-go/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Event is one notification handed to the workflow-automation webhook.
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// Notifier delivers events to the external automation service.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// SenderConfig holds configuration for the webhook sender.
type SenderConfig struct {
	URL           string
	Token         string
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	RetryDelays   []time.Duration
	Timeout       time.Duration
}

// DefaultSenderConfig returns the default sender configuration.
func DefaultSenderConfig(url, token string) SenderConfig {
	return SenderConfig{
		URL:           url,
		Token:         token,
		RatePerSecond: 5,
		Burst:         10,
		MaxRetries:    3,
		RetryDelays:   []time.Duration{1 * time.Second, 5 * time.Second, 30 * time.Second},
		Timeout:       10 * time.Second,
	}
}

// WebhookSender POSTs JSON events with rate limiting and bounded retries.
type WebhookSender struct {
	config  SenderConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewWebhookSender creates a sender for the configured webhook endpoint.
func NewWebhookSender(config SenderConfig, logger zerolog.Logger) *WebhookSender {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &WebhookSender{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		logger:  logger,
	}
}

// Send delivers one event, retrying on failure. A 429 response honors
// Retry-After when present; other failures use the configured delays.
func (s *WebhookSender) Send(ctx context.Context, event Event) error {
	if s.config.URL == "" {
		s.logger.Debug().Str("event", event.Type).Msg("webhook URL not configured, dropping event")
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		wait, err := s.post(ctx, body)
		if err == nil {
			metrics.IncWebhookSent(event.Type, "ok")
			return nil
		}
		lastErr = err

		if wait == 0 && attempt < len(s.config.RetryDelays) {
			wait = s.config.RetryDelays[attempt]
		}
		s.logger.Warn().Err(err).Str("event", event.Type).Int("attempt", attempt+1).
			Dur("wait", wait).Msg("webhook delivery failed")

		if attempt == s.config.MaxRetries {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			metrics.IncWebhookSent(event.Type, "cancelled")
			return ctx.Err()
		}
	}

	metrics.IncWebhookSent(event.Type, "failed")
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

// post performs one delivery attempt. It returns a non-zero wait when the
// server asked to back off via Retry-After.
func (s *WebhookSender) post(ctx context.Context, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return 0, nil
	}

	var wait time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil {
			wait = time.Duration(secs) * time.Second
		}
	}
	return wait, fmt.Errorf("webhook returned %d", resp.StatusCode)
}
