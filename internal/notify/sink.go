package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WebhookSink POSTs each notification as JSON to a fixed URL.
type WebhookSink struct {
	URL        string
	HTTPClient *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{URL: url, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

type webhookBody struct {
	UserID  uuid.UUID       `json:"user_id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

func (s *WebhookSink) Notify(ctx context.Context, userID uuid.UUID, kind string, payload json.RawMessage) error {
	body, err := json.Marshal(webhookBody{UserID: userID, Type: kind, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling notification webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes notifications to the log. Used when no webhook is configured.
type LogSink struct {
	Log *slog.Logger
}

func (s LogSink) Notify(ctx context.Context, userID uuid.UUID, kind string, payload json.RawMessage) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notification", "user_id", userID, "type", kind, "payload", string(payload))
	return nil
}
