package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Sender pushes user-facing notifications to an external service.
// Best-effort: failures are logged, never propagated to the caller.
type Sender interface {
	Notify(ctx context.Context, userID, title, body string, data map[string]any)
}

type HTTPSender struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger
}

func NewHTTPSender(url, apiKey string, timeout time.Duration, log *zap.Logger) *HTTPSender {
	return &HTTPSender{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (s *HTTPSender) Notify(ctx context.Context, userID, title, body string, data map[string]any) {
	if s.url == "" {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"user_id": userID,
		"title":   title,
		"body":    body,
		"data":    data,
	})
	if err != nil {
		s.log.Warn("notification marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		s.log.Warn("notification request failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("notification send failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.log.Warn("notification rejected",
			zap.String("user_id", userID), zap.Int("status", resp.StatusCode))
	}
}

// Noop discards notifications; used when no notification service is
// configured and in tests.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string, map[string]any) {}
