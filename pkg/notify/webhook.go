package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL         string            `yaml:"url" json:"url" env:"DIGEST_WEBHOOK_URL"`
	Headers     map[string]string `yaml:"headers" json:"headers"`
	IncludeHTML bool              `yaml:"include_html" json:"include_html"`
}

// WebhookNotifier posts each digest as JSON to a URL (Slack-style incoming
// hooks, chat bridges, lab dashboards).
type WebhookNotifier struct {
	config WebhookConfig
	http   *http.Client
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// webhookPayload is the body posted for every digest. Report is the local
// path of the saved page, so receivers on the same host can link it.
type webhookPayload struct {
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Report string  `json:"report,omitempty"`
	HTML   string  `json:"html,omitempty"`
	Digest *Digest `json:"digest,omitempty"`
}

// Send posts the subject, the plain-text digest and its counts.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	if w.config.URL == "" {
		return fmt.Errorf("webhook URL is not configured")
	}
	p := webhookPayload{
		Title:  msg.Title,
		Text:   msg.Body,
		Report: msg.URL,
		Digest: msg.Digest,
	}
	if w.config.IncludeHTML {
		p.HTML = msg.HTMLBody
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
