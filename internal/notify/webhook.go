package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/webchat-support-agent/internal/leads"
	"github.com/wolfman30/webchat-support-agent/pkg/logging"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSink posts a lead summary to a Discord-compatible webhook.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewWebhookSink creates a webhook sink. An empty url yields a sink that
// always reports failure.
func NewWebhookSink(url string, client *http.Client, logger *logging.Logger) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookSink{url: strings.TrimSpace(url), client: client, logger: logger}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// WebhookContent renders the message body posted for a record.
func WebhookContent(record leads.Record) string {
	lines := []string{
		"**New webchat lead**",
		fmt.Sprintf("**Name:** %s", record.Name),
		fmt.Sprintf("**Email:** %s", record.Email),
		fmt.Sprintf("**Phone:** %s", record.Phone),
		fmt.Sprintf("**Company:** %s", record.Company),
		fmt.Sprintf("**Message:** %s", record.Message),
		fmt.Sprintf("**Source:** %s", record.Source),
		fmt.Sprintf("**Created at:** %s", record.CreatedAtISO()),
	}
	return strings.Join(lines, "\n")
}

// Notify posts the record. Any non-2xx response counts as failure.
func (s *WebhookSink) Notify(ctx context.Context, record leads.Record) bool {
	if s.url == "" {
		s.logger.Warn("lead webhook not configured")
		return false
	}

	body, err := json.Marshal(webhookPayload{Content: WebhookContent(record)})
	if err != nil {
		s.logger.Error("failed to encode lead webhook payload", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("failed to build lead webhook request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("lead webhook request failed", "error", err, "lead_id", record.ID)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		s.logger.Warn("lead webhook rejected", "status", resp.StatusCode, "lead_id", record.ID)
		return false
	}
	return true
}
