// Package output delivers assembled payloads: export files and Slack notifications.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tracepayload/internal/config"
	"tracepayload/internal/models"
)

// SlackSender posts export notifications to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
	client     *http.Client
}

// NewSlackSender initializes a SlackSender with a configured webhook URL and HTTP client.
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSlackSenderFromConfig constructs a SlackSender using the provided configuration block.
func NewSlackSenderFromConfig(cfg config.SlackConfig) *SlackSender {
	return NewSlackSender(cfg.WebhookURL)
}

// SlackBlock represents a Slack message block
type SlackBlock struct {
	Type   string       `json:"type"`
	Text   *SlackText   `json:"text,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

// SlackText represents text in Slack
type SlackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackField represents a field in Slack
type SlackField struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SlackMessage represents a Slack message
type SlackMessage struct {
	Blocks []SlackBlock `json:"blocks"`
}

// NotifyExport announces a completed export.
func (s *SlackSender) NotifyExport(ctx context.Context, rec models.ExportRecord) error {
	if s.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	body, err := json.Marshal(s.buildExportMessage(rec))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status: %d", resp.StatusCode)
	}

	return nil
}

// buildExportMessage constructs a Slack block kit payload from an export record.
func (s *SlackSender) buildExportMessage(rec models.ExportRecord) SlackMessage {
	emoji := "📦"
	if rec.Diagnostics > 0 {
		emoji = "⚠️"
	}

	blocks := []SlackBlock{
		{
			Type: "header",
			Text: &SlackText{
				Type: "plain_text",
				Text: fmt.Sprintf("%s Payload exported: %s", emoji, rec.TransactionID),
			},
		},
		{
			Type: "section",
			Fields: []SlackField{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Transaction date:*\n%s", rec.ReferenceDate)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Transaction pairs:*\n%d", rec.TransactionPairs)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Discount pairs:*\n%d", rec.DiscountPairs)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Diagnostics:*\n%d", rec.Diagnostics)},
			},
		},
	}

	if rec.FilePath != "" {
		blocks = append(blocks, SlackBlock{
			Type: "section",
			Text: &SlackText{Type: "mrkdwn", Text: fmt.Sprintf("File: `%s`", rec.FilePath)},
		})
	}

	blocks = append(blocks, SlackBlock{Type: "divider"}, SlackBlock{
		Type: "context",
		Fields: []SlackField{
			{Type: "mrkdwn", Text: fmt.Sprintf("Exported at: %s | ID: %s", rec.CreatedAt.Format(time.RFC3339), rec.ID)},
		},
	})

	return SlackMessage{Blocks: blocks}
}
