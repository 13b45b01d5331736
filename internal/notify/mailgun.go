// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/yt-observatory/internal/httputil"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

// Mailgun sends notifications through the Mailgun messages API.
type Mailgun struct {
	BaseURL string
	APIKey  string
	From    string
	To      string

	Client *http.Client
	Logger *slog.Logger
}

// NewMailgun returns a sender for cfg.
func NewMailgun(cfg types.MailgunConfig, logger *slog.Logger) *Mailgun {
	return &Mailgun{
		BaseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
		APIKey:  cfg.APIKey,
		From:    cfg.From,
		To:      cfg.To,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Logger:  logger,
	}
}

func (m *Mailgun) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// Exception logs the error and mails it to the operator.
func (m *Mailgun) Exception(ctx context.Context, module, message string, err error) {
	m.logger().Error(message, "module", module, "error", err)

	detail := message
	if err != nil {
		detail = fmt.Sprintf("%s: %v", message, err)
	}
	subject := fmt.Sprintf("[%s] Unexpected Error: %s", module, truncate(message, 200))
	text := fmt.Sprintf("Unexpected Error, please check your instance %s.\n%s", hostname(), truncate(detail, bodyLimit))
	if sendErr := m.Send(ctx, subject, text); sendErr != nil {
		m.logger().Error("unable to send error mail", "error", sendErr)
	}
}

// Update mails a status message.
func (m *Mailgun) Update(ctx context.Context, subject, body string) {
	text := fmt.Sprintf("%s\nFrom %s.", truncate(body, bodyLimit), hostname())
	if err := m.Send(ctx, subject, text); err != nil {
		m.logger().Error("unable to send update mail", "error", err)
	}
}

// Send posts one message. A non-2xx response is an error.
func (m *Mailgun) Send(ctx context.Context, subject, text string) error {
	form := url.Values{
		"from":    {m.From},
		"to":      {m.To},
		"subject": {subject},
		"text":    {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth("api", m.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httputil.DoWithRetry(ctx, m.Client, req, 0)
	if err != nil {
		return fmt.Errorf("posting to mailgun: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailgun HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	m.logger().Info("sent notification email", "to", m.To, "subject", subject)
	return nil
}
