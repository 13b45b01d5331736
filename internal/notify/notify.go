// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package notify relays exceptions and periodic run summaries to an
// operator. Delivery failures are logged and never returned to the caller.
package notify

import (
	"context"
	"log/slog"
	"os"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

// bodyLimit caps message text, matching what operators read in a mail client.
const bodyLimit = 2500

// Notifier is the operator notification channel.
type Notifier interface {
	// Exception reports an unexpected error in module.
	Exception(ctx context.Context, module, message string, err error)
	// Update sends a periodic status message.
	Update(ctx context.Context, subject, body string)
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

// Exception logs the error at error level.
func (n LogNotifier) Exception(_ context.Context, module, message string, err error) {
	n.logger().Error(message, "module", module, "error", err)
}

// Update logs the subject and body at info level.
func (n LogNotifier) Update(_ context.Context, subject, body string) {
	n.logger().Info(subject, "body", body)
}

// New returns a Mailgun notifier when an API key is configured and a
// LogNotifier otherwise.
func New(cfg types.MailgunConfig, logger *slog.Logger) Notifier {
	if cfg.APIKey == "" {
		if logger != nil {
			logger.Info("not sending email, mailgun is not configured")
		}
		return LogNotifier{Logger: logger}
	}
	return NewMailgun(cfg, logger)
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown host"
	}
	return h
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
