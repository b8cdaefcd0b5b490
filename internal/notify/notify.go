// Package notify delivers operator notifications. Delivery is best effort:
// failures are logged locally and never surface to the engine.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier is the operator notification sink.
type Notifier interface {
	// Send delivers one message and reports whether delivery succeeded.
	Send(ctx context.Context, text string) bool
}

// messageSeparator visually splits messages in the operator channel.
var messageSeparator = strings.Repeat(".", 100)

const defaultSendTimeout = 10 * time.Second

// DiscordNotifier posts messages to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *logrus.Logger
	// mention is prepended to every message so the channel pings.
	mention string
}

var _ Notifier = (*DiscordNotifier)(nil)

// NewDiscordNotifier creates a webhook notifier.
func NewDiscordNotifier(webhookURL string, logger *logrus.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultSendTimeout},
		logger:     logger,
		mention:    "@everyone",
	}
}

// WithHTTPClient swaps the HTTP client, for tests.
func (d *DiscordNotifier) WithHTTPClient(client *http.Client) *DiscordNotifier {
	d.client = client
	return d
}

// Send posts one message with the separator above it. Discord acknowledges
// webhook posts with 204 No Content.
func (d *DiscordNotifier) Send(ctx context.Context, text string) bool {
	payload := map[string]string{
		"content": d.mention + "\n" + messageSeparator + "\n" + text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to encode notification")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		d.logger.WithError(err).Warn("Failed to build notification request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to send notification")
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		d.logger.Warnf("Notification rejected with status %d", resp.StatusCode)
		return false
	}
	return true
}

// NopNotifier drops every message; used when notifications are disabled.
type NopNotifier struct{}

var _ Notifier = (*NopNotifier)(nil)

// Send implements Notifier.
func (NopNotifier) Send(context.Context, string) bool { return true }
