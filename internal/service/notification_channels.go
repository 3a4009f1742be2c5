package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

// ChannelMessage is what a delivery channel receives.
type ChannelMessage struct {
	Channel    string                       `json:"channel"`
	Event      models.NotificationEventType `json:"event"`
	AppealID   string                       `json:"appealId"`
	Subject    string                       `json:"subject"`
	Body       string                       `json:"body"`
	Recipients []models.Recipient           `json:"recipients"`
	Urgent     bool                         `json:"urgent"`
	SentAt     time.Time                    `json:"sentAt"`
}

// NotificationChannel delivers messages over one medium.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, msg ChannelMessage) error
}

// WebhookChannel posts messages as JSON to a delivery gateway.
type WebhookChannel struct {
	name   string
	url    string
	client *http.Client
}

// NewWebhookChannel constructs a channel posting to url.
func NewWebhookChannel(name, url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookChannel{name: name, url: url, client: &http.Client{Timeout: timeout}}
}

// Name implements NotificationChannel.
func (c *WebhookChannel) Name() string { return c.name }

// Send implements NotificationChannel.
func (c *WebhookChannel) Send(ctx context.Context, msg ChannelMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s notification: %w", c.name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s gateway returned %d", c.name, resp.StatusCode)
	}
	return nil
}

// LogChannel writes messages to the log; used when no gateway is configured.
type LogChannel struct {
	name   string
	logger *zap.Logger
}

// NewLogChannel constructs a logging channel.
func NewLogChannel(name string, logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{name: name, logger: logger.Named("notify")}
}

// Name implements NotificationChannel.
func (c *LogChannel) Name() string { return c.name }

// Send implements NotificationChannel.
func (c *LogChannel) Send(_ context.Context, msg ChannelMessage) error {
	recipients := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		recipients = append(recipients, r.ID)
	}
	c.logger.Sugar().Infow("notification",
		"channel", c.name,
		"event", msg.Event,
		"appeal_id", msg.AppealID,
		"subject", msg.Subject,
		"recipients", recipients,
		"urgent", msg.Urgent,
	)
	return nil
}
