package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"grimm.is/opnwatch/internal/config"
)

// Webhook posts JSON to a generic, Slack or Discord incoming webhook.
type Webhook struct {
	name       string
	kind       string
	url        string
	level      Level
	headers    map[string]string
	httpClient *http.Client
}

// NewWebhook creates a webhook channel from its configuration block.
func NewWebhook(ch config.ChannelConfig, httpClient *http.Client) *Webhook {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Webhook{
		name:       ch.Name,
		kind:       strings.ToLower(ch.Type),
		url:        ch.WebhookURL,
		level:      Level(ch.Level),
		headers:    ch.Headers,
		httpClient: httpClient,
	}
}

func (w *Webhook) Name() string    { return w.name }
func (w *Webhook) Type() string    { return w.kind }
func (w *Webhook) MinLevel() Level { return w.level }

func (w *Webhook) payload(n Notification) map[string]any {
	text := PlainText(n.Message)
	switch w.kind {
	case "slack":
		return map[string]any{
			"text": fmt.Sprintf("*%s*\n%s\n_Level: %s_", n.Title, text, n.Level),
		}
	case "discord":
		return map[string]any{
			"content": fmt.Sprintf("**%s**\n%s", n.Title, text),
		}
	default:
		return map[string]any{
			"title":     n.Title,
			"message":   text,
			"html":      n.Message,
			"level":     n.Level,
			"instance":  n.Instance,
			"timestamp": n.Timestamp,
		}
	}
}

// Send posts the notification.
func (w *Webhook) Send(ctx context.Context, n Notification) error {
	if w.url == "" {
		return fmt.Errorf("missing webhook_url")
	}
	if blank(n.Message) {
		return ErrEmptyMessage
	}

	body, err := json.Marshal(w.payload(n))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook failed with status: %d", resp.StatusCode)
	}

	return nil
}

// Ntfy publishes to an ntfy topic.
type Ntfy struct {
	name       string
	server     string
	topic      string
	token      string
	level      Level
	headers    map[string]string
	httpClient *http.Client
}

// NewNtfy creates an ntfy channel. The server defaults to https://ntfy.sh.
func NewNtfy(ch config.ChannelConfig, httpClient *http.Client) *Ntfy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	server := ch.Server
	if server == "" {
		server = "https://ntfy.sh"
	}
	return &Ntfy{
		name:       ch.Name,
		server:     strings.TrimRight(server, "/"),
		topic:      ch.Topic,
		token:      ch.Token,
		level:      Level(ch.Level),
		headers:    ch.Headers,
		httpClient: httpClient,
	}
}

func (c *Ntfy) Name() string    { return c.name }
func (c *Ntfy) Type() string    { return "ntfy" }
func (c *Ntfy) MinLevel() Level { return c.level }

// Send publishes the plain-text message with a priority derived from the level.
func (c *Ntfy) Send(ctx context.Context, n Notification) error {
	if c.topic == "" {
		return fmt.Errorf("missing topic for ntfy")
	}
	if blank(n.Message) {
		return ErrEmptyMessage
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/"+c.topic, strings.NewReader(PlainText(n.Message)))
	if err != nil {
		return err
	}

	if n.Title != "" {
		req.Header.Set("Title", n.Title)
	}

	// Map levels to tags/priorities
	switch n.Level {
	case LevelCritical:
		req.Header.Set("Priority", "high")
		req.Header.Set("Tags", "rotating_light")
	case LevelWarning:
		req.Header.Set("Priority", "default")
		req.Header.Set("Tags", "warning")
	case LevelInfo:
		req.Header.Set("Priority", "low")
		req.Header.Set("Tags", "information_source")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Add custom headers
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ntfy failed with status: %d", resp.StatusCode)
	}

	return nil
}
