package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"grimm.is/opnwatch/internal/config"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram sends messages to one chat through the Bot API.
type Telegram struct {
	apiURL     string
	token      string
	chatID     string
	level      Level
	httpClient *http.Client
}

// NewTelegram creates a Telegram channel. A nil httpClient uses a client
// with a 15s timeout.
func NewTelegram(cfg *config.TelegramConfig, httpClient *http.Client) *Telegram {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &Telegram{
		apiURL:     apiURL,
		token:      cfg.BotToken,
		chatID:     cfg.ChatID,
		level:      Level(cfg.Level),
		httpClient: httpClient,
	}
}

func (t *Telegram) Name() string    { return "telegram" }
func (t *Telegram) Type() string    { return "telegram" }
func (t *Telegram) MinLevel() Level { return t.level }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Send posts the message with HTML parse mode and link previews disabled.
func (t *Telegram) Send(ctx context.Context, n Notification) error {
	if blank(n.Message) {
		return ErrEmptyMessage
	}

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     n.Message,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of logs.
		return fmt.Errorf("telegram request failed: %w", redact(err, t.token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: failed to read response: %w", err)
	}

	var tr telegramResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("telegram failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("telegram: invalid response: %w", err)
	}
	if !tr.OK {
		return fmt.Errorf("telegram rejected message (code %d): %s", tr.ErrorCode, tr.Description)
	}
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, secret string) error {
	if secret == "" || !strings.Contains(err.Error(), secret) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), secret, "<redacted>"), err: err}
}
