// Package notification delivers chat and webhook notifications.
//
// Telegram is the primary channel. Additional webhook, Slack, Discord and
// ntfy channels can be configured; the Dispatcher fans a notification out to
// every enabled channel whose minimum level it meets. Sends are attempted
// once and failures are returned to the caller for logging.
package notification

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strings"
	"time"
)

// Level is the severity of a notification.
type Level string

// Level constants
const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

var levelRank = map[Level]int{
	LevelInfo:     1,
	LevelWarning:  2,
	LevelCritical: 3,
}

// ErrEmptyMessage is returned when asked to send a blank message.
var ErrEmptyMessage = errors.New("empty notification message")

// Notification represents a notification event. Message is Telegram HTML.
type Notification struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	Instance  string    `json:"instance,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	// Urgent notifications skip the per-channel rate limit, as critical
	// ones do.
	Urgent bool `json:"urgent,omitempty"`
}

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Channel is a single configured destination.
type Channel interface {
	Sender
	Name() string
	Type() string
	MinLevel() Level
}

// shouldSend checks if a message level meets the channel's minimum level
func shouldSend(msgLevel, chanLevel Level) bool {
	// If channel has no level, accept all
	if chanLevel == "" {
		return true
	}

	m := levelRank[Level(strings.ToLower(string(msgLevel)))]
	c := levelRank[Level(strings.ToLower(string(chanLevel)))]

	return m >= c
}

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	spacesRe = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips the HTML markup of a Telegram message for channels
// that do not render it.
func PlainText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = spacesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
