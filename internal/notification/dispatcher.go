package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"grimm.is/opnwatch/internal/clock"
	"grimm.is/opnwatch/internal/config"
	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/ratelimit"
)

// ErrRateLimited is recorded when a channel exceeded its per-minute cap.
var ErrRateLimited = errors.New("notification rate limit exceeded")

// Observer is called after every delivery attempt. err is nil on success.
type Observer func(channel string, level Level, err error)

// Dispatcher manages notification channels and dispatching
type Dispatcher struct {
	channels []Channel
	logger   *logging.Logger
	clock    clock.Clock
	observer Observer

	rateLimit  int
	rateWindow time.Duration
	limiter    *ratelimit.Limiter
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver registers a delivery callback (metrics).
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithClock sets the clock used to stamp notifications.
func WithClock(c clock.Clock) DispatcherOption {
	return func(d *Dispatcher) { d.clock = c }
}

// WithRateLimit caps every channel at limit notifications per window.
// Critical and urgent notifications are never dropped.
func WithRateLimit(limit int, window time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.rateLimit = limit
		d.rateWindow = window
	}
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels []Channel, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = logging.Default().WithComponent("notification")
	}
	d := &Dispatcher{
		channels: channels,
		logger:   logger,
		clock:    &clock.RealClock{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rateLimit > 0 {
		d.limiter = ratelimit.NewLimiter(d.rateLimit, d.rateWindow, d.clock)
	}
	return d
}

// FromConfig builds the channels declared in cfg: the telegram block plus
// every enabled channel block.
func FromConfig(cfg *config.Config, httpClient *http.Client, logger *logging.Logger, opts ...DispatcherOption) (*Dispatcher, error) {
	var channels []Channel
	if cfg.Telegram != nil {
		channels = append(channels, NewTelegram(cfg.Telegram, httpClient))
	}
	for _, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		switch strings.ToLower(ch.Type) {
		case "webhook", "slack", "discord":
			channels = append(channels, NewWebhook(ch, httpClient))
		case "ntfy":
			channels = append(channels, NewNtfy(ch, httpClient))
		default:
			return nil, fmt.Errorf("unknown channel type: %s", ch.Type)
		}
	}
	if cfg.NotifyPerMinute > 0 {
		opts = append([]DispatcherOption{WithRateLimit(cfg.NotifyPerMinute, time.Minute)}, opts...)
	}
	return NewDispatcher(channels, logger, opts...), nil
}

// Channels returns the configured channels.
func (d *Dispatcher) Channels() []Channel {
	return d.channels
}

// Send dispatches a notification to all relevant channels, one after the
// other. Every failure is logged; the joined errors are returned.
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	if blank(n.Message) {
		return ErrEmptyMessage
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = d.clock.Now()
	}

	var errs []error
	for _, ch := range d.channels {
		// check level filtering
		if !shouldSend(n.Level, ch.MinLevel()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.limiter != nil && !exempt(n) && !d.limiter.Allow(ch.Name()) {
			d.logger.Warn("notification dropped", "channel", ch.Name(), "title", n.Title, "error", ErrRateLimited)
			if d.observer != nil {
				d.observer(ch.Name(), n.Level, ErrRateLimited)
			}
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), ErrRateLimited))
			continue
		}

		start := time.Now()
		err := ch.Send(ctx, n)
		if d.observer != nil {
			d.observer(ch.Name(), n.Level, err)
		}
		if err != nil {
			d.logger.Error("failed to send notification",
				"channel", ch.Name(),
				"type", ch.Type(),
				"level", n.Level,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		d.logger.Debug("notification sent",
			"channel", ch.Name(),
			"level", n.Level,
			"elapsed", time.Since(start))
	}
	return errors.Join(errs...)
}

func exempt(n Notification) bool {
	return n.Urgent || n.Level == LevelCritical
}
