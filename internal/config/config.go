// Package config loads the opnwatch HCL configuration.
//
// The file is decoded once at startup into an immutable *Config that is
// passed explicitly to every component; nothing reads configuration from
// package globals.
package config

import (
	"time"
)

// CurrentSchemaVersion defines the current schema version of the configuration.
const CurrentSchemaVersion = "1.0"

// Mode selects which timers the orchestration loop runs.
type Mode string

const (
	// ModeMonitor runs gateway health checks and the all-clear digest only.
	ModeMonitor Mode = "monitor"
	// ModeControl additionally drives the alias policy and periodic reports.
	ModeControl Mode = "control"
)

// ErrorPolicy decides what the loop does after an unexpected failure.
type ErrorPolicy string

const (
	OnErrorContinue ErrorPolicy = "continue"
	OnErrorExit     ErrorPolicy = "exit"
)

// Config is the top-level structure of opnwatch.hcl.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	ModeName      string `hcl:"mode,optional" json:"mode" validate:"omitempty,oneof=monitor control"`
	OnErrorName   string `hcl:"on_error,optional" json:"on_error" validate:"omitempty,oneof=continue exit"`
	LogLevel      string `hcl:"log_level,optional" json:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogJSON       bool   `hcl:"log_json,optional" json:"log_json"`
	MetricsListen string `hcl:"metrics_listen,optional" json:"metrics_listen,omitempty"`
	// Per channel; negative disables the cap.
	NotifyPerMinute int `hcl:"notify_per_minute,optional" json:"notify_per_minute"`

	Telegram  *TelegramConfig  `hcl:"telegram,block" json:"telegram,omitempty"`
	Channels  []ChannelConfig  `hcl:"channel,block" json:"channels,omitempty" validate:"dive"`
	Instances []Instance       `hcl:"instance,block" json:"instances" validate:"min=1,dive"`
	Policy    *PolicyConfig    `hcl:"policy,block" json:"policy,omitempty"`
	Health    *HealthConfig    `hcl:"health,block" json:"health,omitempty"`
	Intervals *IntervalsConfig `hcl:"intervals,block" json:"intervals,omitempty"`
	Report    *ReportConfig    `hcl:"report,block" json:"report,omitempty"`
	Audit     *AuditConfig     `hcl:"audit,block" json:"audit,omitempty"`

	// Resolved by ApplyDefaults.
	Mode    Mode        `json:"-"`
	OnError ErrorPolicy `json:"-"`
}

// TelegramConfig holds the bot credentials used for chat notifications.
type TelegramConfig struct {
	BotToken string `hcl:"bot_token" json:"bot_token" validate:"required"`
	ChatID   string `hcl:"chat_id" json:"chat_id" validate:"required"`
	APIURL   string `hcl:"api_url,optional" json:"api_url,omitempty" validate:"omitempty,url"`
	Level    string `hcl:"level,optional" json:"level,omitempty" validate:"omitempty,oneof=info warning critical"`
}

// ChannelConfig defines an additional notification destination.
type ChannelConfig struct {
	Name    string `hcl:"name,label" json:"name" validate:"required"`
	Type    string `hcl:"type" json:"type" validate:"required,oneof=webhook ntfy slack discord"`
	Level   string `hcl:"level,optional" json:"level" validate:"omitempty,oneof=info warning critical"`
	Enabled bool   `hcl:"enabled,optional" json:"enabled"`

	WebhookURL string            `hcl:"webhook_url,optional" json:"webhook_url,omitempty" validate:"omitempty,url"`
	Server     string            `hcl:"server,optional" json:"server,omitempty" validate:"omitempty,url"`
	Topic      string            `hcl:"topic,optional" json:"topic,omitempty"`
	Token      string            `hcl:"token,optional" json:"token,omitempty"`
	Headers    map[string]string `hcl:"headers,optional" json:"headers,omitempty"`
}

// Instance is one OPNsense appliance. Name is the stable identity used as
// the key of the reconciliation memory; it never changes at runtime.
type Instance struct {
	Name            string `hcl:"name,label" json:"name" validate:"required"`
	URL             string `hcl:"url" json:"url" validate:"required,url"`
	AlternativeURL  string `hcl:"url_alternative,optional" json:"url_alternative,omitempty" validate:"omitempty,url"`
	APIKey          string `hcl:"api_key" json:"api_key" validate:"required"`
	APISecret       string `hcl:"api_secret" json:"api_secret" validate:"required"`
	AliasName       string `hcl:"alias_name,optional" json:"alias_name,omitempty"`
	FriendlyName    string `hcl:"friendly_name,optional" json:"friendly_name,omitempty"`
	VerifyTLS       bool   `hcl:"verify_tls,optional" json:"verify_tls"`
	CertFingerprint string `hcl:"cert_fingerprint,optional" json:"cert_fingerprint,omitempty" validate:"omitempty,len=64,hexadecimal"`
}

// DisplayName returns the friendly name, falling back to the block label.
func (i Instance) DisplayName() string {
	if i.FriendlyName != "" {
		return i.FriendlyName
	}
	return i.Name
}

// PolicyConfig describes the time-of-day access policy.
type PolicyConfig struct {
	LunchStart     string   `hcl:"lunch_start,optional" json:"lunch_start"`
	LunchEnd       string   `hcl:"lunch_end,optional" json:"lunch_end"`
	SaturdayFree   string   `hcl:"saturday_free,optional" json:"saturday_free"`
	Timezone       string   `hcl:"timezone,optional" json:"timezone,omitempty"`
	BlockedContent []string `hcl:"blocked_content,optional" json:"blocked_content"`
	AllowedContent []string `hcl:"allowed_content,optional" json:"allowed_content"`

	// Offsets since midnight, resolved by ApplyDefaults.
	LunchStartAt   time.Duration  `json:"-"`
	LunchEndAt     time.Duration  `json:"-"`
	SaturdayFreeAt time.Duration  `json:"-"`
	Location       *time.Location `json:"-"`
}

// HealthConfig holds gateway health thresholds.
type HealthConfig struct {
	HighPingThresholdMs *float64 `hcl:"high_ping_threshold_ms,optional" json:"high_ping_threshold_ms,omitempty" validate:"omitempty,gte=0"`
	ProbeOnFailure      *bool    `hcl:"probe_on_failure,optional" json:"probe_on_failure,omitempty"`
}

// HighPingThreshold is the latency above which a gateway is flagged. An
// explicit 0 flags any measured latency.
func (h *HealthConfig) HighPingThreshold() float64 {
	if h.HighPingThresholdMs == nil {
		return DefaultHighPingThresholdMs
	}
	return *h.HighPingThresholdMs
}

// ProbeEnabled reports whether an ICMP probe runs when the API is unreachable.
func (h *HealthConfig) ProbeEnabled() bool {
	return h.ProbeOnFailure == nil || *h.ProbeOnFailure
}

// IntervalsConfig holds the timer periods as Go duration strings.
type IntervalsConfig struct {
	Tick           string `hcl:"tick,optional" json:"tick"`
	Health         string `hcl:"health,optional" json:"health"`
	Digest         string `hcl:"digest,optional" json:"digest"`
	Policy         string `hcl:"policy,optional" json:"policy"`
	Report         string `hcl:"report,optional" json:"report"`
	ReportSpacing  string `hcl:"report_spacing,optional" json:"report_spacing"`
	RequestTimeout string `hcl:"request_timeout,optional" json:"request_timeout"`

	// Parsed values, resolved by ApplyDefaults.
	TickEvery    time.Duration `json:"-"`
	HealthEvery  time.Duration `json:"-"`
	DigestEvery  time.Duration `json:"-"`
	PolicyEvery  time.Duration `json:"-"`
	ReportEvery  time.Duration `json:"-"`
	SpacingWait  time.Duration `json:"-"`
	RequestLimit time.Duration `json:"-"`
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	Language   string `hcl:"language,optional" json:"language" validate:"omitempty,oneof=en pt-BR"`
	FooterText string `hcl:"footer_text,optional" json:"footer_text"`
	FooterURL  string `hcl:"footer_url,optional" json:"footer_url" validate:"omitempty,url"`
}

// AuditConfig enables the SQLite event journal.
type AuditConfig struct {
	Path          string `hcl:"path" json:"path" validate:"required"`
	RetentionDays int    `hcl:"retention_days,optional" json:"retention_days" validate:"gte=0"`
}
