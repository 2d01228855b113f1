package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"grimm.is/opnwatch/internal/brand"
)

// Default cadence: a one minute policy check, a 45 minute report, a two
// minute health cycle and an all-clear digest every 30 minutes, polled from
// a 60 second tick.
const (
	DefaultTick           = 60 * time.Second
	DefaultHealthInterval = 2 * time.Minute
	DefaultDigestInterval = 30 * time.Minute
	DefaultPolicyInterval = time.Minute
	DefaultReportInterval = 45 * time.Minute
	DefaultReportSpacing  = 5 * time.Second
	DefaultRequestTimeout = 25 * time.Second

	DefaultLunchStart   = "11:00"
	DefaultLunchEnd     = "13:00"
	DefaultSaturdayFree = "12:00"

	DefaultHighPingThresholdMs = 50
	DefaultLanguage            = "en"
	DefaultNotifyPerMinute     = 20
	DefaultAuditRetentionDays  = 90
)

// ApplyDefaults fills optional blocks and resolves the typed fields
// (durations, times of day, enums). It is idempotent.
func (c *Config) ApplyDefaults() error {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}

	c.Mode = ModeControl
	if c.ModeName != "" {
		c.Mode = Mode(c.ModeName)
	}
	c.OnError = OnErrorContinue
	if c.OnErrorName != "" {
		c.OnError = ErrorPolicy(c.OnErrorName)
	}

	if c.Policy == nil {
		c.Policy = &PolicyConfig{}
	}
	if c.Health == nil {
		c.Health = &HealthConfig{}
	}
	if c.Intervals == nil {
		c.Intervals = &IntervalsConfig{}
	}
	if c.Report == nil {
		c.Report = &ReportConfig{}
	}

	var errs ValidationErrors

	p := c.Policy
	if p.LunchStart == "" {
		p.LunchStart = DefaultLunchStart
	}
	if p.LunchEnd == "" {
		p.LunchEnd = DefaultLunchEnd
	}
	if p.SaturdayFree == "" {
		p.SaturdayFree = DefaultSaturdayFree
	}
	var err error
	if p.LunchStartAt, err = ParseClock(p.LunchStart); err != nil {
		errs = append(errs, ValidationError{Field: "policy.lunch_start", Message: err.Error()})
	}
	if p.LunchEndAt, err = ParseClock(p.LunchEnd); err != nil {
		errs = append(errs, ValidationError{Field: "policy.lunch_end", Message: err.Error()})
	}
	if p.SaturdayFreeAt, err = ParseClock(p.SaturdayFree); err != nil {
		errs = append(errs, ValidationError{Field: "policy.saturday_free", Message: err.Error()})
	}
	p.Location = time.Local
	if p.Timezone != "" {
		loc, err := time.LoadLocation(p.Timezone)
		if err != nil {
			errs = append(errs, ValidationError{Field: "policy.timezone", Message: err.Error()})
		} else {
			p.Location = loc
		}
	}

	iv := c.Intervals
	durations := []struct {
		field    string
		raw      string
		def      time.Duration
		target   *time.Duration
		zeroOkay bool
	}{
		{"intervals.tick", iv.Tick, DefaultTick, &iv.TickEvery, false},
		{"intervals.health", iv.Health, DefaultHealthInterval, &iv.HealthEvery, false},
		{"intervals.digest", iv.Digest, DefaultDigestInterval, &iv.DigestEvery, true},
		{"intervals.policy", iv.Policy, DefaultPolicyInterval, &iv.PolicyEvery, false},
		{"intervals.report", iv.Report, DefaultReportInterval, &iv.ReportEvery, false},
		{"intervals.report_spacing", iv.ReportSpacing, DefaultReportSpacing, &iv.SpacingWait, true},
		{"intervals.request_timeout", iv.RequestTimeout, DefaultRequestTimeout, &iv.RequestLimit, false},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.target = d.def
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: d.field, Message: err.Error()})
			continue
		}
		if parsed < 0 || (parsed == 0 && !d.zeroOkay) {
			errs = append(errs, ValidationError{Field: d.field, Message: "must be greater than zero"})
			continue
		}
		*d.target = parsed
	}

	r := c.Report
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.FooterText == "" {
		r.FooterText = brand.Tagline
	}
	if r.FooterURL == "" {
		r.FooterURL = brand.Website
	}

	if c.NotifyPerMinute == 0 {
		c.NotifyPerMinute = DefaultNotifyPerMinute
	}
	if c.Audit != nil && c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = DefaultAuditRetentionDays
	}

	if c.Telegram != nil && c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset since midnight.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	limits := []int{24, 60, 60}
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n >= limits[i] {
			return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}
