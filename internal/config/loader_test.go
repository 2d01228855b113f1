package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHCL = `
mode = "control"

telegram {
  bot_token = env("OPNWATCH_TEST_TOKEN")
  chat_id   = "-1002751332940"
}

instance "fva" {
  url             = "https://guard-fva"
  url_alternative = "https://168.90.210.158"
  api_key         = "key"
  api_secret      = env_or("OPNWATCH_TEST_MISSING", "secret")
  alias_name      = "filtro_dns_ativo"
  friendly_name   = "Faz. Vô Amantino"
}

policy {
  blocked_content = ["lista_de_filtrados", "lista_de_teste"]
  allowed_content = ["lista_de_teste"]
  timezone        = "America/Sao_Paulo"
}

intervals {
  report = "1h"
  digest = "0s"
}
`

func TestLoad_Sample(t *testing.T) {
	t.Setenv("OPNWATCH_TEST_TOKEN", "bot-token")

	cfg, err := Load([]byte(sampleHCL), "opnwatch.hcl")
	require.NoError(t, err)

	assert.Equal(t, ModeControl, cfg.Mode)
	assert.Equal(t, OnErrorContinue, cfg.OnError)
	assert.Equal(t, "bot-token", cfg.Telegram.BotToken)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)

	require.Len(t, cfg.Instances, 1)
	inst := cfg.Instances[0]
	assert.Equal(t, "fva", inst.Name)
	assert.Equal(t, "secret", inst.APISecret)
	assert.Equal(t, "Faz. Vô Amantino", inst.DisplayName())

	assert.Equal(t, 11*time.Hour, cfg.Policy.LunchStartAt)
	assert.Equal(t, 13*time.Hour, cfg.Policy.LunchEndAt)
	assert.Equal(t, 12*time.Hour, cfg.Policy.SaturdayFreeAt)
	assert.Equal(t, "America/Sao_Paulo", cfg.Policy.Location.String())

	assert.Equal(t, float64(DefaultHighPingThresholdMs), cfg.Health.HighPingThreshold())
	assert.True(t, cfg.Health.ProbeEnabled())

	assert.Equal(t, DefaultTick, cfg.Intervals.TickEvery)
	assert.Equal(t, time.Hour, cfg.Intervals.ReportEvery)
	assert.Equal(t, time.Duration(0), cfg.Intervals.DigestEvery)
	assert.Equal(t, DefaultPolicyInterval, cfg.Intervals.PolicyEvery)
	assert.Equal(t, DefaultRequestTimeout, cfg.Intervals.RequestLimit)

	assert.Equal(t, "en", cfg.Report.Language)
	assert.NotEmpty(t, cfg.Report.FooterText)
}

func TestLoad_EnvMissing(t *testing.T) {
	os.Unsetenv("OPNWATCH_TEST_TOKEN")
	_, err := Load([]byte(sampleHCL), "opnwatch.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPNWATCH_TEST_TOKEN")
}

func TestLoad_FileFunction(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(secret, []byte("from-file\n"), 0600))

	src := `
mode = "monitor"
telegram {
  bot_token = file("` + secret + `")
  chat_id   = "1"
}
instance "a" {
  url        = "https://a"
  api_key    = "k"
  api_secret = "s"
}
`
	path := filepath.Join(dir, "opnwatch.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Telegram.BotToken)
	assert.Equal(t, ModeMonitor, cfg.Mode)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name: "no instances",
			src: `
mode = "monitor"
telegram {
  bot_token = "t"
  chat_id   = "c"
}`,
			field: "instance",
		},
		{
			name: "alias required in control mode",
			src: `
telegram {
  bot_token = "t"
  chat_id   = "c"
}
instance "a" {
  url        = "https://a"
  api_key    = "k"
  api_secret = "s"
}
policy {
  blocked_content = ["x"]
  allowed_content = ["y"]
}`,
			field: "instance.a.alias_name",
		},
		{
			name: "lunch window inverted",
			src: `
mode = "monitor"
telegram {
  bot_token = "t"
  chat_id   = "c"
}
instance "a" {
  url        = "https://a"
  api_key    = "k"
  api_secret = "s"
}
policy {
  lunch_start = "14:00"
  lunch_end   = "13:00"
}`,
			field: "policy.lunch_end",
		},
		{
			name: "bad duration",
			src: `
mode = "monitor"
telegram {
  bot_token = "t"
  chat_id   = "c"
}
instance "a" {
  url        = "https://a"
  api_key    = "k"
  api_secret = "s"
}
intervals {
  tick = "soon"
}`,
			field: "intervals.tick",
		},
		{
			name: "unknown mode",
			src: `
mode = "observe"
telegram {
  bot_token = "t"
  chat_id   = "c"
}
instance "a" {
  url        = "https://a"
  api_key    = "k"
  api_secret = "s"
}`,
			field: "mode",
		},
		{
			name: "no notification channel",
			src: `
mode = "monitor"
instance "a" {
  url        = "https://a"
  api_key    = "k"
  api_secret = "s"
}`,
			field: "telegram",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.src), "test.hcl")
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %T: %v", err, err)

			found := false
			for _, ve := range verrs {
				if ve.Field == tt.field || len(ve.Field) > len(tt.field) && ve.Field[:len(tt.field)] == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected error on %s, got %v", tt.field, verrs)
		})
	}
}

func TestLoad_ParseError(t *testing.T) {
	_, err := Load([]byte(`instance "a" {`), "broken.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HCL parse error")
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"11:00", 11 * time.Hour, false},
		{"00:00", 0, false},
		{"23:59:30", 23*time.Hour + 59*time.Minute + 30*time.Second, false},
		{"24:00", 0, true},
		{"12", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoad_AuditAndRateLimit(t *testing.T) {
	src := `
telegram {
  bot_token = "t"
  chat_id   = "1"
}
mode = "monitor"
instance "a" {
  url        = "https://a.example"
  api_key    = "k"
  api_secret = "s"
}
audit {
  path = "/var/lib/opnwatch/audit.db"
}
`
	cfg, err := Load([]byte(src), "opnwatch.hcl")
	require.NoError(t, err)
	require.NotNil(t, cfg.Audit)
	assert.Equal(t, DefaultAuditRetentionDays, cfg.Audit.RetentionDays)
	assert.Equal(t, DefaultNotifyPerMinute, cfg.NotifyPerMinute)

	cfg, err = Load([]byte(src+"\nnotify_per_minute = -1\n"), "opnwatch.hcl")
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.NotifyPerMinute)
}

func TestLoad_HealthThreshold(t *testing.T) {
	base := `
telegram {
  bot_token = "t"
  chat_id   = "1"
}
mode = "monitor"
instance "a" {
  url        = "https://a.example"
  api_key    = "k"
  api_secret = "s"
}
`
	tests := []struct {
		name   string
		health string
		want   float64
	}{
		{"default", "", DefaultHighPingThresholdMs},
		{"explicit zero", "health {\n  high_ping_threshold_ms = 0\n}\n", 0},
		{"custom", "health {\n  high_ping_threshold_ms = 120.5\n}\n", 120.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load([]byte(base+tt.health), "opnwatch.hcl")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Health.HighPingThreshold())
		})
	}

	_, err := Load([]byte(base+"health {\n  high_ping_threshold_ms = -1\n}\n"), "opnwatch.hcl")
	assert.Error(t, err)
}
