package monitor

import (
	"context"
	"time"

	"grimm.is/opnwatch/internal/config"
	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/metrics"
	"grimm.is/opnwatch/internal/opnsense"
)

// API is what the service needs from one appliance.
type API interface {
	GatewayStatus(ctx context.Context) (*opnsense.GatewayStatus, error)
	Activity(ctx context.Context) (*opnsense.Activity, error)
	Temperatures(ctx context.Context) ([]opnsense.Temperature, error)
	Traffic(ctx context.Context) (map[string]opnsense.InterfaceTraffic, error)
	FindAliasUUID(ctx context.Context, name string) (string, error)
	SetAliasContent(ctx context.Context, uuid string, content []string) error
	ApplyAliases(ctx context.Context) error
}

// NewClient builds the API client for one configured instance. Every call
// is recorded in reg.
func NewClient(cfg *config.Config, inst config.Instance, reg *metrics.Registry, logger *logging.Logger) *opnsense.Client {
	if logger == nil {
		logger = logging.Default()
	}
	opts := []opnsense.Option{
		opnsense.WithName(inst.DisplayName()),
		opnsense.WithInsecureTLS(!inst.VerifyTLS),
		opnsense.WithLogger(logger.WithComponent("opnsense")),
	}
	if cfg.Intervals != nil && cfg.Intervals.RequestLimit > 0 {
		opts = append(opts, opnsense.WithTimeout(cfg.Intervals.RequestLimit))
	}
	if inst.AlternativeURL != "" {
		opts = append(opts, opnsense.WithAlternativeURL(inst.AlternativeURL))
	}
	if inst.CertFingerprint != "" {
		opts = append(opts, opnsense.WithFingerprint(inst.CertFingerprint))
	}
	if reg != nil {
		name := inst.Name
		opts = append(opts, opnsense.WithObserver(func(endpoint string, err error, elapsed time.Duration) {
			reg.RecordAPIRequest(name, endpoint, err, elapsed)
		}))
	}
	return opnsense.NewClient(inst.URL, inst.APIKey, inst.APISecret, opts...)
}

// NewClients builds a client per instance, keyed by instance name.
func NewClients(cfg *config.Config, reg *metrics.Registry, logger *logging.Logger) map[string]API {
	apis := make(map[string]API, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		apis[inst.Name] = NewClient(cfg, inst, reg, logger)
	}
	return apis
}
