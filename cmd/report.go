package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"grimm.is/opnwatch/internal/metrics"
	"grimm.is/opnwatch/internal/monitor"
	"grimm.is/opnwatch/internal/notification"
)

// RunReport builds the periodic report of every instance once. It is printed
// to Out, or delivered through the configured channels when send is set.
func RunReport(configFile string, send bool) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	var sender notification.Sender
	if send {
		d, err := notification.FromConfig(cfg, &http.Client{Timeout: cfg.Intervals.RequestLimit}, logger)
		if err != nil {
			return err
		}
		sender = d
	}

	svc, err := monitor.New(cfg, monitor.NewClients(cfg, reg, logger), sender, monitor.Options{
		Logger:  logger,
		Metrics: reg,
	})
	if err != nil {
		return err
	}

	if send {
		return svc.SendReports(ctx)
	}
	for _, inst := range cfg.Instances {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(Out, svc.RenderReport(ctx, inst.Name))
	}
	return nil
}
