package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"grimm.is/opnwatch/internal/audit"
	"grimm.is/opnwatch/internal/brand"
	"grimm.is/opnwatch/internal/clock"
	"grimm.is/opnwatch/internal/config"
	"grimm.is/opnwatch/internal/health"
	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/metrics"
	"grimm.is/opnwatch/internal/monitor"
	"grimm.is/opnwatch/internal/notification"
)

// RunMonitor runs the polling loop in the foreground until SIGINT or
// SIGTERM. The optional metrics listener shares its lifetime. SIGHUP
// reloads log_level from the config file.
func RunMonitor(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)
	logger.Info("starting", "version", brand.Version, "mode", cfg.Mode, "instances", len(cfg.Instances))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.Get()
	dispatcher, err := notification.FromConfig(cfg,
		&http.Client{Timeout: cfg.Intervals.RequestLimit},
		logger.WithComponent("notification"),
		notification.WithObserver(func(channel string, level notification.Level, err error) {
			reg.RecordNotification(channel, string(level), err)
		}),
	)
	if err != nil {
		return err
	}

	clk := &clock.RealClock{}
	opts := monitor.Options{
		Clock:   clk,
		Logger:  logger,
		Metrics: reg,
		Tracker: health.NewTracker(clk),
	}
	store, err := openJournal(cfg, clk, logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		opts.Journal = store
	}

	svc, err := monitor.New(cfg, monitor.NewClients(cfg, reg, logger), dispatcher, opts)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(ctx) })
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := reloadLogLevel(configFile, logger); err != nil {
					logger.Warn("reload failed, keeping current log level", "error", err)
				}
			}
		}
	})
	if cfg.MetricsListen != "" {
		srv := metrics.NewServer(cfg.MetricsListen, reg, logger.WithComponent("metrics"))
		srv.Handle("/healthz", svc.Tracker().Handler())
		srv.Handle("/livez", health.LivenessHandler())
		srv.Handle("/tasks", svc.Scheduler().Handler())
		g.Go(func() error { return srv.Run(ctx) })
	}
	return g.Wait()
}

// openJournal opens the event journal when an audit block is configured.
// It returns nil, nil otherwise.
func openJournal(cfg *config.Config, clk clock.Clock, logger *logging.Logger) (*audit.Store, error) {
	if cfg.Audit == nil {
		return nil, nil
	}
	store, err := audit.NewStore(cfg.Audit.Path, cfg.Audit.RetentionDays, clk)
	if err != nil {
		return nil, err
	}
	logger.Info("journal enabled", "path", cfg.Audit.Path, "retention_days", cfg.Audit.RetentionDays)
	return store, nil
}
