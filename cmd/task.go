package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"grimm.is/opnwatch/internal/clock"
	"grimm.is/opnwatch/internal/metrics"
	"grimm.is/opnwatch/internal/monitor"
	"grimm.is/opnwatch/internal/notification"
)

// RunTask runs a single loop task now, with the same notifications and
// journal as the daemon, and prints its status. The policy memory starts
// empty, so "policy" always pushes the scheduled content.
func RunTask(configFile, id string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher, err := notification.FromConfig(cfg, &http.Client{Timeout: cfg.Intervals.RequestLimit}, logger.WithComponent("notification"))
	if err != nil {
		return err
	}

	clk := &clock.RealClock{}
	reg := metrics.NewRegistry()
	opts := monitor.Options{Clock: clk, Logger: logger, Metrics: reg}
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

	status, runErr := svc.RunTask(ctx, id)
	if status.ID == "" {
		return runErr
	}

	result := styleGood.Render("ok")
	if status.LastError != "" {
		result = styleBad.Render(status.LastError)
	}
	fmt.Fprintln(Out, renderTable(
		[]string{"TASK", "RUN ID", "DURATION", "RESULT"},
		[][]string{{status.ID, status.LastRunID, status.LastDuration.String(), result}},
	))
	return runErr
}
