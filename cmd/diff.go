package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/pmezard/go-difflib/difflib"

	"grimm.is/opnwatch/internal/monitor"
	"grimm.is/opnwatch/internal/policy"
)

// ErrDrift is returned by RunDiff when at least one alias differs from the
// desired content.
var ErrDrift = errors.New("alias content differs from desired state")

// RunDiff compares the live alias content of every instance with the
// content the schedule wants at the given time.
func RunDiff(configFile, at string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	now, err := parseAt(at)
	if err != nil {
		return err
	}
	if cfg.Policy.Location != nil {
		now = now.In(cfg.Policy.Location)
	}
	state := policy.ScheduleFromConfig(cfg.Policy).Desired(now)
	rec := policy.NewReconciler(cfg.Policy.BlockedContent, cfg.Policy.AllowedContent, logger)
	desired := rec.Content(state)
	sort.Strings(desired)

	ctx := context.Background()
	drift := false
	var errs []error
	for _, inst := range cfg.Instances {
		if inst.AliasName == "" {
			continue
		}
		client := monitor.NewClient(cfg, inst, nil, logger)

		uuid, err := client.FindAliasUUID(ctx, inst.AliasName)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", inst.DisplayName(), err))
			continue
		}
		live, err := client.AliasContent(ctx, uuid)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", inst.DisplayName(), err))
			continue
		}

		if slices.Equal(live, desired) {
			Printer.Fprintf(Out, "No differences: alias %s already matches %s\n", inst.AliasName, state)
			continue
		}
		drift = true

		diff := difflib.UnifiedDiff{
			A:        lines(live),
			B:        lines(desired),
			FromFile: fmt.Sprintf("%s/%s (live, %s)", inst.Name, inst.AliasName, client.BaseURL()),
			ToFile:   fmt.Sprintf("%s/%s (%s)", inst.Name, inst.AliasName, state),
			Context:  3,
		}
		if err := difflib.WriteUnifiedDiff(Out, diff); err != nil {
			errs = append(errs, fmt.Errorf("%s: write diff: %w", inst.DisplayName(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	if drift {
		return ErrDrift
	}
	return nil
}

func lines(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s + "\n"
	}
	return out
}
