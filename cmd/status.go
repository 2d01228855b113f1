package cmd

import (
	"fmt"
	"strings"
	"time"

	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/policy"
)

// RunStatus prints the desired policy state at the given time (now when at
// is empty) and the alias content each instance should carry.
func RunStatus(configFile, at string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	now, err := parseAt(at)
	if err != nil {
		return err
	}
	if cfg.Policy.Location != nil {
		now = now.In(cfg.Policy.Location)
	}

	state := policy.ScheduleFromConfig(cfg.Policy).Desired(now)
	Printer.Fprintf(Out, "Desired policy at %s: %s\n", now.Format(time.RFC3339), stateStyle(state.String()).Render(state.String()))

	rec := policy.NewReconciler(cfg.Policy.BlockedContent, cfg.Policy.AllowedContent, logging.Discard())
	content := strings.Join(rec.Content(state), ", ")

	rows := make([][]string, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		if inst.AliasName == "" {
			rows = append(rows, []string{inst.DisplayName(), "-", "(monitor only)"})
			continue
		}
		rows = append(rows, []string{inst.DisplayName(), inst.AliasName, content})
	}
	fmt.Fprintln(Out, renderTable([]string{"INSTANCE", "ALIAS", "CONTENT"}, rows))
	return nil
}
