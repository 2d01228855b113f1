package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"grimm.is/opnwatch/internal/audit"
)

// ErrNoJournal is returned when the config has no audit block.
var ErrNoJournal = errors.New("audit journal not configured (add an audit block)")

// RunHistory prints journal events newer than since, optionally limited to
// one instance.
func RunHistory(configFile string, since time.Duration, instance string, limit int) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	if cfg.Audit == nil {
		return ErrNoJournal
	}

	store, err := audit.NewStore(cfg.Audit.Path, cfg.Audit.RetentionDays, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	f := audit.Filter{Instance: instance, Limit: limit}
	if since > 0 {
		f.Since = time.Now().Add(-since)
	}
	ctx := context.Background()
	events, err := store.Query(ctx, f)
	if err != nil {
		return err
	}

	loc := cfg.Policy.Location
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		ts := e.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		inst := e.Instance
		if i, ok := cfg.Instance(e.Instance); ok {
			inst = i.DisplayName()
		}
		rows = append(rows, []string{ts.Format("2006-01-02 15:04:05"), inst, e.Action, e.Outcome, formatDetails(e.Details)})
	}
	fmt.Fprintln(Out, renderTable([]string{"TIME", "INSTANCE", "ACTION", "OUTCOME", "DETAILS"}, rows))

	total, err := store.Count(ctx)
	if err != nil {
		return err
	}
	Printer.Fprintf(Out, "%d of %d event(s) in the journal\n", len(events), total)
	return nil
}

func formatDetails(d map[string]any) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, d[k]))
	}
	return strings.Join(parts, " ")
}
