package cmd

import (
	"fmt"
	"strings"

	"grimm.is/opnwatch/internal/brand"
	"grimm.is/opnwatch/internal/logging"
	"grimm.is/opnwatch/internal/notification"
)

// RunCheck validates the configuration file syntax and semantics and prints
// the configured instances.
func RunCheck(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	dispatcher, err := notification.FromConfig(cfg, nil, logging.Discard())
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	Printer.Fprintf(Out, "Configuration OK: %d instance(s), mode %s\n", len(cfg.Instances), cfg.Mode)

	rows := make([][]string, 0, len(cfg.Instances))
	for _, inst := range cfg.Instances {
		tlsMode := "insecure"
		switch {
		case inst.CertFingerprint != "":
			tlsMode = "pinned"
		case inst.VerifyTLS:
			tlsMode = "verify"
		}
		alias := inst.AliasName
		if alias == "" {
			alias = "-"
		}
		urls := inst.URL
		if inst.AlternativeURL != "" {
			urls += " | " + inst.AlternativeURL
		}
		rows = append(rows, []string{inst.Name, inst.DisplayName(), urls, alias, tlsMode})
	}
	fmt.Fprintln(Out, renderTable([]string{"INSTANCE", "NAME", "URL", "ALIAS", "TLS"}, rows))

	var channels []string
	for _, ch := range dispatcher.Channels() {
		label := ch.Name()
		if ch.Type() != ch.Name() {
			label += " (" + ch.Type() + ")"
		}
		channels = append(channels, label)
	}
	fmt.Fprintf(Out, "%s %s\n", styleTitle.Render("Notifications:"), strings.Join(channels, ", "))
	if cfg.NotifyPerMinute > 0 {
		fmt.Fprintf(Out, "%s %d per channel per minute (alerts exempt)\n", styleTitle.Render("Rate limit:"), cfg.NotifyPerMinute)
	}

	iv := cfg.Intervals
	fmt.Fprintf(Out, "%s tick %s, health %s, digest %s, policy %s, report %s\n",
		styleTitle.Render("Intervals:"), iv.TickEvery, iv.HealthEvery, iv.DigestEvery, iv.PolicyEvery, iv.ReportEvery)
	if cfg.MetricsListen != "" {
		fmt.Fprintf(Out, "%s http://%s/metrics\n", styleTitle.Render("Metrics:"), cfg.MetricsListen)
	}
	fmt.Fprintf(Out, "%s %s\n", styleTitle.Render("Brand:"), brand.UserAgent(brand.Version))
	return nil
}
