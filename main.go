package main

import (
	"errors"
	"flag"
	"os"
	"time"

	"grimm.is/opnwatch/cmd"
	"grimm.is/opnwatch/internal/brand"
	"grimm.is/opnwatch/internal/i18n"
)

var printer = i18n.NewCLIPrinter()

// configFlag registers -config and its -c short form on fs.
func configFlag(fs *flag.FlagSet) *string {
	configFile := fs.String("config", brand.DefaultConfigPath(), "Configuration file")
	fs.StringVar(configFile, "c", brand.DefaultConfigPath(), "Configuration file (short)")
	return configFile
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runFlags := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := configFlag(runFlags)
		runFlags.Parse(os.Args[2:])

		if err := cmd.RunMonitor(*configFile); err != nil {
			printer.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		configFile := configFlag(checkFlags)
		checkFlags.Parse(os.Args[2:])

		if len(checkFlags.Args()) > 0 {
			*configFile = checkFlags.Arg(0)
		}
		if err := cmd.RunCheck(*configFile); err != nil {
			printer.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "status":
		statusFlags := flag.NewFlagSet("status", flag.ExitOnError)
		configFile := configFlag(statusFlags)
		at := statusFlags.String("at", "", "Evaluate at this time (RFC3339) instead of now")
		statusFlags.Parse(os.Args[2:])

		if err := cmd.RunStatus(*configFile, *at); err != nil {
			printer.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "report":
		reportFlags := flag.NewFlagSet("report", flag.ExitOnError)
		configFile := configFlag(reportFlags)
		send := reportFlags.Bool("send", false, "Deliver through the configured channels instead of printing")
		reportFlags.Parse(os.Args[2:])

		if err := cmd.RunReport(*configFile, *send); err != nil {
			printer.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "diff":
		diffFlags := flag.NewFlagSet("diff", flag.ExitOnError)
		configFile := configFlag(diffFlags)
		at := diffFlags.String("at", "", "Compare against the state desired at this time (RFC3339)")
		diffFlags.Parse(os.Args[2:])

		if err := cmd.RunDiff(*configFile, *at); err != nil {
			// Drift exits 2 so scripts can tell it apart from failures.
			if errors.Is(err, cmd.ErrDrift) {
				os.Exit(2)
			}
			printer.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "history":
		historyFlags := flag.NewFlagSet("history", flag.ExitOnError)
		configFile := configFlag(historyFlags)
		since := historyFlags.Duration("since", 24*time.Hour, "Show events newer than this (0 for all)")
		instance := historyFlags.String("instance", "", "Only this instance")
		limit := historyFlags.Int("limit", 50, "Maximum number of events")
		historyFlags.Parse(os.Args[2:])

		if err := cmd.RunHistory(*configFile, *since, *instance, *limit); err != nil {
			printer.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "task":
		taskFlags := flag.NewFlagSet("task", flag.ExitOnError)
		configFile := configFlag(taskFlags)
		taskFlags.Parse(os.Args[2:])

		if taskFlags.NArg() != 1 {
			printer.Fprintf(os.Stderr, "Usage: %s task [-c file] <health|digest|policy|report|prune>\n", brand.BinaryName)
			os.Exit(1)
		}
		if err := cmd.RunTask(*configFile, taskFlags.Arg(0)); err != nil {
			printer.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version", "-v", "--version":
		cmd.RunVersion()

	case "help", "-h", "--help":
		printUsage()

	default:
		printer.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printer.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  run       Run the monitor loop in the foreground
            Options: --config (-c) <file>
  check     Validate the configuration file
  status    Show the desired alias policy
            Options: --at <RFC3339>
  report    Print the periodic report of every instance
            Options: --send
  diff      Compare live alias content with the desired content
            Options: --at <RFC3339>
  history   Show the audit journal
            Options: --since <duration>, --instance <name>, --limit <n>
  task      Run one loop task now (health, digest, policy, report, prune)
  version   Show version information

Default configuration: %s
`, brand.Name, brand.Description, brand.BinaryName, brand.DefaultConfigPath())
}
