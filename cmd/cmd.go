// Package cmd implements the opnwatch subcommands.
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"grimm.is/opnwatch/internal/brand"
	"grimm.is/opnwatch/internal/config"
	"grimm.is/opnwatch/internal/i18n"
	"grimm.is/opnwatch/internal/logging"
)

// Printer is the global message printer for the CLI
var Printer = i18n.NewCLIPrinter()

// Out receives command output. Tests replace it.
var Out io.Writer = os.Stdout

func loadConfig(configFile string) (*config.Config, error) {
	if configFile == "" {
		configFile = brand.DefaultConfigPath()
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configFile, err)
	}
	return cfg, nil
}

// setupLogging builds the process logger from the config and makes it the
// default.
func setupLogging(cfg *config.Config) *logging.Logger {
	logCfg := logging.DefaultConfig()
	logCfg.JSON = cfg.LogJSON
	level, err := logging.ParseLevel(cfg.LogLevel)
	logCfg.Level = level

	logger := logging.New(logCfg)
	logging.SetDefault(logger)
	if err != nil {
		logger.Warn("invalid log level, using info", "level", cfg.LogLevel)
	}
	return logger
}

// reloadLogLevel re-reads the config file and applies its log_level to
// logger. Other settings need a restart.
func reloadLogLevel(configFile string, logger *logging.Logger) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if prev := logger.GetLevel(); prev != level {
		logger.SetLevel(level)
		logger.Info("log level changed", "from", prev, "to", level)
	}
	return nil
}

// parseAt parses the -at flag. Empty means now.
func parseAt(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -at value %q (want RFC3339): %w", at, err)
	}
	return t, nil
}
