package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lexcodex/zeekls/system"
)

var (
	flagConfig   string
	flagLogLevel string
	flagPrefixes []string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zeekls",
		Short: "Language server for Zeek scripts",
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", envOrDefault("ZEEKLS_CONFIG", ""), "Path to a YAML config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringSliceVar(&flagPrefixes, "prefix", nil, "Extra script prefix (repeatable)")

	root.AddCommand(newServeCmd(), newInspectCmd())
	return root
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig merges the YAML file with CLI flag overrides.
func loadConfig() (system.Config, error) {
	cfg, err := system.LoadConfig(configPath())
	if err != nil {
		return cfg, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	cfg.Prefixes = append(cfg.Prefixes, flagPrefixes...)
	return cfg, nil
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "zeekls.yaml"
	}
	return home + "/.config/zeekls/config.yaml"
}

// newLogger writes to stderr so stdout stays clean for the LSP transport.
func newLogger(cfg system.Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.LogLevel != "" {
		if err := level.Set(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	return zcfg.Build()
}
