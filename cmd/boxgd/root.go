package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cwbudde/boxgd/internal/opt"
)

var (
	logLevel   string
	configFile string
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "boxgd",
	Short: "Box-constrained gradient descent on benchmark objectives",
	Long: `boxgd minimizes benchmark objectives with gradient descent (eight update
rules, optional box constraints) or the Mayfly swarm optimizer, and keeps
a record of every run for later inspection and warm starts.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optimizer settings file (yaml, json or toml)")
}

func setupLogger(name string) {
	var level slog.Level
	switch name {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// loadSettings returns DefaultSettings overlaid with the settings file, if any
func loadSettings(path string) (opt.Settings, error) {
	if path == "" {
		return opt.DefaultSettings(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return opt.Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	s, err := opt.DecodeSettings(v.AllSettings())
	if err != nil {
		return opt.Settings{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	slog.Debug("Loaded settings", "path", path, "method", s.GD.Method, "iter_max", s.IterMax)
	return s, nil
}
