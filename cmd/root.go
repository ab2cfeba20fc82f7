package main

import (
	"fmt"

	"monoamp/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "monoamp",
	Short: "Gateway for Monoprice whole-home amplifiers and pianod",
	Long: `monoamp polls a Monoprice multi-zone amplifier over its local HTTP API,
exposes every zone as entities over MQTT discovery and a small HTTP API, and
controls Pandora playback through pianod.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(zonesCmd)
	rootCmd.AddCommand(roomsCmd)
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setup creates the logger and loads the configuration shared by every command
func setup() (*zap.Logger, *config.Config, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.NewLoader(configPath, logger).Load()
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return logger, cfg, nil
}
