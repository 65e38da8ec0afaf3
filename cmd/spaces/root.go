package main

import (
	"github.com/dkeye/Spaces/internal/config"
	"github.com/dkeye/Spaces/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "spaces",
	Short:         "Client engine for live audio/video spaces",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig reads config and initializes the global logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return cfg, nil
}
