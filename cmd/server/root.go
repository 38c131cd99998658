package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/server/config"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	ConfigFile string
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to a JSON or YAML config file")
	config.RegisterFlags(rootCmd.PersistentFlags())
}

var rootCmd = &cobra.Command{
	Use:   "academyhub",
	Short: "Academyhub is the backend of the academy social network",
	Long: `Academyhub serves the REST API, the realtime socket relay and the
media storage service of the academy social network.`,
	Example: `academyhub serve --config config.yml
  academyhub migrate
  academyhub useradd --email coach@example.com --role coach`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// loadConfig reads the config for cmd and builds the logger it asks for.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat), nil
}
