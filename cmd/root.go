package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/swellwatch/internal/config"
	"github.com/example/swellwatch/internal/provider"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var configPath string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "swellwatch",
		Short: "Surf session watcher: runs slot-hunting monitor jobs and books sessions for members",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (defaults to ./"+config.DefaultFile+" when present)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newJobCmd())
	root.AddCommand(newBookCmd())
	root.AddCommand(newScanCmd())

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads config, installs the logger and builds the provider client.
func setup() (config.Config, *provider.Client, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	logger := config.SetupLogger(cfg.Logging)
	client := provider.New(cfg.Provider.BaseURL, cfg.Provider.WebsocketURL, provider.Credentials{
		APIKey:    cfg.Provider.APIKey,
		AuthToken: cfg.Provider.AuthToken,
	})
	return cfg, client, logger, nil
}
