// Command shopctl is the operator CLI: schema migration, order exports and
// health probes of a running storefront.
package main

import (
	"fmt"
	"os"

	"github.com/example/storefront/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "shopctl",
		Short:         "shopctl - storefront operations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportOrdersCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and a console logger for the commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	cfg.Log.Encoding = "console"
	cfg.Log.OutputPaths = []string{"stderr"}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
