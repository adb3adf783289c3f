package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/shop"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the MySQL schema and seed the settings row",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := repository.Open(&cfg.MySQL)
			if err != nil {
				return err
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			logger.Info("Schema up to date", zap.String("database", cfg.MySQL.Database))
			return nil
		},
	}
}

func exportOrdersCmd() *cobra.Command {
	var status, from, to, output string

	cmd := &cobra.Command{
		Use:   "export-orders",
		Short: "Write orders as a semicolon-separated spreadsheet",
		Long: `Write orders as a semicolon-separated spreadsheet readable by Excel.

Examples:
  shopctl export-orders --status PAID --from 2024-03-01 --to 2024-03-31
  shopctl export-orders -o commandes.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := shop.ParseExportFilter(status, from, to)
			if err != nil {
				return err
			}

			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := repository.Open(&cfg.MySQL)
			if err != nil {
				return err
			}
			orders := shop.NewOrderService(repository.NewOrderRepository(db), nil, nil, cfg.Server.BaseURL, logger)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}

			n, err := orders.ExportCSV(cmd.Context(), w, f)
			if err != nil {
				return err
			}
			logger.Info("Orders exported", zap.Int("count", n), zap.String("output", output))
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "ALL", "order status, or ALL")
	cmd.Flags().StringVar(&from, "from", "", "first day included (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day included (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func healthCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "health [component]",
		Short: "Probe the ops endpoint of a running storefront",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			var component string
			if len(args) == 1 {
				component = args[0]
			}
			if target == "" {
				target = (&config.OpsConfig{Host: "localhost", Port: cfg.Ops.Port}).Addr()
			}

			var resolver grpc.Resolver
			if cfg.Etcd.Enabled {
				sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
				if err != nil {
					logger.Warn("Failed to connect to etcd", zap.Error(err))
				} else {
					defer sd.Close()
					resolver = sd
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			m := grpc.NewClientManager(logger, resolver)
			if err := m.Connect(ctx, cfg.Ops.Name, target); err != nil {
				return err
			}
			defer m.Close()

			status, err := m.Health(ctx, component)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			if status != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("storefront is %s", status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "ops address, used when etcd has no registration (default localhost:<ops.port>)")

	return cmd
}
