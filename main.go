package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kendall-kelly/shopfloor-api/config"
	"github.com/kendall-kelly/shopfloor-api/models"
	"github.com/kendall-kelly/shopfloor-api/services"
	"github.com/kendall-kelly/shopfloor-api/utils"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "shopfloor",
		Short:   "Shop-floor order management API",
		Version: Version,
		// Running the binary with no subcommand starts the server
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(syncChecklistsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			utils.Log.Info("Database migration completed successfully")
			return nil
		},
	}
}

func syncChecklistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-checklists",
		Short: "Reconcile checklist rows with charges for one or all open orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			ctx := cmd.Context()
			db := config.GetDB()

			orderID, _ := cmd.Flags().GetString("order")
			if orderID != "" {
				res, err := services.SyncChecklistForOrder(ctx, db, orderID)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d writes\n", orderID, res.Writes())
				return nil
			}

			results, err := services.SyncOpenOrders(ctx, db)
			if err != nil {
				return err
			}
			total := 0
			for _, res := range results {
				total += res.Writes()
			}
			fmt.Printf("Synced %d open orders, %d writes\n", len(results), total)
			return nil
		},
	}

	cmd.Flags().StringP("order", "o", "", "Only sync the order with this id")

	return cmd
}

// bootstrap loads configuration, configures logging, connects to the database and migrates it
func bootstrap() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	utils.InitLogger(cfg.LogLevel, cfg.IsProduction())

	if err := config.ConnectDatabase(cfg); err != nil {
		return nil, err
	}
	if err := models.Migrate(config.GetDB()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}

	if cfg.EventsEnabled() {
		publisher, err := services.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			return err
		}
		defer publisher.Close()
		services.SetEventPublisher(publisher)
		utils.Log.WithField("exchange", services.PartEventsExchange).Info("Publishing part events to RabbitMQ")
	}

	if cfg.AWSS3Bucket != "" {
		if _, err := services.InitS3Service(ctx); err != nil {
			return err
		}
		utils.Log.WithField("bucket", cfg.AWSS3Bucket).Info("Attachment storage enabled")
	} else {
		utils.Log.Warn("AWS_S3_BUCKET not set, attachment uploads are disabled")
	}

	router := setupRouter(cfg)

	addr := ":" + cfg.Port
	utils.Log.Infof("Server is running on http://localhost%s", addr)
	return router.Run(addr)
}
