package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/internal/server"
	"github.com/tournevent/fulfillment/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fulfillment",
	Short:   "Tournevent Fulfillment - Multi-carrier shipping integration service",
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server, background jobs and event consumer",
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one webhook sweep cycle and exit",
	RunE:  runSweep,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	a.logger.Info("Starting Tournevent Fulfillment",
		zap.Int("port", a.cfg.Port),
		zap.String("version", a.cfg.Version),
		zap.Strings("carriers", a.adapters.Names()),
	)

	scheduler := fulfillment.NewScheduler(a.service, a.sweeper, fulfillment.SchedulerConfig{
		SweepInterval:       a.cfg.SweepInterval,
		ReaperInterval:      a.cfg.ReaperInterval,
		HealthCheckInterval: a.cfg.HealthCheckInterval,
	}, a.logger)
	scheduler.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	srv := server.New(server.Config{Port: a.cfg.Port}, a.service, a.gatherer, a.logger)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if a.invalidator != nil {
		g.Go(func() error {
			if err := a.invalidator.Listen(gctx); err != nil && gctx.Err() == nil {
				a.logger.Error("Provider invalidation listener stopped", zap.Error(err))
			}
			return nil
		})
	}

	if a.consumer != nil {
		g.Go(func() error {
			if err := a.consumer.Run(gctx); err != nil && gctx.Err() == nil {
				return fmt.Errorf("shipment request consumer: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	report, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	a.logger.Info("Sweep finished",
		zap.Bool("skipped", report.Skipped),
		zap.Int("selected", report.Selected),
		zap.Int("applied", report.Applied),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Int("parked", report.Parked),
	)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	if err := storage.Migrate(db); err != nil {
		return err
	}
	logger.Info("Database schema is up to date", zap.String("driver", cfg.DBDriver))
	return nil
}
