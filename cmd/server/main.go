package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-balancer/api/rest/routes"
	"media-balancer/config"
	"media-balancer/core/monitoring"
	"media-balancer/core/repository"
	"media-balancer/core/resource_manager"
	"media-balancer/core/scheduler"
	"media-balancer/providers/aws"
	"media-balancer/providers/backend"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var Version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "media-balancer",
		Short:         "Scheduler for generative-media jobs across backend inference servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if configPath != "" {
				if err := cfg.LoadFile(configPath); err != nil {
					return err
				}
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "media-balancer %s\n", Version)
		},
	})
	return cmd
}

func setupLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize event journal
	var events repository.EventSink = repository.NopEventSink{}
	var eventReader repository.EventReader = repository.NopEventSink{}
	var journalDone <-chan struct{}
	if cfg.DatabaseURL != "" {
		db, err := repository.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		journal := repository.NewEventRepository(db, repository.DefaultEventBuffer)
		go journal.Start(ctx)
		events, eventReader = journal, journal
		journalDone = journal.Done()
		log.Info("Event journal enabled")
	}

	// Initialize backend URL source
	urls := scheduler.StaticURLs(cfg.Servers)
	if cfg.AWSDiscoveryTag != "" {
		discovery, err := aws.NewDiscovery(ctx, cfg.AWSRegion, cfg.AWSDiscoveryTag, cfg.AWSDiscoveryPort)
		if err != nil {
			return err
		}
		urls = discovery.URLs(cfg.Servers)
		log.WithFields(log.Fields{"tag": cfg.AWSDiscoveryTag, "region": cfg.AWSRegion}).Info("EC2 discovery enabled")
	}

	// Initialize registries and scheduler
	pool := resource_manager.NewServerPool(backend.NewClient(cfg.ProbeTimeout), cfg.ProbeTimeout)
	ledger := repository.NewOperationLedger()
	sched := scheduler.NewScheduler(pool, ledger, urls, scheduler.Options{
		HealthCheckInterval: cfg.HealthCheckInterval,
		ScheduleInterval:    cfg.ScheduleInterval,
		Events:              events,
		Metrics:             monitoring.NewMetrics(),
	})
	go sched.Start(ctx)
	defer sched.Stop()

	r := mux.NewRouter()
	routes.SetupRoutes(r, sched, eventReader)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on port %s with %d configured backends", cfg.ServerPort, len(cfg.Servers))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	sched.Stop()
	cancel()
	if journalDone != nil {
		<-journalDone
	}
	log.Info("Server exited")
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
