package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"driftbook/book"
	"driftbook/config"
	"driftbook/internal/api"
	"driftbook/internal/drift"
	"driftbook/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Driftbook.Name,
		"version": cfg.Driftbook.Version,
		"network": cfg.RPC.Env,
	}).Info("starting driftbook")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		cw := cfg.Metrics.CloudWatch
		logger.InitCloudWatch(cw.Region, cw.Namespace, cw.Dashboard, cw.AccessKeyID, cw.SecretAccessKey)
	}

	client := drift.NewClient(cfg.RPC)
	provider := drift.NewProvider(ctx, cfg, client)
	store := book.NewStore()
	builder := book.NewBuilder(cfg, provider, store)
	scheduler := book.NewScheduler(cfg.Book.RefreshInterval(), builder, store)
	server := api.NewServer(cfg.Server, store)

	// Resolve the market up front: an unknown market must not start
	// serving. Transient RPC failures are left to the refresh loop, which
	// retries Init every cycle.
	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := provider.Init(startupCtx); err != nil {
		if errors.Is(err, drift.ErrMarketNotFound) {
			startupCancel()
			log.WithError(err).Error("market resolution failed")
			os.Exit(1)
		}
		log.WithError(err).Warn("provider initialization deferred to refresh loop")
	}
	startupCancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			log.WithError(err).Error("api server exited")
		}
	}()

	if err := scheduler.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start refresh scheduler")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{"address": server.Address()}).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	scheduler.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("driftbook stopped")
}
