package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"streamystats/internal/chart"
	"streamystats/internal/config"
	"streamystats/internal/logger"
	"streamystats/internal/server"
	"streamystats/internal/stats"
	"streamystats/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := stats.Open(ctx, stats.Options{
		DatabaseURL: cfg.DatabaseURL,
		S3: stats.S3Options{
			URI:       cfg.StatsS3URI,
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			PathStyle: cfg.S3PathStyle,
			Refresh:   cfg.S3Refresh(),
		},
		File: cfg.StatsFile,
	})
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to open statistics store")
	}
	defer store.Close()

	var opts []server.Option
	if cfg.ChartCacheDir != "" {
		charts, err := chart.NewCache(cfg.ChartCacheDir, int64(cfg.ChartCacheMaxMB)*1024*1024)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to open chart cache")
		}
		opts = append(opts, server.WithChartCache(charts))
	}

	srv := server.New(cfg, store, opts...)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Infof("Starting streamystats %s on %s", version.Get().String(), addr)

	if err := srv.Run(ctx, addr); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to start server")
	}
}
