package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"churnpredict/config"
	"churnpredict/db"
	"churnpredict/events"
	qhttp "churnpredict/http"
	"churnpredict/logging"
	"churnpredict/monitoring"
	"churnpredict/pipeline"
	"churnpredict/service"
)

func main() {
	// 1. Load config
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, level, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfgPath, cfg, logger, level); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("exiting")
}

func run(cfgPath string, cfg *config.Config, logger *zap.Logger, level zap.AtomicLevel) error {
	// 2. Load artifacts; a broken artifact set must stop startup
	artifacts, err := pipeline.LoadArtifacts(cfg.Artifacts.Dir)
	if err != nil {
		return err
	}
	p, err := pipeline.New(artifacts)
	if err != nil {
		return err
	}
	logger.Info("artifacts loaded",
		zap.String("dir", cfg.Artifacts.Dir),
		zap.String("version", artifacts.Version()),
		zap.String("model", artifacts.ModelType()),
		zap.String("raw_encoding", string(artifacts.Encoding())),
		zap.Strings("features", artifacts.Features()),
	)

	// 3. Optional side effects
	metrics := monitoring.NewMetrics()
	hub := monitoring.NewPredictionHub(logger, metrics, cfg.HTTP.AllowedOrigins)
	go hub.Run()
	defer hub.Stop()

	opts := service.Options{
		CacheSize:   cfg.Cache.Size,
		Parallelism: cfg.Batch.Parallelism,
		Policy:      cfg.Retention,
		Broadcaster: hub,
		Metrics:     metrics,
		Logger:      logger,
	}
	if cfg.Database.Path != "" {
		store, err := db.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Store = store
		logger.Info("prediction audit enabled", zap.String("path", cfg.Database.Path))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts.Publisher = publisher
		logger.Info("prediction events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", publisher.Topic()))
	}

	svc, err := service.New(p, opts)
	if err != nil {
		return err
	}
	api, err := qhttp.NewAPI(svc, qhttp.APIOptions{
		Metrics:  metrics,
		Hub:      hub,
		Logger:   logger,
		MaxBatch: cfg.Batch.MaxRecords,
	})
	if err != nil {
		return err
	}
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}, api, metrics, logger)

	// 4. Serve until a signal arrives
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Stop(shutdownCtx)
	})
	g.Go(func() error {
		return config.Watch(gctx, cfgPath, logger, func(next *config.Config) {
			if lvl, err := logging.ParseLevel(next.Log.Level); err == nil && lvl != level.Level() {
				level.SetLevel(lvl)
				logger.Info("log level changed", zap.Stringer("level", lvl))
			}
			if next.Retention != svc.Policy() {
				if err := svc.SetPolicy(next.Retention); err != nil {
					logger.Warn("retention policy rejected", zap.Error(err))
				}
			}
		})
	})

	return g.Wait()
}
