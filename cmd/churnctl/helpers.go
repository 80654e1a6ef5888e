package main

import (
	"fmt"

	"go.uber.org/zap"

	"churnpredict/db"
	"churnpredict/logging"
	"churnpredict/pipeline"
	"churnpredict/service"
)

// cliLogger writes warnings and above to stderr in console form.
func cliLogger(verbose bool) (*zap.Logger, error) {
	cfg := logging.DefaultConfig()
	cfg.Format = "console"
	cfg.Level = "warn"
	if verbose {
		cfg.Level = "debug"
	}
	logger, _, err := logging.New(cfg)
	return logger, err
}

// openService loads the artifact directory and builds a service around it.
// When dbPath is set predictions are also written to that audit store; the
// returned cleanup closes it.
func openService(dir, dbPath string, parallelism int, logger *zap.Logger) (*service.Service, func(), error) {
	artifacts, err := pipeline.LoadArtifacts(dir)
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(artifacts)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	opts := service.Options{Parallelism: parallelism, Logger: logger}
	if dbPath != "" {
		store, err := db.Open(db.Config{Path: dbPath, EnableWAL: true})
		if err != nil {
			return nil, nil, fmt.Errorf("open audit store: %w", err)
		}
		opts.Store = store
		cleanup = func() { _ = store.Close() }
	}

	svc, err := service.New(p, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
