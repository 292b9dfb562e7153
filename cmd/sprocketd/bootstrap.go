package main

import (
	"fmt"
	"log/slog"

	"sprocket/internal/api"
	"sprocket/internal/config"
	"sprocket/internal/daemon"
	"sprocket/internal/executor"
	"sprocket/internal/media/ffprobe"
	"sprocket/internal/profiles"
	"sprocket/internal/queue"
	"sprocket/internal/resolver"
	"sprocket/internal/services/ffmpeg"
	"sprocket/internal/worker"
)

// buildDaemon wires the store, registry, resolver, executor, worker
// pool, and API service into a ready-to-start daemon.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	registry, err := profiles.Load(cfg.Paths.DefinitionsPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load definitions: %w", err)
	}

	q := queue.NewQueue(store)
	prober := ffprobe.NewInspector(cfg.FFprobeBinary())
	res := resolver.New(registry, prober, cfg)
	client := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	exec := executor.New(client, prober, store, logger)
	pool := worker.NewPool(store, q, exec, cfg.Processing.Workers, logger)
	service := api.NewService(store, q, res, pool, registry, cfg.Processing.Workers, logger)

	d, err := daemon.New(cfg, store, q, pool, service, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}
