package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"sprocket/internal/config"
	"sprocket/internal/deps"
	"sprocket/internal/logging"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, missing := range deps.Missing(deps.CheckBinaries(deps.Requirements(cfg))) {
		logger.Warn("external tool unavailable",
			logging.String("tool", missing.Name),
			logging.String("detail", missing.Detail))
	}

	d, err := buildDaemon(cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("sprocketd shutting down")
}
