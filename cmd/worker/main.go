// Command worker processes certificate review tasks from asynq.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dharsanguruparan/DogLicense/internal/app"
	"github.com/dharsanguruparan/DogLicense/internal/config"
	"github.com/dharsanguruparan/DogLicense/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	cfg.Review = config.ReviewAsynq

	if err := app.RunWorker(ctx, cfg); err != nil {
		log.Errorf("worker stopped: %v", err)
		os.Exit(1)
	}
}
