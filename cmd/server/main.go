// Command server runs the dog license HTTP service.
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
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx, cfg); err != nil {
		log.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
