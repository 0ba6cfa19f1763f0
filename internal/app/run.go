package app

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dharsanguruparan/DogLicense/internal/config"
	"github.com/dharsanguruparan/DogLicense/internal/log"
	"github.com/dharsanguruparan/DogLicense/internal/server"
	"github.com/dharsanguruparan/DogLicense/internal/signing"
	"github.com/dharsanguruparan/DogLicense/internal/worker"
)

// Serve runs the HTTP service until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config) error {
	rt, err := Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := server.New(ctx, cfg, server.Deps{
		Store:      rt.Store,
		Blobs:      rt.Blobs,
		Reviews:    rt.Reviews,
		Dispatcher: rt.Dispatcher(ctx),
		Signer:     signing.NewSigner(cfg.SigningSecret),
		Metrics:    rt.Metrics,
		Gatherer:   prometheus.DefaultGatherer,
	})
	return srv.Run(ctx)
}

// RunWorker serves asynq review tasks until ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.Review != config.ReviewAsynq {
		return errors.New("worker requires DOGLICENSE_REVIEW=asynq")
	}
	rt, err := Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := asynq.NewServer(redisOpt(cfg), asynq.Config{
		Concurrency: cfg.ReviewWorkers,
	})
	mux := worker.NewProcessor(rt.Reviewer).Handler()

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()
	log.Infof("review worker started with %d workers", cfg.ReviewWorkers)
	return srv.Run(mux)
}
