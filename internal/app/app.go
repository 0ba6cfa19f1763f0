// Package app builds the runtime collaborators selected by the configuration
// and runs the HTTP service and the review worker.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dharsanguruparan/DogLicense/internal/certificate"
	"github.com/dharsanguruparan/DogLicense/internal/config"
	"github.com/dharsanguruparan/DogLicense/internal/database"
	"github.com/dharsanguruparan/DogLicense/internal/log"
	"github.com/dharsanguruparan/DogLicense/internal/metrics"
	pdfutil "github.com/dharsanguruparan/DogLicense/internal/pdf"
	"github.com/dharsanguruparan/DogLicense/internal/processing"
	"github.com/dharsanguruparan/DogLicense/internal/queue"
	"github.com/dharsanguruparan/DogLicense/internal/repository"
	"github.com/dharsanguruparan/DogLicense/internal/review"
	"github.com/dharsanguruparan/DogLicense/internal/s3storage"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
	"github.com/dharsanguruparan/DogLicense/internal/storage/redisstore"
	"github.com/dharsanguruparan/DogLicense/internal/storage/sqlite"
	"github.com/dharsanguruparan/DogLicense/internal/wizard"
)

// Runtime bundles the collaborators built from a Config.
type Runtime struct {
	Store    storage.Store
	Blobs    certificate.BlobStore
	Reviews  review.Store
	Reviewer *review.Reviewer
	Metrics  *metrics.Metrics

	processor *processing.Processor
	enqueuer  *queue.Dispatcher
	closers   []func()
}

// Build connects every backend named by cfg. reg may be nil to skip metrics.
// A failed Build releases whatever it had opened.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (_ *Runtime, err error) {
	rt := &Runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()
	if reg != nil {
		rt.Metrics = metrics.New(reg)
	}

	var pool *pgxpool.Pool
	if cfg.Store == config.StorePostgres || cfg.Review == config.ReviewAsynq {
		pool, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	if rt.Store, err = openStore(ctx, cfg, pool, rt); err != nil {
		return nil, err
	}
	if rt.Blobs, err = openBlobs(ctx, cfg); err != nil {
		return nil, err
	}

	if pool != nil {
		rt.Reviews = repository.NewReviewRepository(pool)
	} else {
		rt.Reviews = review.NewMemoryStore()
	}
	rt.Reviewer = review.NewReviewer(rt.Reviews, rt.Blobs, pdfutil.ExtractText).WithMetrics(rt.Metrics)

	switch cfg.Review {
	case config.ReviewInline:
		rt.processor = processing.New(rt.Reviewer, cfg.ReviewWorkers)
	case config.ReviewAsynq:
		client := asynq.NewClient(redisOpt(cfg))
		rt.closers = append(rt.closers, func() { client.Close() })
		rt.enqueuer = queue.NewDispatcher(client, rt.Reviews)
	case config.ReviewOff:
	default:
		return nil, fmt.Errorf("unknown review mode %q", cfg.Review)
	}
	log.Debugf("runtime ready: store=%s blob=%s review=%s", cfg.Store, cfg.Blob, cfg.Review)
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, rt *Runtime) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StoreSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		rt.closers = append(rt.closers, func() { st.Close() })
		return st, nil
	case config.StorePostgres:
		return repository.NewApplicationRepository(pool), nil
	case config.StoreRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.closers = append(rt.closers, func() { client.Close() })
		return redisstore.New(client), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func openBlobs(ctx context.Context, cfg *config.Config) (certificate.BlobStore, error) {
	switch cfg.Blob {
	case config.BlobDir:
		blobs, err := certificate.NewDirStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return blobs, nil
	case config.BlobS3:
		blobs, err := s3storage.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := blobs.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return blobs, nil
	}
	return nil, fmt.Errorf("unknown blob store %q", cfg.Blob)
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}

// Dispatcher returns the review dispatcher for a long-running server, or nil
// when reviews are off. In inline mode the worker goroutines are started on
// ctx.
func (rt *Runtime) Dispatcher(ctx context.Context) wizard.Dispatcher {
	switch {
	case rt.processor != nil:
		rt.processor.Start(ctx)
		return rt.processor
	case rt.enqueuer != nil:
		return rt.enqueuer
	}
	return nil
}

// OneShotDispatcher returns the review dispatcher for short-lived commands:
// inline reviews run synchronously instead of on background goroutines.
func (rt *Runtime) OneShotDispatcher() wizard.Dispatcher {
	switch {
	case rt.processor != nil:
		return rt.Reviewer
	case rt.enqueuer != nil:
		return rt.enqueuer
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}
