// Package processing runs certificate reviews on a bounded in-process queue
// served by a fixed set of goroutines.
package processing

import (
	"context"
	"fmt"

	"github.com/dharsanguruparan/DogLicense/internal/log"
	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/review"
)

// Processor consumes review jobs.
type Processor struct {
	reviewer *review.Reviewer
	queue    chan review.Job
	workers  int
}

// New builds a Processor with queue capacity tied to worker count.
func New(reviewer *review.Reviewer, workers int) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		reviewer: reviewer,
		queue:    make(chan review.Job, workers*4),
		workers:  workers,
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Dispatch records a queued review for app and hands it to the workers.
// Applications without a stored certificate are skipped.
func (p *Processor) Dispatch(ctx context.Context, app model.SubmittedApplication) error {
	job, ok := review.JobFor(app)
	if !ok {
		return nil
	}
	store := p.reviewer.Store()
	if err := store.Create(ctx, job.ApplicationID); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	select {
	case p.queue <- job:
		return nil
	default:
		log.Warnf("review queue full, dropping job for %s", job.ApplicationID)
		return store.MarkFailed(ctx, job.ApplicationID, "review queue full")
	}
}

func (p *Processor) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := p.reviewer.Review(ctx, job); err != nil {
				log.Warnf("review failed for %s: %v", job.ApplicationID, err)
				continue
			}
			log.Debugf("review complete for %s", job.ApplicationID)
		}
	}
}
