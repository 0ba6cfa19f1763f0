// Package worker plugs certificate reviews into the asynq server loop.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/DogLicense/internal/log"
	"github.com/dharsanguruparan/DogLicense/internal/queue"
	"github.com/dharsanguruparan/DogLicense/internal/review"
)

// Processor handles review tasks.
type Processor struct {
	reviewer *review.Reviewer
}

// NewProcessor constructs a worker processor.
func NewProcessor(reviewer *review.Reviewer) *Processor {
	return &Processor{reviewer: reviewer}
}

// Handler registers the review task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReviewCertificateTask, p.handleReview)
	return mux
}

func (p *Processor) handleReview(ctx context.Context, task *asynq.Task) error {
	job, err := queue.ParseReviewTask(task)
	if err != nil {
		// a payload that cannot be decoded will never succeed
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := p.reviewer.Review(ctx, job); err != nil {
		log.Warnf("review failed for %s: %v", job.ApplicationID, err)
		return err
	}
	log.Infof("certificate for %s reviewed", job.ApplicationID)
	return nil
}
