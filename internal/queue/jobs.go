// Package queue hands certificate reviews to the asynq worker process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/review"
)

const (
	// ReviewCertificateTask is scheduled for every submission with a certificate.
	ReviewCertificateTask = "certificate:review"
	maxRetry              = 5
)

// NewReviewTask wraps a review job in an asynq task.
func NewReviewTask(job review.Job) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ReviewCertificateTask, data, asynq.MaxRetry(maxRetry)), nil
}

// ParseReviewTask decodes the job carried by a task.
func ParseReviewTask(task *asynq.Task) (review.Job, error) {
	var job review.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return job, fmt.Errorf("decode payload: %w", err)
	}
	return job, nil
}

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher records queued reviews and enqueues them on Redis.
type Dispatcher struct {
	client Enqueuer
	store  review.Store
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(client Enqueuer, store review.Store) *Dispatcher {
	return &Dispatcher{client: client, store: store}
}

// Dispatch enqueues the review of app. Applications without a stored
// certificate are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, app model.SubmittedApplication) error {
	job, ok := review.JobFor(app)
	if !ok {
		return nil
	}
	if err := d.store.Create(ctx, job.ApplicationID); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	task, err := NewReviewTask(job)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task); err != nil {
		_ = d.store.MarkFailed(ctx, job.ApplicationID, "enqueue failed")
		return fmt.Errorf("enqueue review task: %w", err)
	}
	return nil
}
