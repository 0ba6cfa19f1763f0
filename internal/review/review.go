// Package review inspects the certificate of a submitted application in the
// background and records the outcome.
package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/dharsanguruparan/DogLicense/internal/metrics"
	"github.com/dharsanguruparan/DogLicense/internal/model"
)

// ErrNotFound is returned for applications without a review.
var ErrNotFound = errors.New("review not found")

// Store persists review state per application.
type Store interface {
	Create(ctx context.Context, applicationID string) error
	Get(ctx context.Context, applicationID string) (*model.CertificateReview, error)
	MarkProcessing(ctx context.Context, applicationID string) error
	MarkFailed(ctx context.Context, applicationID, msg string) error
	MarkComplete(ctx context.Context, applicationID, text string) error
}

// BlobReader loads certificate content by object key.
type BlobReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// Job is the unit of review work. It is also the asynq task payload.
type Job struct {
	ApplicationID string `json:"application_id"`
	ObjectKey     string `json:"object_key"`
	FileName      string `json:"file_name"`
	ContentType   string `json:"content_type"`
}

// JobFor builds the job for app. It reports false when the application has
// no stored certificate.
func JobFor(app model.SubmittedApplication) (Job, bool) {
	c := app.Certificate
	if c == nil || c.ObjectKey == "" {
		return Job{}, false
	}
	return Job{
		ApplicationID: app.ID,
		ObjectKey:     c.ObjectKey,
		FileName:      c.Name,
		ContentType:   c.ContentType,
	}, true
}

// TextExtractor pulls plain text out of a PDF.
type TextExtractor func(data []byte) (string, error)

// Reviewer runs jobs against a store and a blob source.
type Reviewer struct {
	store   Store
	blobs   BlobReader
	extract TextExtractor
	metrics *metrics.Metrics
}

// NewReviewer constructs a Reviewer.
func NewReviewer(store Store, blobs BlobReader, extract TextExtractor) *Reviewer {
	return &Reviewer{store: store, blobs: blobs, extract: extract}
}

// WithMetrics records review outcomes on m.
func (r *Reviewer) WithMetrics(m *metrics.Metrics) *Reviewer {
	r.metrics = m
	return r
}

// Store exposes the review store so dispatchers can create queued entries.
func (r *Reviewer) Store() Store {
	return r.store
}

// Review processes one job. The returned error is also recorded on the
// review so callers may retry or give up.
func (r *Reviewer) Review(ctx context.Context, job Job) error {
	fail := func(err error) error {
		r.metrics.IncrementReview(model.ReviewFailed)
		if markErr := r.store.MarkFailed(ctx, job.ApplicationID, err.Error()); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}
	if err := r.store.MarkProcessing(ctx, job.ApplicationID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	data, err := r.blobs.Read(ctx, job.ObjectKey)
	if err != nil {
		return fail(fmt.Errorf("read certificate: %w", err))
	}
	var text string
	if job.ContentType == "application/pdf" {
		text, err = r.extract(data)
		if err != nil {
			return fail(fmt.Errorf("extract certificate text: %w", err))
		}
	}
	if err := r.store.MarkComplete(ctx, job.ApplicationID, text); err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	r.metrics.IncrementReview(model.ReviewComplete)
	return nil
}

// Dispatch creates the review for app and runs it in the caller's goroutine.
// Applications without a stored certificate are skipped.
func (r *Reviewer) Dispatch(ctx context.Context, app model.SubmittedApplication) error {
	job, ok := JobFor(app)
	if !ok {
		return nil
	}
	if err := r.store.Create(ctx, job.ApplicationID); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return r.Review(ctx, job)
}
