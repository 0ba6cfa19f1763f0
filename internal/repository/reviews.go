package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/review"
)

// ReviewRepository implements review.Store on Postgres.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository constructs a repository.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a queued review, replacing any earlier one for the
// application.
func (r *ReviewRepository) Create(ctx context.Context, applicationID string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO certificate_reviews (application_id, status, message, content, created_at, updated_at)
		VALUES ($1, $2, '', '', $3, $3)
		ON CONFLICT (application_id) DO UPDATE
		SET status = EXCLUDED.status, message = '', content = '', updated_at = EXCLUDED.updated_at
	`, applicationID, model.ReviewQueued, now)
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

func (r *ReviewRepository) Get(ctx context.Context, applicationID string) (*model.CertificateReview, error) {
	var rv model.CertificateReview
	err := r.pool.QueryRow(ctx, `
		SELECT application_id, status, message, content, created_at, updated_at
		FROM certificate_reviews WHERE application_id = $1
	`, applicationID).Scan(&rv.ApplicationID, &rv.Status, &rv.Message, &rv.Text, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, review.ErrNotFound
		}
		return nil, fmt.Errorf("select review: %w", err)
	}
	return &rv, nil
}

func (r *ReviewRepository) MarkProcessing(ctx context.Context, applicationID string) error {
	return r.updateStatus(ctx, applicationID, model.ReviewProcessing, "processing started", nil)
}

func (r *ReviewRepository) MarkFailed(ctx context.Context, applicationID, msg string) error {
	return r.updateStatus(ctx, applicationID, model.ReviewFailed, msg, nil)
}

func (r *ReviewRepository) MarkComplete(ctx context.Context, applicationID, text string) error {
	return r.updateStatus(ctx, applicationID, model.ReviewComplete, "review finished", &text)
}

func (r *ReviewRepository) updateStatus(ctx context.Context, applicationID string, status model.ReviewStatus, msg string, text *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE certificate_reviews
		SET status = $1,
			message = $2,
			content = COALESCE($3, content),
			updated_at = $4
		WHERE application_id = $5
	`, status, msg, text, time.Now().UTC(), applicationID)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return review.ErrNotFound
	}
	return nil
}
