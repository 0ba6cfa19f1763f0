// Package repository holds the Postgres implementations of the draft slot,
// the submission list and the certificate review log.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
)

// ApplicationRepository implements storage.Store on Postgres.
type ApplicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository constructs a repository.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

func (r *ApplicationRepository) LoadDraft(ctx context.Context) (*model.DraftApplication, error) {
	var payload string
	err := r.pool.QueryRow(ctx, `SELECT payload FROM license_drafts WHERE slot = 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select draft: %w", err)
	}
	return storage.DecodeDraft([]byte(payload))
}

func (r *ApplicationRepository) SaveDraft(ctx context.Context, draft model.DraftApplication) error {
	data, err := storage.EncodeDraft(draft)
	if err != nil {
		return err
	}
	return r.PutRawDraft(ctx, string(data))
}

// PutRawDraft stores payload in the draft slot as-is.
func (r *ApplicationRepository) PutRawDraft(ctx context.Context, payload string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO license_drafts (slot, payload, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (slot) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) ClearDraft(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM license_drafts WHERE slot = 1`); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) AppendSubmission(ctx context.Context, app model.SubmittedApplication) error {
	var (
		certName, certType, certKey *string
		certSize                    *int64
	)
	if c := app.Certificate; c != nil {
		certName, certType, certKey, certSize = &c.Name, &c.ContentType, &c.ObjectKey, &c.Size
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO license_applications (
			id, owner_name, owner_address, owner_phone,
			dog_name, dog_breed, dog_age, dog_color, last_rabies_shot,
			certificate_name, certificate_size, certificate_type, certificate_key,
			status, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, app.ID, app.OwnerName, app.OwnerAddress, app.OwnerPhone,
		app.DogName, app.DogBreed, app.DogAge, app.DogColor, app.LastRabiesShot,
		certName, certSize, certType, certKey,
		app.Status, app.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

const selectApplications = `
	SELECT id, owner_name, owner_address, owner_phone,
		dog_name, dog_breed, dog_age, dog_color, last_rabies_shot,
		certificate_name, certificate_size, certificate_type, certificate_key,
		status, submitted_at
	FROM license_applications`

func (r *ApplicationRepository) ListSubmissions(ctx context.Context) ([]model.SubmittedApplication, error) {
	rows, err := r.pool.Query(ctx, selectApplications+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	defer rows.Close()

	apps := []model.SubmittedApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

func (r *ApplicationRepository) GetSubmission(ctx context.Context, id string) (model.SubmittedApplication, error) {
	app, err := scanApplication(r.pool.QueryRow(ctx, selectApplications+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SubmittedApplication{}, storage.ErrNotFound
	}
	return app, err
}

func scanApplication(row pgx.Row) (model.SubmittedApplication, error) {
	var (
		app                         model.SubmittedApplication
		certName, certType, certKey sql.NullString
		certSize                    sql.NullInt64
	)
	err := row.Scan(&app.ID, &app.OwnerName, &app.OwnerAddress, &app.OwnerPhone,
		&app.DogName, &app.DogBreed, &app.DogAge, &app.DogColor, &app.LastRabiesShot,
		&certName, &certSize, &certType, &certKey,
		&app.Status, &app.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return app, err
		}
		return app, fmt.Errorf("scan application: %w", err)
	}
	if certName.Valid {
		app.Certificate = &model.Certificate{
			Name:        certName.String,
			Size:        certSize.Int64,
			ContentType: certType.String,
			ObjectKey:   certKey.String,
		}
	}
	app.SubmittedAt = app.SubmittedAt.UTC()
	return app, nil
}
