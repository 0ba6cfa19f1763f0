// Package storage is the persistence boundary of the wizard: one draft slot
// and an append-only submission list.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dharsanguruparan/DogLicense/internal/model"
)

// Keys naming the draft slot and the submission list in key/value backends.
const (
	DraftKey       = "dogLicenseDraft"
	SubmissionsKey = "dogLicenseApplications"
)

var (
	// ErrNotFound is returned when a submission id is unknown.
	ErrNotFound = errors.New("application not found")
	// ErrCorruptDraft is returned when the stored draft cannot be decoded.
	ErrCorruptDraft = errors.New("corrupt draft")
)

// Store is implemented by every backend. LoadDraft returns (nil, nil) when no
// draft is stored. AppendSubmission must not lose concurrent appends.
type Store interface {
	LoadDraft(ctx context.Context) (*model.DraftApplication, error)
	SaveDraft(ctx context.Context, draft model.DraftApplication) error
	ClearDraft(ctx context.Context) error
	AppendSubmission(ctx context.Context, app model.SubmittedApplication) error
	ListSubmissions(ctx context.Context) ([]model.SubmittedApplication, error)
	GetSubmission(ctx context.Context, id string) (model.SubmittedApplication, error)
}

// EncodeDraft serializes a draft without its certificate.
func EncodeDraft(draft model.DraftApplication) ([]byte, error) {
	data, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return data, nil
}

// DecodeDraft parses a stored draft, wrapping failures in ErrCorruptDraft.
func DecodeDraft(data []byte) (*model.DraftApplication, error) {
	var draft model.DraftApplication
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDraft, err)
	}
	return &draft, nil
}

// FindSubmission returns the record with the given id from a list.
func FindSubmission(apps []model.SubmittedApplication, id string) (model.SubmittedApplication, error) {
	for _, app := range apps {
		if app.ID == id {
			return app, nil
		}
	}
	return model.SubmittedApplication{}, ErrNotFound
}
