package storage

import (
	"context"
	"sync"

	"github.com/dharsanguruparan/DogLicense/internal/model"
)

// MemoryStore keeps the draft as raw JSON and the submissions in a slice
// guarded by an RWMutex. It backs tests and the ephemeral server mode.
type MemoryStore struct {
	mu          sync.RWMutex
	draft       []byte
	submissions []model.SubmittedApplication
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LoadDraft(_ context.Context) (*model.DraftApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.draft == nil {
		return nil, nil
	}
	return DecodeDraft(m.draft)
}

func (m *MemoryStore) SaveDraft(_ context.Context, draft model.DraftApplication) error {
	data, err := EncodeDraft(draft)
	if err != nil {
		return err
	}
	m.PutRawDraft(data)
	return nil
}

// PutRawDraft stores bytes in the draft slot as-is.
func (m *MemoryStore) PutRawDraft(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = append([]byte(nil), data...)
}

func (m *MemoryStore) ClearDraft(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = nil
	return nil
}

func (m *MemoryStore) AppendSubmission(_ context.Context, app model.SubmittedApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, app)
	return nil
}

// ListSubmissions returns a copy so callers cannot mutate stored records.
func (m *MemoryStore) ListSubmissions(_ context.Context) ([]model.SubmittedApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.SubmittedApplication{}, m.submissions...), nil
}

func (m *MemoryStore) GetSubmission(_ context.Context, id string) (model.SubmittedApplication, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FindSubmission(m.submissions, id)
}
