package review

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/DogLicense/internal/model"
)

// MemoryStore keeps reviews in a map guarded by an RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	reviews map[string]*model.CertificateReview
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reviews: make(map[string]*model.CertificateReview),
	}
}

func (m *MemoryStore) Create(_ context.Context, applicationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	m.reviews[applicationID] = &model.CertificateReview{
		ApplicationID: applicationID,
		Status:        model.ReviewQueued,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return nil
}

// Get returns a copy of the review.
func (m *MemoryStore) Get(_ context.Context, applicationID string) (*model.CertificateReview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rv, ok := m.reviews[applicationID]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *rv
	return &copy, nil
}

func (m *MemoryStore) MarkProcessing(_ context.Context, applicationID string) error {
	return m.update(applicationID, model.ReviewProcessing, "processing started", nil)
}

func (m *MemoryStore) MarkFailed(_ context.Context, applicationID, msg string) error {
	return m.update(applicationID, model.ReviewFailed, msg, nil)
}

func (m *MemoryStore) MarkComplete(_ context.Context, applicationID, text string) error {
	return m.update(applicationID, model.ReviewComplete, "review finished", &text)
}

func (m *MemoryStore) update(applicationID string, status model.ReviewStatus, msg string, text *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv, ok := m.reviews[applicationID]
	if !ok {
		return ErrNotFound
	}
	rv.Status = status
	rv.Message = msg
	if text != nil {
		rv.Text = *text
	}
	rv.UpdatedAt = time.Now().UTC()
	return nil
}
