// Package storagetest holds the behavior every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
)

// StoreSuite exercises a storage.Store. NewStore must return an empty store;
// CorruptDraft must put undecodable bytes in the draft slot. Both receive the
// running test.
type StoreSuite struct {
	suite.Suite
	NewStore     func(t *testing.T) storage.Store
	CorruptDraft func(t *testing.T, s storage.Store)

	store storage.Store
}

func (s *StoreSuite) SetupTest() {
	s.store = s.NewStore(s.T())
}

func Draft() model.DraftApplication {
	return model.DraftApplication{
		OwnerName:      "Jane Doe",
		OwnerAddress:   "123 Main St, Springfield, IL 62701",
		OwnerPhone:     "(555) 123-4567",
		DogName:        "Rex",
		DogBreed:       "Labrador",
		DogAge:         "4",
		DogColor:       "Black",
		LastRabiesShot: "2025-06-01",
	}
}

func Submission(id string) model.SubmittedApplication {
	d := Draft()
	d.Certificate = &model.Certificate{Name: "rabies.pdf", Size: 1024, ContentType: "application/pdf", ObjectKey: "certificates/x/rabies.pdf"}
	return model.NewSubmission(id, d, time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC))
}

func (s *StoreSuite) TestDraftRoundTrip() {
	ctx := context.Background()

	got, err := s.store.LoadDraft(ctx)
	s.Require().NoError(err)
	s.Nil(got, "empty store has no draft")

	draft := Draft()
	draft.Certificate = &model.Certificate{Name: "rabies.pdf", Size: 10, Inspected: true}
	s.Require().NoError(s.store.SaveDraft(ctx, draft))

	got, err = s.store.LoadDraft(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Nil(got.Certificate, "certificate is never persisted with the draft")
	draft.Certificate = nil
	s.Equal(draft, *got)
}

func (s *StoreSuite) TestDraftOverwrite() {
	ctx := context.Background()
	first := Draft()
	s.Require().NoError(s.store.SaveDraft(ctx, first))
	second := Draft()
	second.DogName = "Fido"
	s.Require().NoError(s.store.SaveDraft(ctx, second))

	got, err := s.store.LoadDraft(ctx)
	s.Require().NoError(err)
	s.Equal("Fido", got.DogName)
}

func (s *StoreSuite) TestClearDraft() {
	ctx := context.Background()
	s.Require().NoError(s.store.SaveDraft(ctx, Draft()))
	s.Require().NoError(s.store.ClearDraft(ctx))

	got, err := s.store.LoadDraft(ctx)
	s.Require().NoError(err)
	s.Nil(got)

	s.Require().NoError(s.store.ClearDraft(ctx), "clearing an empty slot is not an error")
}

func (s *StoreSuite) TestCorruptDraft() {
	if s.CorruptDraft == nil {
		s.T().Skip("backend cannot hold undecodable drafts")
	}
	s.CorruptDraft(s.T(), s.store)
	got, err := s.store.LoadDraft(context.Background())
	s.Nil(got)
	s.Require().ErrorIs(err, storage.ErrCorruptDraft)
}

func (s *StoreSuite) TestSubmissions() {
	ctx := context.Background()

	list, err := s.store.ListSubmissions(ctx)
	s.Require().NoError(err)
	s.Empty(list)

	s.Require().NoError(s.store.AppendSubmission(ctx, Submission("DOG-1-1")))
	s.Require().NoError(s.store.AppendSubmission(ctx, Submission("DOG-2-2")))

	list, err = s.store.ListSubmissions(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("DOG-1-1", list[0].ID)
	s.Equal("DOG-2-2", list[1].ID)
	s.Equal(model.StatusSubmitted, list[0].Status)
	s.Require().NotNil(list[0].Certificate)
	s.Equal("certificates/x/rabies.pdf", list[0].Certificate.ObjectKey)
	s.True(list[0].SubmittedAt.Equal(Submission("DOG-1-1").SubmittedAt))

	got, err := s.store.GetSubmission(ctx, "DOG-2-2")
	s.Require().NoError(err)
	s.Equal("Rex", got.DogName)

	_, err = s.store.GetSubmission(ctx, "DOG-404-0")
	s.Require().ErrorIs(err, storage.ErrNotFound)
}

func (s *StoreSuite) TestConcurrentAppendsAreNotLost() {
	ctx := context.Background()
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.store.AppendSubmission(ctx, Submission(fmt.Sprintf("DOG-%d-0", i)))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}
	list, err := s.store.ListSubmissions(ctx)
	s.Require().NoError(err)
	s.Len(list, n)
}
