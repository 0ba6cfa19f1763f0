package review

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/dharsanguruparan/DogLicense/internal/metrics"
	"github.com/dharsanguruparan/DogLicense/internal/model"
)

type blobMap map[string][]byte

func (b blobMap) Read(_ context.Context, key string) ([]byte, error) {
	data, ok := b[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

type ReviewerSuite struct {
	suite.Suite
	store    *MemoryStore
	metrics  *metrics.Metrics
	reviewer *Reviewer
	ctx      context.Context
}

func TestReviewerSuite(t *testing.T) {
	suite.Run(t, new(ReviewerSuite))
}

func (s *ReviewerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewMemoryStore()
	blobs := blobMap{
		"certificates/a/rabies.pdf": []byte("%PDF-1.4 fake"),
		"certificates/b/rabies.png": []byte("\x89PNG\r\n\x1a\n"),
		"certificates/c/broken.pdf": []byte("%PDF-1.4 broken"),
	}
	extract := func(data []byte) (string, error) {
		if string(data) == "%PDF-1.4 broken" {
			return "", errors.New("malformed xref")
		}
		return "Rabies vaccine administered", nil
	}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.reviewer = NewReviewer(s.store, blobs, extract).WithMetrics(s.metrics)
}

func (s *ReviewerSuite) review(job Job) (*model.CertificateReview, error) {
	s.Require().NoError(s.store.Create(s.ctx, job.ApplicationID))
	err := s.reviewer.Review(s.ctx, job)
	rv, getErr := s.store.Get(s.ctx, job.ApplicationID)
	s.Require().NoError(getErr)
	return rv, err
}

func (s *ReviewerSuite) TestPDFCompletesWithText() {
	rv, err := s.review(Job{ApplicationID: "DOG-1-1", ObjectKey: "certificates/a/rabies.pdf", ContentType: "application/pdf"})
	s.Require().NoError(err)
	s.Equal(model.ReviewComplete, rv.Status)
	s.Equal("Rabies vaccine administered", rv.Text)
}

func (s *ReviewerSuite) TestImageCompletesWithoutText() {
	rv, err := s.review(Job{ApplicationID: "DOG-2-2", ObjectKey: "certificates/b/rabies.png", ContentType: "image/png"})
	s.Require().NoError(err)
	s.Equal(model.ReviewComplete, rv.Status)
	s.Empty(rv.Text)
}

func (s *ReviewerSuite) TestMissingBlobFails() {
	rv, err := s.review(Job{ApplicationID: "DOG-3-3", ObjectKey: "certificates/missing.pdf", ContentType: "application/pdf"})
	s.Require().Error(err)
	s.Equal(model.ReviewFailed, rv.Status)
	s.Contains(rv.Message, "read certificate")
}

func (s *ReviewerSuite) TestExtractionFailureFails() {
	rv, err := s.review(Job{ApplicationID: "DOG-4-4", ObjectKey: "certificates/c/broken.pdf", ContentType: "application/pdf"})
	s.Require().Error(err)
	s.Equal(model.ReviewFailed, rv.Status)
	s.Contains(rv.Message, "malformed xref")
}

func (s *ReviewerSuite) TestUnknownReview() {
	err := s.reviewer.Review(s.ctx, Job{ApplicationID: "DOG-404-0"})
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *ReviewerSuite) TestJobFor() {
	app := model.SubmittedApplication{ID: "DOG-5-5"}
	_, ok := JobFor(app)
	s.False(ok, "no certificate")

	app.Certificate = &model.Certificate{Name: "rabies.pdf", ContentType: "application/pdf"}
	_, ok = JobFor(app)
	s.False(ok, "certificate never stored")

	app.Certificate.ObjectKey = "certificates/x/rabies.pdf"
	job, ok := JobFor(app)
	s.Require().True(ok)
	s.Equal(Job{ApplicationID: "DOG-5-5", ObjectKey: "certificates/x/rabies.pdf", FileName: "rabies.pdf", ContentType: "application/pdf"}, job)
}

func (s *ReviewerSuite) TestDispatchRunsInline() {
	app := model.SubmittedApplication{
		ID:          "DOG-6-6",
		Certificate: &model.Certificate{Name: "rabies.pdf", ContentType: "application/pdf", ObjectKey: "certificates/a/rabies.pdf"},
	}
	s.Require().NoError(s.reviewer.Dispatch(s.ctx, app))
	rv, err := s.store.Get(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(model.ReviewComplete, rv.Status)

	s.Require().NoError(s.reviewer.Dispatch(s.ctx, model.SubmittedApplication{ID: "DOG-7-7"}))
	_, err = s.store.Get(s.ctx, "DOG-7-7")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ReviewerSuite) TestOutcomesAreCounted() {
	_, err := s.review(Job{ApplicationID: "DOG-8-8", ObjectKey: "certificates/b/rabies.png", ContentType: "image/png"})
	s.Require().NoError(err)
	_, err = s.review(Job{ApplicationID: "DOG-9-9", ObjectKey: "certificates/missing.pdf", ContentType: "application/pdf"})
	s.Require().Error(err)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Reviews.WithLabelValues("complete")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Reviews.WithLabelValues("failed")))
}
