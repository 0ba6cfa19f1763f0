package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/dharsanguruparan/DogLicense/internal/certificate"
	"github.com/dharsanguruparan/DogLicense/internal/config"
	"github.com/dharsanguruparan/DogLicense/internal/metrics"
	"github.com/dharsanguruparan/DogLicense/internal/model"
	pdfutil "github.com/dharsanguruparan/DogLicense/internal/pdf"
	"github.com/dharsanguruparan/DogLicense/internal/processing"
	"github.com/dharsanguruparan/DogLicense/internal/review"
	"github.com/dharsanguruparan/DogLicense/internal/signing"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
	"github.com/dharsanguruparan/DogLicense/internal/validation"
	"github.com/dharsanguruparan/DogLicense/internal/wizard"
)

var pngCertificate = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x42}, 4096)...)

type stateResponse struct {
	Step          int                         `json:"step"`
	StepName      string                      `json:"stepName"`
	Draft         model.DraftApplication      `json:"draft"`
	Certificate   *model.Certificate          `json:"vaccinationFile"`
	Errors        map[string]string           `json:"errors"`
	Notifications []wizard.Notification       `json:"notifications"`
	Application   *model.SubmittedApplication `json:"application"`
	Redirect      *redirect                   `json:"redirect"`
}

type ServerSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	store   *storage.MemoryStore
	reviews *review.MemoryStore
	blobs   *certificate.DirStore
	reg     *prometheus.Registry
	handler http.Handler
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cfg = &config.Config{
		MaxCertificateSize: validation.DefaultMaxCertificateSize,
		AllowedTypes:       validation.DefaultAllowedTypes,
		SignedURLTTL:       time.Minute,
		TrackingPath:       "/track",
		RedirectDelay:      2 * time.Second,
	}
	s.store = storage.NewMemoryStore()
	s.reviews = review.NewMemoryStore()
	blobs, err := certificate.NewDirStore(s.T().TempDir())
	s.Require().NoError(err)
	s.blobs = blobs
	s.handler = s.newHandler()
}

func (s *ServerSuite) TearDownTest() {
	s.cancel()
}

func (s *ServerSuite) newHandler() http.Handler {
	s.reg = prometheus.NewRegistry()
	proc := processing.New(review.NewReviewer(s.reviews, s.blobs, pdfutil.ExtractText), 1)
	proc.Start(s.ctx)
	srv := New(s.ctx, s.cfg, Deps{
		Store:      s.store,
		Blobs:      s.blobs,
		Reviews:    s.reviews,
		Dispatcher: proc,
		Signer:     signing.NewSigner([]byte("test-secret")),
		Metrics:    metrics.New(s.reg),
		Gatherer:   s.reg,
	})
	return srv.Handler()
}

func (s *ServerSuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) upload(name string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile("file", name)
	s.Require().NoError(err)
	_, err = fw.Write(data)
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/wizard/certificate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) state(rec *httptest.ResponseRecorder) stateResponse {
	var out stateResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *ServerSuite) setField(field model.Field, value string) *httptest.ResponseRecorder {
	return s.do(http.MethodPut, "/api/wizard/fields/"+string(field), map[string]string{"value": value})
}

func (s *ServerSuite) fill(values map[model.Field]string) {
	for f, v := range values {
		rec := s.setField(f, v)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	}
}

func (s *ServerSuite) next(want int) stateResponse {
	rec := s.do(http.MethodPost, "/api/wizard/next", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	st := s.state(rec)
	s.Require().Equal(want, st.Step)
	return st
}

func (s *ServerSuite) toReview() {
	s.fill(map[model.Field]string{
		model.FieldOwnerName:    "Jane Doe",
		model.FieldOwnerAddress: "123 Main St, Springfield, IL 62701",
		model.FieldOwnerPhone:   "(555) 123-4567",
	})
	s.next(2)
	s.fill(map[model.Field]string{
		model.FieldDogName:  "Rex",
		model.FieldDogBreed: "Labrador",
		model.FieldDogAge:   "4",
		model.FieldDogColor: "Black",
	})
	s.next(3)
	s.fill(map[model.Field]string{
		model.FieldLastRabiesShot: time.Now().AddDate(-1, 0, 0).Format("2006-01-02"),
	})
	rec := s.upload("rabies.png", pngCertificate)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.next(4)
}

func (s *ServerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *ServerSuite) TestEndToEnd() {
	s.toReview()

	rec := s.do(http.MethodPost, "/api/wizard/submit", nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	st := s.state(rec)
	s.Require().NotNil(st.Application)
	id := st.Application.ID
	s.Regexp(`^DOG-\d+-\d+$`, id)
	s.Equal(1, st.Step)
	s.Equal(model.DraftApplication{}, st.Draft)
	s.Require().Len(st.Notifications, 1)
	s.Equal(wizard.LevelSuccess, st.Notifications[0].Level)
	s.Contains(st.Notifications[0].Message, id)
	s.Require().NotNil(st.Redirect)
	s.Equal("/track?id="+url.QueryEscape(id), st.Redirect.URL)
	s.EqualValues(2000, st.Redirect.AfterMs)

	rec = s.do(http.MethodGet, "/api/applications", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var apps []model.SubmittedApplication
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &apps))
	s.Require().Len(apps, 1)
	s.Equal(id, apps[0].ID)
	s.Equal("image/png", apps[0].Certificate.ContentType)

	var view trackingView
	s.Eventually(func() bool {
		rec := s.do(http.MethodGet, st.Redirect.URL, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		view = trackingView{}
		if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
			return false
		}
		return view.Review != nil && view.Review.Status == model.ReviewComplete
	}, 2*time.Second, 10*time.Millisecond)
	s.Equal(id, view.Application.ID)
	s.Require().NotEmpty(view.CertificateURL)

	rec = s.do(http.MethodGet, view.CertificateURL, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(pngCertificate, rec.Body.Bytes())
	s.Equal("image/png", rec.Header().Get("Content-Type"))
}

func (s *ServerSuite) TestInvalidFieldIsReportedInline() {
	rec := s.setField(model.FieldOwnerPhone, "123")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	st := s.state(rec)
	s.Contains(st.Errors, "ownerPhone")
	s.Equal("123", st.Draft.OwnerPhone)
}

func (s *ServerSuite) TestUnknownField() {
	rec := s.setField(model.Field("favoriteToy"), "ball")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestMalformedBody() {
	req := httptest.NewRequest(http.MethodPut, "/api/wizard/fields/ownerName", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestNextBlocked() {
	rec := s.do(http.MethodPost, "/api/wizard/next", nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	st := s.state(rec)
	s.Equal(1, st.Step)
	s.Contains(st.Errors, "ownerName")
	s.Require().Len(st.Notifications, 1)
	s.Equal(wizard.LevelError, st.Notifications[0].Level)
}

func (s *ServerSuite) TestBack() {
	s.fill(map[model.Field]string{
		model.FieldOwnerName:    "Jane Doe",
		model.FieldOwnerAddress: "123 Main St, Springfield, IL 62701",
		model.FieldOwnerPhone:   "5551234567",
	})
	s.next(2)
	rec := s.do(http.MethodPost, "/api/wizard/back", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(1, s.state(rec).Step)
	rec = s.do(http.MethodPost, "/api/wizard/back", nil)
	s.Equal(1, s.state(rec).Step)
}

func (s *ServerSuite) TestSubmitBeforeReview() {
	rec := s.do(http.MethodPost, "/api/wizard/submit", nil)
	s.Equal(http.StatusConflict, rec.Code)
	apps, err := s.store.ListSubmissions(s.ctx)
	s.Require().NoError(err)
	s.Empty(apps)
}

func (s *ServerSuite) TestCertificateWrongType() {
	rec := s.upload("rabies.pdf", []byte("plain text pretending to be a pdf"))
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	st := s.state(rec)
	s.Contains(st.Errors, "vaccinationFile")
	s.Require().NotNil(st.Certificate)
	s.Empty(st.Certificate.ObjectKey)
}

func (s *ServerSuite) TestCertificateTooLarge() {
	s.cfg.MaxCertificateSize = 1024
	s.handler = s.newHandler()
	rec := s.upload("rabies.png", pngCertificate)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	st := s.state(rec)
	s.Contains(st.Errors["vaccinationFile"], "File size must be less than")
}

func (s *ServerSuite) TestCertificateMissingPart() {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("note", "no file"))
	s.Require().NoError(mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/wizard/certificate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestRestoresDraftOnStart() {
	s.Require().NoError(s.store.SaveDraft(s.ctx, model.DraftApplication{OwnerName: "Jane Doe", DogName: "Rex"}))
	s.handler = s.newHandler()
	rec := s.do(http.MethodGet, "/api/wizard", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	st := s.state(rec)
	s.Equal("Jane Doe", st.Draft.OwnerName)
	s.Equal("Rex", st.Draft.DogName)
	s.Equal("owner", st.StepName)
}

func (s *ServerSuite) TestCorruptDraftOnStart() {
	s.store.PutRawDraft([]byte("not json"))
	s.handler = s.newHandler()
	rec := s.do(http.MethodGet, "/api/wizard", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(model.DraftApplication{}, s.state(rec).Draft)
}

func (s *ServerSuite) TestTrack() {
	rec := s.do(http.MethodGet, "/track", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodGet, "/track?id=DOG-1-1", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestDownloadRejectsBadSignature() {
	rec := s.do(http.MethodGet, "/certificates/download?key=certificates/x/y.png&expires=9999999999&signature=bad", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodGet, "/certificates/download?key=certificates/x/y.png", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerSuite) TestMetrics() {
	s.setField(model.FieldDogAge, "31")
	rec := s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "doglicense_submissions_total")
	s.Contains(rec.Body.String(), `doglicense_validation_failures_total{field="dogAge"} 1`)
}
