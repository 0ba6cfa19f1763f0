package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/dharsanguruparan/DogLicense/internal/certificate"
	"github.com/dharsanguruparan/DogLicense/internal/log"
	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/review"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
	"github.com/dharsanguruparan/DogLicense/internal/validation"
	"github.com/dharsanguruparan/DogLicense/internal/wizard"
)

// multipartOverhead is the body allowance on top of the certificate limit for
// multipart framing and other form parts.
const multipartOverhead = 64 << 10

type wizardState struct {
	Step          wizard.Step                 `json:"step"`
	StepName      string                      `json:"stepName"`
	Draft         model.DraftApplication      `json:"draft"`
	Certificate   *model.Certificate          `json:"vaccinationFile,omitempty"`
	Errors        validation.Errors           `json:"errors,omitempty"`
	Notifications []wizard.Notification       `json:"notifications,omitempty"`
	Application   *model.SubmittedApplication `json:"application,omitempty"`
	Redirect      *redirect                   `json:"redirect,omitempty"`
}

type trackingView struct {
	Application    model.SubmittedApplication `json:"application"`
	Review         *model.CertificateReview   `json:"review,omitempty"`
	CertificateURL string                     `json:"certificateUrl,omitempty"`
}

type fieldUpdate struct {
	Value string `json:"value"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respondState(w, r, http.StatusOK, nil)
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	field := model.Field(chi.URLParam(r, "field"))
	var body fieldUpdate
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wizard.Set(r.Context(), field, body.Value); err != nil {
		if errors.Is(err, wizard.ErrUnknownField) {
			respondError(w, r, http.StatusNotFound, err.Error())
			return
		}
		s.recorder.drain()
		respondError(w, r, http.StatusInternalServerError, "failed to save draft")
		return
	}
	status := http.StatusOK
	if _, bad := s.wizard.Errors()[field]; bad {
		status = http.StatusUnprocessableEntity
	}
	s.respondState(w, r, status, nil)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := s.cfg.MaxCertificateSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()

	up, err := certificate.Receive(part, part.FileName(), limit)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		log.Warnf("receive certificate: %v", err)
		respondError(w, r, http.StatusBadRequest, "failed to read upload")
		return
	}
	defer up.Close()

	cert := up.Certificate()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard.Rules().Certificate(&cert) == "" {
		cert, err = up.Store(ctx, s.deps.Blobs)
		if err != nil {
			log.Errorf("store certificate: %v", err)
			respondError(w, r, http.StatusInternalServerError, "failed to store certificate")
			return
		}
	}
	status := http.StatusOK
	if msg := s.wizard.AttachCertificate(cert); msg != "" {
		status = http.StatusUnprocessableEntity
	}
	s.respondState(w, r, status, nil)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := http.StatusOK
	if !s.wizard.Next(r.Context()) && s.wizard.Step() != wizard.LastStep {
		status = http.StatusUnprocessableEntity
	}
	s.respondState(w, r, status, nil)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wizard.Back()
	s.respondState(w, r, http.StatusOK, nil)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, err := s.wizard.Submit(r.Context())
	switch {
	case err == nil:
		s.respondState(w, r, http.StatusCreated, &app)
	case errors.Is(err, wizard.ErrNotFinalStep):
		s.respondState(w, r, http.StatusConflict, nil)
	default:
		if _, ok := validation.AsErrors(err); ok {
			s.respondState(w, r, http.StatusUnprocessableEntity, nil)
			return
		}
		s.respondState(w, r, http.StatusInternalServerError, nil)
	}
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := s.deps.Store.ListSubmissions(r.Context())
	if err != nil {
		log.Errorf("list submissions: %v", err)
		respondError(w, r, http.StatusInternalServerError, "failed to list applications")
		return
	}
	if apps == nil {
		apps = []model.SubmittedApplication{}
	}
	render.JSON(w, r, apps)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("id")
	if id == "" {
		respondError(w, r, http.StatusBadRequest, "missing id")
		return
	}
	app, err := s.deps.Store.GetSubmission(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "application not found")
			return
		}
		log.Errorf("get submission %s: %v", id, err)
		respondError(w, r, http.StatusInternalServerError, "failed to load application")
		return
	}
	view := trackingView{Application: app}
	if s.deps.Reviews != nil {
		rv, err := s.deps.Reviews.Get(ctx, id)
		switch {
		case err == nil:
			view.Review = rv
		case !errors.Is(err, review.ErrNotFound):
			log.Warnf("get review %s: %v", id, err)
		}
	}
	if app.Certificate != nil && app.Certificate.ObjectKey != "" {
		view.CertificateURL = s.certificateURL(r, app.Certificate.ObjectKey)
	}
	render.JSON(w, r, view)
}

// presigner is implemented by blob stores that can hand out their own
// time-limited download links.
type presigner interface {
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func (s *Server) certificateURL(r *http.Request, key string) string {
	if p, ok := s.deps.Blobs.(presigner); ok {
		u, err := p.PresignURL(r.Context(), key, s.cfg.SignedURLTTL)
		if err == nil {
			return u
		}
		log.Warnf("presign certificate %s: %v", key, err)
	}
	if s.deps.Signer == nil {
		return ""
	}
	return s.deps.Signer.URL(downloadPath, key, s.cfg.SignedURLTTL)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, expires, signature := q.Get("key"), q.Get("expires"), q.Get("signature")
	if key == "" || expires == "" || signature == "" {
		respondError(w, r, http.StatusBadRequest, "missing parameters")
		return
	}
	if s.deps.Signer == nil || !s.deps.Signer.Validate(key, expires, signature) {
		respondError(w, r, http.StatusUnauthorized, "invalid or expired signature")
		return
	}
	data, err := s.deps.Blobs.Read(r.Context(), key)
	if err != nil {
		log.Warnf("read certificate %s: %v", key, err)
		respondError(w, r, http.StatusNotFound, "certificate not found")
		return
	}
	name := path.Base(key)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

// respondState writes the wizard state with the notifications and redirect
// gathered during the request. The caller holds s.mu.
func (s *Server) respondState(w http.ResponseWriter, r *http.Request, status int, app *model.SubmittedApplication) {
	notes, rd := s.recorder.drain()
	draft := s.wizard.Draft()
	render.Status(r, status)
	render.JSON(w, r, wizardState{
		Step:          s.wizard.Step(),
		StepName:      s.wizard.Step().String(),
		Draft:         draft,
		Certificate:   draft.Certificate,
		Errors:        s.wizard.Errors(),
		Notifications: notes,
		Application:   app,
		Redirect:      rd,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing file part")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}
