// Package server exposes the license wizard over HTTP. One wizard backs the
// whole process, matching the single draft slot of the store.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharsanguruparan/DogLicense/internal/certificate"
	"github.com/dharsanguruparan/DogLicense/internal/config"
	"github.com/dharsanguruparan/DogLicense/internal/log"
	"github.com/dharsanguruparan/DogLicense/internal/metrics"
	"github.com/dharsanguruparan/DogLicense/internal/review"
	"github.com/dharsanguruparan/DogLicense/internal/signing"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
	"github.com/dharsanguruparan/DogLicense/internal/validation"
	"github.com/dharsanguruparan/DogLicense/internal/wizard"
)

const downloadPath = "/certificates/download"

// Deps are the collaborators of a Server. Reviews and Dispatcher are optional.
type Deps struct {
	Store      storage.Store
	Blobs      certificate.BlobStore
	Reviews    review.Store
	Dispatcher wizard.Dispatcher
	Signer     *signing.Signer
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg      *config.Config
	deps     Deps
	mu       sync.Mutex
	wizard   *wizard.Wizard
	recorder *recorder
	server   *http.Server
	once     sync.Once
}

// New builds the server and restores the stored draft into its wizard.
func New(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	rec := &recorder{}
	opts := []wizard.Option{
		wizard.WithRules(validation.NewRules(
			validation.WithCertificateLimits(cfg.MaxCertificateSize, cfg.AllowedTypes),
		)),
		wizard.WithNotifier(rec),
		wizard.WithNavigator(rec),
		wizard.WithMetrics(deps.Metrics),
		wizard.WithRedirect(cfg.TrackingPath, cfg.RedirectDelay),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, wizard.WithDispatcher(deps.Dispatcher))
	}
	w := wizard.New(deps.Store, opts...)
	w.Restore(ctx)
	return &Server{cfg: cfg, deps: deps, wizard: w, recorder: rec}
}

// Run serves HTTP until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Infof("doglicense listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/wizard", func(r chi.Router) {
			r.Get("/", s.handleWizard)
			r.Put("/fields/{field}", s.handleSetField)
			r.Post("/certificate", s.handleCertificate)
			r.Post("/next", s.handleNext)
			r.Post("/back", s.handleBack)
			r.Post("/submit", s.handleSubmit)
		})
		r.Get("/applications", s.handleApplications)
	})
	r.Get(s.trackingRoute(), s.handleTrack)
	r.Get(downloadPath, s.handleDownload)
	return r
}

// trackingRoute mounts tracking at the configured path when it is local.
func (s *Server) trackingRoute() string {
	p := s.cfg.TrackingPath
	if p == "" || p[0] != '/' {
		return wizard.DefaultTrackingPath
	}
	return p
}

type recorder struct {
	notes    []wizard.Notification
	redirect *redirect
}

type redirect struct {
	URL     string `json:"url"`
	AfterMs int64  `json:"afterMs"`
}

func (r *recorder) Notify(n wizard.Notification) {
	r.notes = append(r.notes, n)
}

func (r *recorder) Navigate(url string, after time.Duration) {
	r.redirect = &redirect{URL: url, AfterMs: after.Milliseconds()}
}

func (r *recorder) drain() ([]wizard.Notification, *redirect) {
	notes, rd := r.notes, r.redirect
	r.notes, r.redirect = nil, nil
	return notes, rd
}
