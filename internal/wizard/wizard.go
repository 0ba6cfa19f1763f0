// Package wizard drives the four-step dog license application: step gating,
// inline validation, draft autosave and submission.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/dharsanguruparan/DogLicense/internal/log"
	"github.com/dharsanguruparan/DogLicense/internal/metrics"
	"github.com/dharsanguruparan/DogLicense/internal/model"
	"github.com/dharsanguruparan/DogLicense/internal/storage"
	"github.com/dharsanguruparan/DogLicense/internal/validation"
)

var (
	// ErrUnknownField is returned by Set for names that are not text fields.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotFinalStep is returned by Submit before the review step.
	ErrNotFinalStep = errors.New("submit is only allowed on the review step")
)

const (
	DefaultRedirectDelay = 2 * time.Second
	DefaultTrackingPath  = "/track"
)

// Dispatcher hands a stored application to certificate review.
type Dispatcher interface {
	Dispatch(ctx context.Context, app model.SubmittedApplication) error
}

// Wizard holds the state of one application form. It is not safe for
// concurrent use.
type Wizard struct {
	store         storage.Store
	rules         *validation.Rules
	now           func() time.Time
	newID         func(time.Time) string
	notifier      Notifier
	navigator     Navigator
	dispatcher    Dispatcher
	metrics       *metrics.Metrics
	redirectDelay time.Duration
	trackingPath  string

	step  Step
	draft model.DraftApplication
	errs  validation.Errors
}

// Option customises a Wizard.
type Option func(*Wizard)

func WithRules(r *validation.Rules) Option {
	return func(w *Wizard) { w.rules = r }
}

func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

func WithIDGenerator(gen func(time.Time) string) Option {
	return func(w *Wizard) { w.newID = gen }
}

func WithNotifier(n Notifier) Option {
	return func(w *Wizard) { w.notifier = n }
}

func WithNavigator(n Navigator) Option {
	return func(w *Wizard) { w.navigator = n }
}

// WithDispatcher enables certificate review of stored applications.
func WithDispatcher(d Dispatcher) Option {
	return func(w *Wizard) { w.dispatcher = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Wizard) { w.metrics = m }
}

// WithRedirect sets the tracking route and the delay before navigating to it.
func WithRedirect(trackingPath string, delay time.Duration) Option {
	return func(w *Wizard) {
		if trackingPath != "" {
			w.trackingPath = trackingPath
		}
		if delay >= 0 {
			w.redirectDelay = delay
		}
	}
}

// New builds a wizard on step 1 with an empty draft. Call Restore to prime it
// from the store.
func New(store storage.Store, opts ...Option) *Wizard {
	w := &Wizard{
		store:         store,
		now:           time.Now,
		newID:         NewID,
		notifier:      discard{},
		navigator:     discard{},
		redirectDelay: DefaultRedirectDelay,
		trackingPath:  DefaultTrackingPath,
		step:          FirstStep,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.rules == nil {
		w.rules = validation.NewRules(validation.WithClock(w.now))
	}
	return w
}

// NewID formats an application identifier from the submission time and a
// random suffix in [0, 9999]. Uniqueness is probabilistic only.
func NewID(at time.Time) string {
	return fmt.Sprintf("DOG-%d-%d", at.UnixMilli(), rand.Intn(10000))
}

// Restore loads the stored draft. A missing or unreadable draft leaves the
// form empty; read failures are logged, never returned.
func (w *Wizard) Restore(ctx context.Context) {
	w.reset()
	draft, err := w.store.LoadDraft(ctx)
	if err != nil {
		log.Warnf("restore draft: %v", err)
		return
	}
	if draft == nil {
		return
	}
	draft.Certificate = nil
	w.draft = *draft
	log.Debugf("restored draft for %q", w.draft.OwnerName)
}

func (w *Wizard) Step() Step {
	return w.step
}

// Draft returns a copy of the current form values.
func (w *Wizard) Draft() model.DraftApplication {
	d := w.draft
	if d.Certificate != nil {
		c := *d.Certificate
		d.Certificate = &c
	}
	return d
}

// Errors returns a copy of the inline field errors.
func (w *Wizard) Errors() validation.Errors {
	if len(w.errs) == 0 {
		return nil
	}
	out := make(validation.Errors, len(w.errs))
	for f, msg := range w.errs {
		out[f] = msg
	}
	return out
}

// Rules exposes the validation rules used by the wizard.
func (w *Wizard) Rules() *validation.Rules {
	return w.rules
}

// TrackingURL returns the tracking route for an application id.
func (w *Wizard) TrackingURL(id string) string {
	return w.trackingPath + "?id=" + url.QueryEscape(id)
}

// Set changes a text field, refreshes its inline error and saves the draft.
// The new value is kept even when saving fails.
func (w *Wizard) Set(ctx context.Context, field model.Field, value string) error {
	if !w.draft.Set(field, value) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	w.check(field)
	if err := w.store.SaveDraft(ctx, w.draft); err != nil {
		log.Warnf("autosave draft: %v", err)
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// AttachCertificate sets the vaccination certificate and reports its inline
// error, if any. Certificates are never part of the saved draft.
func (w *Wizard) AttachCertificate(cert model.Certificate) string {
	w.draft.Certificate = &cert
	return w.check(model.FieldCertificate)
}

// Next advances one step when the current step's fields are valid. On failure
// the step stays put, the errors are recorded and the user is notified.
func (w *Wizard) Next(_ context.Context) bool {
	fields := w.step.Fields()
	errs := w.rules.Check(&w.draft, fields...)
	for _, f := range fields {
		delete(w.errs, f)
	}
	if len(errs) > 0 {
		w.record(errs)
		w.notifier.Notify(Notification{
			Level:   LevelError,
			Title:   "Validation Error",
			Message: "Please fix the errors before continuing.",
		})
		return false
	}
	if w.step == LastStep {
		return false
	}
	w.step++
	return true
}

// Back moves one step back. It never fails.
func (w *Wizard) Back() {
	w.step = clamp(w.step - 1)
}

// Submit validates the whole form, stores the application, clears the draft
// and resets the wizard. When the application cannot be stored the draft is
// preserved and a generic failure notification is sent. Once stored, the
// submission succeeds even if the draft cannot be cleared.
func (w *Wizard) Submit(ctx context.Context) (model.SubmittedApplication, error) {
	if w.step != LastStep {
		return model.SubmittedApplication{}, ErrNotFinalStep
	}
	if errs := w.rules.Check(&w.draft, AllFields()...); len(errs) > 0 {
		w.errs = nil
		w.record(errs)
		w.notifier.Notify(Notification{
			Level:   LevelError,
			Title:   "Validation Error",
			Message: "Please review the application before submitting.",
		})
		return model.SubmittedApplication{}, errs
	}
	defer w.metrics.ObserveSubmit(time.Now())

	at := w.now()
	app := model.NewSubmission(w.newID(at), w.draft, at)
	if err := w.store.AppendSubmission(ctx, app); err != nil {
		return model.SubmittedApplication{}, w.failSubmit(fmt.Errorf("append submission: %w", err))
	}
	// the record is stored; a stale draft must not turn into a retry
	if err := w.store.ClearDraft(ctx); err != nil {
		log.Warnf("clear draft after submitting %s: %v", app.ID, err)
	}
	w.metrics.IncrementSubmissions()
	log.With(log.Fields{"id": app.ID, "dog": app.DogName}).Info("application submitted")

	w.notifier.Notify(Notification{
		Level:   LevelSuccess,
		Title:   "Application Submitted!",
		Message: "Your application ID is " + app.ID,
	})
	w.reset()
	w.navigator.Navigate(w.TrackingURL(app.ID), w.redirectDelay)

	if w.dispatcher != nil {
		if err := w.dispatcher.Dispatch(ctx, app); err != nil {
			log.Warnf("dispatch certificate review for %s: %v", app.ID, err)
		}
	}
	return app, nil
}

func (w *Wizard) failSubmit(err error) error {
	w.metrics.IncrementSubmissionFailures()
	log.Errorf("submit application: %v", err)
	w.notifier.Notify(Notification{
		Level:   LevelError,
		Title:   "Submission Failed",
		Message: "There was an error submitting your application. Please try again.",
	})
	return err
}

func (w *Wizard) check(f model.Field) string {
	msg := w.rules.Field(&w.draft, f)
	if msg == "" {
		delete(w.errs, f)
		return ""
	}
	w.record(validation.Errors{f: msg})
	return msg
}

func (w *Wizard) record(errs validation.Errors) {
	if w.errs == nil {
		w.errs = validation.Errors{}
	}
	for f, msg := range errs {
		w.errs[f] = msg
		w.metrics.IncrementValidationFailure(f)
	}
}

func (w *Wizard) reset() {
	w.step = FirstStep
	w.draft = model.DraftApplication{}
	w.errs = nil
}
