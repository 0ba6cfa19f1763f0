package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dharsanguruparan/DogLicense/internal/model"
)

// Metrics tracks wizard submissions, validation failures and certificate
// reviews. A nil *Metrics records nothing.
type Metrics struct {
	Submissions        prometheus.Counter
	SubmissionFailures prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	SubmitDuration     prometheus.Histogram
	Reviews            *prometheus.CounterVec
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "doglicense_submissions_total",
			Help: "Total number of submitted license applications",
		}),
		SubmissionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "doglicense_submission_failures_total",
			Help: "Submissions that failed after validation passed",
		}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doglicense_validation_failures_total",
			Help: "Field validation failures by field",
		}, []string{"field"}),
		SubmitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "doglicense_submit_duration_seconds",
			Help:    "Duration of Submit operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		Reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "doglicense_certificate_reviews_total",
			Help: "Finished certificate reviews by outcome",
		}, []string{"status"}),
	}
}

// IncrementSubmissions records a stored application.
func (m *Metrics) IncrementSubmissions() {
	if m == nil {
		return
	}
	m.Submissions.Inc()
}

// IncrementSubmissionFailures records a submission that could not be stored.
func (m *Metrics) IncrementSubmissionFailures() {
	if m == nil {
		return
	}
	m.SubmissionFailures.Inc()
}

// IncrementValidationFailure records one failed field.
func (m *Metrics) IncrementValidationFailure(field model.Field) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(string(field)).Inc()
}

// ObserveSubmit records the duration of a Submit call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveSubmit(start time.Time) {
	if m == nil {
		return
	}
	m.SubmitDuration.Observe(time.Since(start).Seconds())
}

// IncrementReview records a finished review.
func (m *Metrics) IncrementReview(status model.ReviewStatus) {
	if m == nil {
		return
	}
	m.Reviews.WithLabelValues(string(status)).Inc()
}
