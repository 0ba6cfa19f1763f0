// Package validation holds the field rules of the license application.
package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dharsanguruparan/DogLicense/internal/model"
)

const (
	// DefaultMaxCertificateSize is the largest accepted certificate (5 MiB).
	DefaultMaxCertificateSize = 5 << 20
	// RabiesWindowYears bounds how old the last rabies shot may be.
	RabiesWindowYears = 3
	maxDogAge         = 30
)

// decimalNumber matches plain decimal notation. ParseFloat alone would also
// take hex floats, underscores and Inf.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// DefaultAllowedTypes are the certificate MIME types accepted by default.
var DefaultAllowedTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// Errors maps a field to its inline message. A nil or empty Errors means the
// checked fields are valid.
type Errors map[model.Field]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[model.Field(f)])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// AsErrors extracts field errors from err.
func AsErrors(err error) (Errors, bool) {
	var fe Errors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Rules evaluates fields against the configured limits. The zero value is
// not usable; build one with NewRules.
type Rules struct {
	maxCertificateSize int64
	allowedTypes       []string
	now                func() time.Time
}

// Option customises Rules.
type Option func(*Rules)

// WithClock overrides the time source used for the rabies window.
func WithClock(now func() time.Time) Option {
	return func(r *Rules) {
		if now != nil {
			r.now = now
		}
	}
}

// WithCertificateLimits overrides the certificate size cap and MIME types.
func WithCertificateLimits(maxSize int64, allowed []string) Option {
	return func(r *Rules) {
		if maxSize > 0 {
			r.maxCertificateSize = maxSize
		}
		if len(allowed) > 0 {
			r.allowedTypes = append([]string(nil), allowed...)
		}
	}
}

// NewRules builds Rules with the default limits.
func NewRules(opts ...Option) *Rules {
	r := &Rules{
		maxCertificateSize: DefaultMaxCertificateSize,
		allowedTypes:       DefaultAllowedTypes,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Check validates the listed fields of d and returns nil when all pass.
func (r *Rules) Check(d *model.DraftApplication, fields ...model.Field) Errors {
	var errs Errors
	for _, f := range fields {
		if msg := r.Field(d, f); msg != "" {
			if errs == nil {
				errs = Errors{}
			}
			errs[f] = msg
		}
	}
	return errs
}

// Field validates a single field and returns its message, or "" when valid.
func (r *Rules) Field(d *model.DraftApplication, f model.Field) string {
	switch f {
	case model.FieldCertificate:
		return r.Certificate(d.Certificate)
	case model.FieldOwnerName:
		return length(d.OwnerName, "Name", 2, 100)
	case model.FieldOwnerAddress:
		return length(d.OwnerAddress, "Address", 10, 200)
	case model.FieldOwnerPhone:
		if _, ok := NormalizePhone(d.OwnerPhone); !ok {
			return "Please enter a valid US phone number"
		}
		return ""
	case model.FieldDogName:
		return length(d.DogName, "Dog name", 1, 50)
	case model.FieldDogBreed:
		return length(d.DogBreed, "Breed", 1, 50)
	case model.FieldDogColor:
		return length(d.DogColor, "Color", 1, 30)
	case model.FieldDogAge:
		return dogAge(d.DogAge)
	case model.FieldLastRabiesShot:
		return r.rabiesDate(d.LastRabiesShot)
	}
	return fmt.Sprintf("unknown field %q", f)
}

// Certificate checks an attached certificate. Only certificates whose size and
// type were measured by intake are accepted.
func (r *Rules) Certificate(c *model.Certificate) string {
	if c == nil {
		return "Vaccination certificate is required"
	}
	if !c.Inspected {
		return "Vaccination certificate could not be inspected"
	}
	if c.Size <= 0 {
		return "Vaccination certificate is empty"
	}
	if c.Size > r.maxCertificateSize {
		return "File size must be less than " + sizeLabel(r.maxCertificateSize)
	}
	if !r.AllowedType(c.ContentType) {
		return "Only PDF, JPEG, and PNG files are allowed"
	}
	return ""
}

// AllowedType reports whether contentType is an accepted certificate type.
func (r *Rules) AllowedType(contentType string) bool {
	for _, allowed := range r.allowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

// MaxCertificateSize returns the configured certificate size cap.
func (r *Rules) MaxCertificateSize() int64 {
	return r.maxCertificateSize
}

func sizeLabel(n int64) string {
	if n >= 1<<20 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%dKB", n>>10)
}

func length(value, label string, min, max int) string {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min {
		if min == 1 {
			return label + " is required"
		}
		return fmt.Sprintf("%s must be at least %d characters", label, min)
	}
	if n > max {
		return fmt.Sprintf("%s must be at most %d characters", label, max)
	}
	return ""
}

func dogAge(value string) string {
	value = strings.TrimSpace(value)
	if !decimalNumber.MatchString(value) {
		return "Please enter a valid age"
	}
	age, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(age) {
		return "Please enter a valid age"
	}
	if age <= 0 || age > maxDogAge {
		return fmt.Sprintf("Age must be greater than 0 and at most %d", maxDogAge)
	}
	return ""
}

func (r *Rules) rabiesDate(value string) string {
	date, err := ParseDate(value)
	if err != nil {
		return "Please enter a valid date"
	}
	now := r.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	earliest := today.AddDate(-RabiesWindowYears, 0, 0)
	if date.Before(earliest) {
		return fmt.Sprintf("Rabies vaccination must be within the last %d years", RabiesWindowYears)
	}
	if date.After(today) {
		return "Rabies vaccination date cannot be in the future"
	}
	return ""
}

// ParseDate parses a calendar date (YYYY-MM-DD, or RFC 3339) and returns
// midnight UTC of that day.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// NormalizePhone reduces a US phone number to its ten digits.
func NormalizePhone(value string) (string, bool) {
	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
		case c == ' ' || c == '(' || c == ')' || c == '-' || c == '.' || c == '+':
		default:
			return "", false
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 || digits[0] < '2' {
		return "", false
	}
	return string(digits), true
}
