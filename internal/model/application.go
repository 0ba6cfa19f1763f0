// Package model contains the application records shared across packages.
package model

import (
	"time"
)

// Field names one input of the application form. The values double as the
// JSON keys of the serialized draft.
type Field string

const (
	FieldOwnerName      Field = "ownerName"
	FieldOwnerAddress   Field = "ownerAddress"
	FieldOwnerPhone     Field = "ownerPhone"
	FieldDogName        Field = "dogName"
	FieldDogBreed       Field = "dogBreed"
	FieldDogAge         Field = "dogAge"
	FieldDogColor       Field = "dogColor"
	FieldLastRabiesShot Field = "lastRabiesShot"
	FieldCertificate    Field = "vaccinationFile"
)

// TextFields lists every field that is stored in the draft, in form order.
var TextFields = []Field{
	FieldOwnerName,
	FieldOwnerAddress,
	FieldOwnerPhone,
	FieldDogName,
	FieldDogBreed,
	FieldDogAge,
	FieldDogColor,
	FieldLastRabiesShot,
}

// DraftApplication is the in-progress form. The certificate is never
// serialized with the draft.
type DraftApplication struct {
	OwnerName      string       `json:"ownerName"`
	OwnerAddress   string       `json:"ownerAddress"`
	OwnerPhone     string       `json:"ownerPhone"`
	DogName        string       `json:"dogName"`
	DogBreed       string       `json:"dogBreed"`
	DogAge         string       `json:"dogAge"`
	DogColor       string       `json:"dogColor"`
	LastRabiesShot string       `json:"lastRabiesShot"`
	Certificate    *Certificate `json:"-"`
}

// Value returns the current value of a text field.
func (d *DraftApplication) Value(f Field) (string, bool) {
	p := d.field(f)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns a text field. It reports false for unknown fields and for the
// certificate, which is attached separately.
func (d *DraftApplication) Set(f Field, value string) bool {
	p := d.field(f)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (d *DraftApplication) field(f Field) *string {
	switch f {
	case FieldOwnerName:
		return &d.OwnerName
	case FieldOwnerAddress:
		return &d.OwnerAddress
	case FieldOwnerPhone:
		return &d.OwnerPhone
	case FieldDogName:
		return &d.DogName
	case FieldDogBreed:
		return &d.DogBreed
	case FieldDogAge:
		return &d.DogAge
	case FieldDogColor:
		return &d.DogColor
	case FieldLastRabiesShot:
		return &d.LastRabiesShot
	}
	return nil
}

// ApplicationStatus is fixed to StatusSubmitted for every stored record.
type ApplicationStatus string

const StatusSubmitted ApplicationStatus = "submitted"

// SubmittedApplication is the immutable record appended to the submission
// list.
type SubmittedApplication struct {
	ID             string            `json:"id"`
	OwnerName      string            `json:"ownerName"`
	OwnerAddress   string            `json:"ownerAddress"`
	OwnerPhone     string            `json:"ownerPhone"`
	DogName        string            `json:"dogName"`
	DogBreed       string            `json:"dogBreed"`
	DogAge         string            `json:"dogAge"`
	DogColor       string            `json:"dogColor"`
	LastRabiesShot string            `json:"lastRabiesShot"`
	Certificate    *Certificate      `json:"vaccinationFile,omitempty"`
	SubmittedAt    time.Time         `json:"submittedAt"`
	Status         ApplicationStatus `json:"status"`
}

// NewSubmission freezes a draft into a submitted record.
func NewSubmission(id string, d DraftApplication, at time.Time) SubmittedApplication {
	var cert *Certificate
	if d.Certificate != nil {
		c := *d.Certificate
		cert = &c
	}
	return SubmittedApplication{
		ID:             id,
		OwnerName:      d.OwnerName,
		OwnerAddress:   d.OwnerAddress,
		OwnerPhone:     d.OwnerPhone,
		DogName:        d.DogName,
		DogBreed:       d.DogBreed,
		DogAge:         d.DogAge,
		DogColor:       d.DogColor,
		LastRabiesShot: d.LastRabiesShot,
		Certificate:    cert,
		SubmittedAt:    at.UTC(),
		Status:         StatusSubmitted,
	}
}
