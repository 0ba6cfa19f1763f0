package model

import (
	"time"
)

// Certificate describes an uploaded vaccination certificate. Inspected is set
// only by intake code that actually measured the content and sniffed its type.
type Certificate struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ObjectKey   string `json:"objectKey,omitempty"`
	Inspected   bool   `json:"-"`
}

// ReviewStatus describes the certificate review lifecycle.
type ReviewStatus string

const (
	ReviewQueued     ReviewStatus = "queued"
	ReviewProcessing ReviewStatus = "processing"
	ReviewComplete   ReviewStatus = "complete"
	ReviewFailed     ReviewStatus = "failed"
)

// CertificateReview tracks the background inspection of a submitted
// application's certificate.
type CertificateReview struct {
	ApplicationID string       `json:"applicationId"`
	Status        ReviewStatus `json:"status"`
	Message       string       `json:"message,omitempty"`
	Text          string       `json:"text,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}
