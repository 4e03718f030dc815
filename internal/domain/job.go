package domain

import (
	"strings"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BusinessProfile carries the literal fields a business supplied for its
// marketing image. Name, phone, address, and social handles must survive into
// the rendered prompt verbatim; OfferText and Notes are free-form and are
// sanitized before prompting.
type BusinessProfile struct {
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
	Instagram   string `json:"instagram,omitempty"`
	WhatsApp    string `json:"whatsapp,omitempty"`
	OfferText   string `json:"offer_text"`
	Notes       string `json:"notes,omitempty"`
	Style       string `json:"style,omitempty"`
	Language    string `json:"language,omitempty"`
}

// DescriptionText joins the free-text fields used for niche classification.
func (p BusinessProfile) DescriptionText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.CompanyName, p.OfferText, p.Notes} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, " ")
}

// MandatoryFields lists the literal contact fields the rendered image must
// contain. The quality gate verifies each one.
func (p BusinessProfile) MandatoryFields() []string {
	fields := make([]string, 0, 5)
	for _, s := range []string{p.CompanyName, p.Phone, p.Address, p.Instagram, p.WhatsApp} {
		if strings.TrimSpace(s) != "" {
			fields = append(fields, strings.TrimSpace(s))
		}
	}
	return fields
}

// Job encapsulates the lifecycle of one image generation request. Once a job
// reaches a terminal status it is never mutated again; the orchestrator is the
// sole writer after intake.
type Job struct {
	ID             string
	UserID         string
	Status         JobStatus
	Profile        BusinessProfile
	AspectRatio    string
	AttemptsUsed   int
	ResultKey      string
	ResultAccepted bool
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobUpdate describes a partial job mutation. Nil fields are left untouched;
// writes are last-write-wins.
type JobUpdate struct {
	Status         *JobStatus
	AttemptsUsed   *int
	ResultKey      *string
	ResultAccepted *bool
	ErrorMessage   *string
}
