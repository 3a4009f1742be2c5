package models

import "time"

// SubmissionDraft is the locally cached copy of a cross-system submission.
// The appeal is resent verbatim on every attempt.
type SubmissionDraft struct {
	Key            string    `json:"key"`
	Appeal         Appeal    `json:"appeal"`
	ContentHash    string    `json:"contentHash"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Attempts       int       `json:"attempts"`
	LastError      string    `json:"lastError,omitempty"`
	Retryable      bool      `json:"retryable"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
