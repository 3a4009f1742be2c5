package models

import "time"

// PeriodStatus indicates whether an evaluation period accepts appeals.
type PeriodStatus string

const (
	PeriodStatusActive PeriodStatus = "active"
	PeriodStatusClosed PeriodStatus = "closed"
)

// EvaluationPeriod is reference data owned by the evaluation system.
type EvaluationPeriod struct {
	ID             string       `db:"id" json:"id"`
	Name           string       `db:"name" json:"name"`
	AppealDeadline time.Time    `db:"appeal_deadline" json:"appealDeadline"`
	Status         PeriodStatus `db:"status" json:"status"`
}

// Eligibility result codes.
const (
	EligibilityPeriodNotFound = "PERIOD_NOT_FOUND"
	EligibilityPeriodClosed   = "PERIOD_CLOSED"
	EligibilityPeriodExpired  = "PERIOD_EXPIRED"
)

// EligibilityResult explains whether an appeal may be filed against a period.
type EligibilityResult struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	Code     string `json:"code,omitempty"`
}
