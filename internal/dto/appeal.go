package dto

import (
	"time"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

// EvidenceDocumentInput describes an already uploaded evidence file.
type EvidenceDocumentInput struct {
	FileName  string `json:"fileName" validate:"required,max=255"`
	MIMEType  string `json:"mimeType" validate:"required"`
	SizeBytes int64  `json:"sizeBytes" validate:"gte=0"`
	Reference string `json:"reference" validate:"required"`
}

// SubmitAppealRequest is the payload for filing a new appeal.
type SubmitAppealRequest struct {
	EmployeeID        string                   `json:"employeeId"`
	EmployeeName      string                   `json:"employeeName" validate:"required,max=200"`
	DepartmentID      string                   `json:"departmentId"`
	JobCategory       string                   `json:"jobCategory"`
	EvaluationPeriod  string                   `json:"evaluationPeriod" validate:"required"`
	AppealCategory    models.AppealCategory    `json:"appealCategory" validate:"required,oneof=criteria_misinterpretation achievement_oversight period_error calculation_error other"`
	AppealReason      string                   `json:"appealReason"`
	OriginalScore     *float64                 `json:"originalScore" validate:"omitempty,gte=0,lte=100"`
	RequestedScore    *float64                 `json:"requestedScore" validate:"omitempty,gte=0,lte=100"`
	EvidenceDocuments []EvidenceDocumentInput  `json:"evidenceDocuments" validate:"dive"`
	SubmittedVia      models.SubmissionChannel `json:"submittedVia" validate:"omitempty,oneof=web mobile cross_system operator"`
}

// SubmitAppealResponse is returned after a successful submission.
type SubmitAppealResponse struct {
	AppealID             string              `json:"appealId"`
	ExpectedResponseDate time.Time           `json:"expectedResponseDate"`
	Priority             models.Priority     `json:"priority"`
	AssignedReviewer     *models.ReviewerRef `json:"assignedReviewer,omitempty"`
	RemoteReference      string              `json:"remoteReference,omitempty"`
}

// AdditionalInfoRequest supplies more material or replaces the reason of an open appeal.
type AdditionalInfoRequest struct {
	AppealID          string                  `json:"appealId" validate:"required"`
	AdditionalInfo    string                  `json:"additionalInfo"`
	AppealReason      string                  `json:"appealReason"`
	EvidenceDocuments []EvidenceDocumentInput `json:"evidenceDocuments" validate:"dive"`
}

// WithdrawAppealRequest withdraws an open appeal.
type WithdrawAppealRequest struct {
	AppealID string `json:"appealId" validate:"required"`
	Comments string `json:"comments" validate:"max=2000"`
}

// DecisionInput carries the reviewer's decision.
type DecisionInput struct {
	Outcome       models.DecisionOutcome `json:"outcome" validate:"required,oneof=approved partially_approved rejected"`
	Reason        string                 `json:"reason" validate:"required"`
	AdjustedScore *float64               `json:"adjustedScore" validate:"omitempty,gte=0,lte=100"`
}

// UpdateStatusRequest moves an appeal through its lifecycle.
type UpdateStatusRequest struct {
	Status     models.AppealStatus `json:"status" validate:"required,oneof=under_review additional_info_requested resolved rejected withdrawn"`
	ReviewerID string              `json:"reviewerId"`
	Comments   string              `json:"comments" validate:"max=4000"`
	Decision   *DecisionInput      `json:"decision"`
}

// AddCommentRequest appends a message to the communication log.
type AddCommentRequest struct {
	Message     string   `json:"message" validate:"required,max=4000"`
	To          string   `json:"to"`
	Attachments []string `json:"attachments"`
}

// EligibilityRequest asks whether a period accepts appeals.
type EligibilityRequest struct {
	EvaluationPeriod string `json:"evaluationPeriod" validate:"required"`
}
