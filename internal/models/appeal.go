package models

import "time"

// AppealStatus captures the lifecycle state of an appeal.
type AppealStatus string

const (
	AppealStatusReceived                AppealStatus = "received"
	AppealStatusUnderReview             AppealStatus = "under_review"
	AppealStatusAdditionalInfoRequested AppealStatus = "additional_info_requested"
	AppealStatusResolved                AppealStatus = "resolved"
	AppealStatusRejected                AppealStatus = "rejected"
	AppealStatusWithdrawn               AppealStatus = "withdrawn"
)

// Valid reports whether s is a known status.
func (s AppealStatus) Valid() bool {
	switch s {
	case AppealStatusReceived, AppealStatusUnderReview, AppealStatusAdditionalInfoRequested,
		AppealStatusResolved, AppealStatusRejected, AppealStatusWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s AppealStatus) IsTerminal() bool {
	return s == AppealStatusResolved || s == AppealStatusRejected || s == AppealStatusWithdrawn
}

// AppealCategory classifies the nature of the dispute.
type AppealCategory string

const (
	AppealCategoryCriteriaMisinterpretation AppealCategory = "criteria_misinterpretation"
	AppealCategoryAchievementOversight      AppealCategory = "achievement_oversight"
	AppealCategoryPeriodError               AppealCategory = "period_error"
	AppealCategoryCalculationError          AppealCategory = "calculation_error"
	AppealCategoryOther                     AppealCategory = "other"
)

// Priority is the derived urgency tier of an appeal.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SubmissionChannel records where an appeal originated.
type SubmissionChannel string

const (
	SubmittedViaWeb         SubmissionChannel = "web"
	SubmittedViaMobile      SubmissionChannel = "mobile"
	SubmittedViaCrossSystem SubmissionChannel = "cross_system"
	SubmittedViaOperator    SubmissionChannel = "operator"
)

// DecisionOutcome is the result of a completed review.
type DecisionOutcome string

const (
	OutcomeApproved          DecisionOutcome = "approved"
	OutcomePartiallyApproved DecisionOutcome = "partially_approved"
	OutcomeRejected          DecisionOutcome = "rejected"
)

// Decision is populated only for resolved and rejected appeals.
type Decision struct {
	Outcome       DecisionOutcome `json:"outcome"`
	Reason        string          `json:"reason"`
	AdjustedScore *float64        `json:"adjustedScore,omitempty"`
	DecidedBy     string          `json:"decidedBy"`
	DecidedAt     time.Time       `json:"decidedAt"`
}

// EvidenceDocument references an uploaded file; the bytes live in external storage.
type EvidenceDocument struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	MIMEType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	Reference string `json:"reference"`
}

// CommunicationType classifies communication log entries.
type CommunicationType string

const (
	CommunicationComment      CommunicationType = "comment"
	CommunicationInfoRequest  CommunicationType = "info_request"
	CommunicationInfoResponse CommunicationType = "info_response"
	CommunicationSystem       CommunicationType = "system"
)

// CommunicationEntry is one message exchanged on an appeal.
type CommunicationEntry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	Type        CommunicationType `json:"type"`
	From        string            `json:"from"`
	To          string            `json:"to,omitempty"`
	Message     string            `json:"message"`
	Attachments []string          `json:"attachments,omitempty"`
	Read        bool              `json:"read"`
}

// ReviewerRef identifies the reviewer handling an appeal.
type ReviewerRef struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Email    string       `json:"email,omitempty"`
	Tier     ReviewerTier `json:"tier,omitempty"`
	Fallback bool         `json:"fallback,omitempty"`
}

// Appeal is a staff member's formal dispute of an evaluation score.
type Appeal struct {
	AppealID             string               `json:"appealId"`
	EmployeeID           string               `json:"employeeId"`
	EmployeeName         string               `json:"employeeName"`
	DepartmentID         string               `json:"departmentId,omitempty"`
	JobCategory          string               `json:"jobCategory,omitempty"`
	EvaluationPeriod     string               `json:"evaluationPeriod"`
	AppealCategory       AppealCategory       `json:"appealCategory"`
	AppealReason         string               `json:"appealReason"`
	OriginalScore        *float64             `json:"originalScore,omitempty"`
	RequestedScore       *float64             `json:"requestedScore,omitempty"`
	FinalScore           *float64             `json:"finalScore,omitempty"`
	EvidenceDocuments    []EvidenceDocument   `json:"evidenceDocuments"`
	Status               AppealStatus         `json:"status"`
	Priority             Priority             `json:"priority"`
	AssignedReviewer     *ReviewerRef         `json:"assignedReviewer,omitempty"`
	ExpectedResponseDate time.Time            `json:"expectedResponseDate"`
	CreatedAt            time.Time            `json:"createdAt"`
	UpdatedAt            time.Time            `json:"updatedAt"`
	SubmittedVia         SubmissionChannel    `json:"submittedVia"`
	ReviewStartDate      *time.Time           `json:"reviewStartDate,omitempty"`
	ReviewEndDate        *time.Time           `json:"reviewEndDate,omitempty"`
	ReviewerComments     *string              `json:"reviewerComments,omitempty"`
	Decision             *Decision            `json:"decision,omitempty"`
	CommunicationLog     []CommunicationEntry `json:"communicationLog"`
	IdempotencyKey       string               `json:"idempotencyKey,omitempty"`
	RemoteReference      string               `json:"remoteReference,omitempty"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (a *Appeal) Clone() *Appeal {
	if a == nil {
		return nil
	}
	out := *a
	out.OriginalScore = cloneFloat(a.OriginalScore)
	out.RequestedScore = cloneFloat(a.RequestedScore)
	out.FinalScore = cloneFloat(a.FinalScore)
	out.ReviewStartDate = cloneTime(a.ReviewStartDate)
	out.ReviewEndDate = cloneTime(a.ReviewEndDate)
	if a.ReviewerComments != nil {
		v := *a.ReviewerComments
		out.ReviewerComments = &v
	}
	if a.AssignedReviewer != nil {
		v := *a.AssignedReviewer
		out.AssignedReviewer = &v
	}
	if a.Decision != nil {
		d := *a.Decision
		d.AdjustedScore = cloneFloat(a.Decision.AdjustedScore)
		out.Decision = &d
	}
	out.EvidenceDocuments = append([]EvidenceDocument(nil), a.EvidenceDocuments...)
	out.CommunicationLog = make([]CommunicationEntry, len(a.CommunicationLog))
	for i, entry := range a.CommunicationLog {
		entry.Attachments = append([]string(nil), entry.Attachments...)
		out.CommunicationLog[i] = entry
	}
	return &out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// PriorityInput holds the claim attributes the priority rules look at.
type PriorityInput struct {
	Category       AppealCategory
	OriginalScore  *float64
	RequestedScore *float64
	JobCategory    string
	EvidenceCount  int
}

// PriorityInputFor extracts the priority attributes of an appeal.
func PriorityInputFor(a *Appeal) PriorityInput {
	return PriorityInput{
		Category:       a.AppealCategory,
		OriginalScore:  a.OriginalScore,
		RequestedScore: a.RequestedScore,
		JobCategory:    a.JobCategory,
		EvidenceCount:  len(a.EvidenceDocuments),
	}
}
