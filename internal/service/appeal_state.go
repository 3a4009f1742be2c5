package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
)

var appealTransitions = map[models.AppealStatus][]models.AppealStatus{
	models.AppealStatusReceived: {
		models.AppealStatusUnderReview,
		models.AppealStatusWithdrawn,
	},
	models.AppealStatusUnderReview: {
		models.AppealStatusAdditionalInfoRequested,
		models.AppealStatusResolved,
		models.AppealStatusRejected,
		models.AppealStatusWithdrawn,
	},
	models.AppealStatusAdditionalInfoRequested: {
		models.AppealStatusUnderReview,
		models.AppealStatusResolved,
		models.AppealStatusRejected,
		models.AppealStatusWithdrawn,
	},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to models.AppealStatus) bool {
	for _, next := range appealTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func invalidTransition(from, to models.AppealStatus) error {
	err := appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("cannot move appeal from %s to %s", from, to))
	err = appErrors.WithDetail(err, "from", string(from))
	return appErrors.WithDetail(err, "to", string(to))
}

// transition describes one requested status change.
type transition struct {
	to       models.AppealStatus
	actor    models.Actor
	reviewer *models.ReviewerRef
	comments string
	decision *dto.DecisionInput
	at       time.Time
}

// apply validates the change against the current state of a and performs its
// side effects. The caller persists the status.
func (t transition) apply(a *models.Appeal) error {
	from := a.Status
	if !CanTransition(from, t.to) {
		return invalidTransition(from, t.to)
	}

	switch t.to {
	case models.AppealStatusUnderReview:
		if t.reviewer != nil {
			ref := *t.reviewer
			a.AssignedReviewer = &ref
		}
		if a.AssignedReviewer == nil {
			return appErrors.Clone(appErrors.ErrValidation, "a reviewer must be assigned before review starts")
		}
		if a.ReviewStartDate == nil {
			start := t.at
			a.ReviewStartDate = &start
		}
		if t.comments != "" {
			a.CommunicationLog = append(a.CommunicationLog, t.entry(models.CommunicationSystem, a.EmployeeID, t.comments))
		}

	case models.AppealStatusAdditionalInfoRequested:
		message := t.comments
		if message == "" {
			message = "Additional information requested."
		}
		a.CommunicationLog = append(a.CommunicationLog, t.entry(models.CommunicationInfoRequest, a.EmployeeID, message))

	case models.AppealStatusResolved, models.AppealStatusRejected:
		if t.decision == nil {
			return appErrors.Clone(appErrors.ErrValidation, "a decision is required to complete the review")
		}
		outcome := t.decision.Outcome
		if t.to == models.AppealStatusResolved {
			if outcome != models.OutcomeApproved && outcome != models.OutcomePartiallyApproved {
				return appErrors.Clone(appErrors.ErrValidation, "resolved appeals need an approved or partially_approved outcome")
			}
		} else {
			outcome = models.OutcomeRejected
		}
		decision := &models.Decision{
			Outcome:   outcome,
			Reason:    t.decision.Reason,
			DecidedBy: t.actor.ID,
			DecidedAt: t.at,
		}
		if t.decision.AdjustedScore != nil && outcome != models.OutcomeRejected {
			score := *t.decision.AdjustedScore
			decision.AdjustedScore = &score
			final := score
			a.FinalScore = &final
		}
		a.Decision = decision
		end := t.at
		a.ReviewEndDate = &end
		comments := t.comments
		if comments == "" {
			comments = t.decision.Reason
		}
		if comments != "" {
			a.ReviewerComments = &comments
		}
		a.CommunicationLog = append(a.CommunicationLog, t.entry(models.CommunicationSystem, a.EmployeeID,
			fmt.Sprintf("Review completed: %s.", outcome)))

	case models.AppealStatusWithdrawn:
		if t.actor.ID != a.EmployeeID && !t.actor.Role.IsOperator() {
			return appErrors.Clone(appErrors.ErrForbidden, "only the appellant or an operator can withdraw an appeal")
		}
		end := t.at
		a.ReviewEndDate = &end
		a.Decision = nil
		if t.comments != "" {
			comments := t.comments
			a.ReviewerComments = &comments
		}
		a.CommunicationLog = append(a.CommunicationLog, t.entry(models.CommunicationSystem, "", "Appeal withdrawn."))
	}
	return nil
}

func (t transition) entry(kind models.CommunicationType, to, message string) models.CommunicationEntry {
	return models.CommunicationEntry{
		ID:        uuid.NewString(),
		Timestamp: t.at,
		Type:      kind,
		From:      t.actor.ID,
		To:        to,
		Message:   message,
	}
}

// transitionAuditActions lists the audit actions a completed transition records.
func transitionAuditActions(to models.AppealStatus) []models.AuditAction {
	switch to {
	case models.AppealStatusUnderReview:
		return []models.AuditAction{models.AuditActionStartReview}
	case models.AppealStatusAdditionalInfoRequested:
		return []models.AuditAction{models.AuditActionRequestInfo}
	case models.AppealStatusResolved:
		return []models.AuditAction{models.AuditActionCompleteReview, models.AuditActionApprove}
	case models.AppealStatusRejected:
		return []models.AuditAction{models.AuditActionCompleteReview, models.AuditActionReject}
	case models.AppealStatusWithdrawn:
		return []models.AuditAction{models.AuditActionWithdraw}
	}
	return nil
}
