package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

// ReviewerDirectory resolves reviewers from reference data.
type ReviewerDirectory interface {
	FindByTier(ctx context.Context, tier models.ReviewerTier, departmentID string) (*models.Reviewer, error)
	GetByID(ctx context.Context, id string) (*models.Reviewer, error)
}

type reviewerAssigner interface {
	Assign(ctx context.Context, appeal *models.Appeal, priority models.Priority) models.ReviewerRef
}

// TierForPriority maps priority onto the reviewer tier that handles it.
func TierForPriority(priority models.Priority) models.ReviewerTier {
	switch priority {
	case models.PriorityHigh:
		return models.TierDepartmentHead
	case models.PriorityMedium:
		return models.TierSectionChief
	default:
		return models.TierTeamLeader
	}
}

// ReviewerAssigner picks a reviewer for an appeal. Assignment never fails: when
// no reviewer of the tier exists, the default reviewer takes the appeal and
// administrators are asked to reassign it.
type ReviewerAssigner struct {
	directory ReviewerDirectory
	fallback  models.ReviewerRef
	notifier  adminNotifier
	audit     auditRecorder
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewReviewerAssigner constructs the assigner.
func NewReviewerAssigner(directory ReviewerDirectory, fallback models.ReviewerRef, notifier adminNotifier, audit auditRecorder, metrics *MetricsService, logger *zap.Logger) *ReviewerAssigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback.Fallback = true
	return &ReviewerAssigner{
		directory: directory,
		fallback:  fallback,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		logger:    logger,
	}
}

// Assign returns the reviewer for appeal at priority.
func (a *ReviewerAssigner) Assign(ctx context.Context, appeal *models.Appeal, priority models.Priority) models.ReviewerRef {
	tier := TierForPriority(priority)
	if a.directory != nil {
		reviewer, err := a.directory.FindByTier(ctx, tier, appeal.DepartmentID)
		if err == nil && reviewer != nil {
			return reviewer.Ref()
		}
		a.logger.Sugar().Warnw("reviewer lookup failed, using default reviewer",
			"appeal_id", appeal.AppealID, "tier", tier, "department_id", appeal.DepartmentID, "error", err)
	}

	ref := a.fallback
	a.metrics.ReviewerFallback()
	if a.audit != nil {
		a.audit.Record(ctx, newAuditEntry(appeal.AppealID, models.AuditActionEscalate, models.SystemActor, map[string]string{
			"reason":   "no reviewer available for tier",
			"tier":     string(tier),
			"reviewer": ref.ID,
		}))
	}
	if a.notifier != nil {
		result := a.notifier.NotifyAdministrators(ctx, models.AdministratorNotification{
			AppealID: appeal.AppealID,
			Priority: priority,
			Reason:   "No " + string(tier) + " reviewer is configured.",
			Reviewer: &ref,
		})
		if !result.Email && !result.Push && !result.SMS {
			a.logger.Sugar().Warnw("administrator notification not delivered", "appeal_id", appeal.AppealID)
		}
	}
	return ref
}
