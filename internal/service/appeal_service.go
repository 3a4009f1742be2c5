package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
	"github.com/noah-isme/staff-appeal-api/pkg/logger"
)

type appealStore interface {
	Create(ctx context.Context, appeal *models.Appeal) error
	GetByID(ctx context.Context, id string) (*models.Appeal, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*models.Appeal, error)
	UpdateInPlace(ctx context.Context, id string, mutate repository.AppealMutator) (*models.Appeal, error)
	Migrate(ctx context.Context, id string, status models.AppealStatus, mutate repository.AppealMutator) (*models.Appeal, error)
}

type reviewerLookup interface {
	GetByID(ctx context.Context, id string) (*models.Reviewer, error)
}

// AppealService drives appeals through their lifecycle after submission.
type AppealService struct {
	store     appealStore
	assigner  reviewerAssigner
	reviewers reviewerLookup
	audit     auditRecorder
	notifier  eventNotifier
	metrics   *MetricsService
	validator *validator.Validate
	evidence  EvidencePolicy
	logger    *zap.Logger
	now       func() time.Time
}

// AppealServiceOption configures the service.
type AppealServiceOption func(*AppealService)

// WithAppealClock overrides the clock.
func WithAppealClock(now func() time.Time) AppealServiceOption {
	return func(s *AppealService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAppealEvidencePolicy sets evidence limits for additional information.
func WithAppealEvidencePolicy(policy EvidencePolicy) AppealServiceOption {
	return func(s *AppealService) {
		s.evidence = policy
	}
}

// WithReviewerLookup validates explicitly chosen reviewers.
func WithReviewerLookup(lookup reviewerLookup) AppealServiceOption {
	return func(s *AppealService) {
		s.reviewers = lookup
	}
}

// WithAppealMetrics attaches metrics.
func WithAppealMetrics(metrics *MetricsService) AppealServiceOption {
	return func(s *AppealService) {
		s.metrics = metrics
	}
}

// NewAppealService constructs the service.
func NewAppealService(store appealStore, assigner reviewerAssigner, audit auditRecorder, notifier eventNotifier, validate *validator.Validate, logger *zap.Logger, opts ...AppealServiceOption) *AppealService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AppealService{
		store:     store,
		assigner:  assigner,
		audit:     audit,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func canView(actor models.Actor, appeal *models.Appeal) bool {
	return actor.Role.IsPrivileged() || actor.ID == appeal.EmployeeID
}

// Get returns one appeal. Employees only see their own.
func (s *AppealService) Get(ctx context.Context, id string, actor models.Actor) (*models.Appeal, error) {
	appeal, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, appErrors.ErrStorage, "failed to load appeal")
	}
	if !canView(actor, appeal) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appeal belongs to another employee")
	}
	return appeal, nil
}

// ListByEmployee returns the employee's appeals, newest first.
func (s *AppealService) ListByEmployee(ctx context.Context, employeeID string, actor models.Actor) ([]*models.Appeal, error) {
	if !actor.Role.IsPrivileged() && actor.ID != employeeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot list appeals of another employee")
	}
	appeals, err := s.store.ListByEmployee(ctx, employeeID)
	if err != nil {
		return nil, mapStoreError(err, appErrors.ErrStorage, "failed to list appeals")
	}
	return appeals, nil
}

// UpdateStatus performs a reviewer or operator driven transition.
func (s *AppealService) UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest, actor models.Actor) (*models.Appeal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload")
	}
	if req.Status == models.AppealStatusWithdrawn {
		return s.withdraw(ctx, id, req.Comments, actor)
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, appErrors.ErrStorage, "failed to load appeal")
	}
	if !CanTransition(current.Status, req.Status) {
		return nil, invalidTransition(current.Status, req.Status)
	}

	t := transition{to: req.Status, actor: actor, comments: strings.TrimSpace(req.Comments), decision: req.Decision, at: s.now()}
	if req.Status == models.AppealStatusUnderReview && (req.ReviewerID != "" || current.AssignedReviewer == nil) {
		ref, err := s.resolveReviewer(ctx, current, req.ReviewerID)
		if err != nil {
			return nil, err
		}
		t.reviewer = &ref
	}

	var from models.AppealStatus
	updated, err := s.store.Migrate(ctx, id, req.Status, func(a *models.Appeal) error {
		from = a.Status
		return t.apply(a)
	})
	if err != nil {
		return nil, updateError(err)
	}
	s.afterTransition(ctx, from, updated, actor)
	return updated, nil
}

// Withdraw withdraws an open appeal on behalf of its owner or an operator.
func (s *AppealService) Withdraw(ctx context.Context, req dto.WithdrawAppealRequest, actor models.Actor) (*models.Appeal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload")
	}
	return s.withdraw(ctx, req.AppealID, strings.TrimSpace(req.Comments), actor)
}

func (s *AppealService) withdraw(ctx context.Context, id, comments string, actor models.Actor) (*models.Appeal, error) {
	t := transition{to: models.AppealStatusWithdrawn, actor: actor, comments: comments, at: s.now()}
	var from models.AppealStatus
	updated, err := s.store.Migrate(ctx, id, models.AppealStatusWithdrawn, func(a *models.Appeal) error {
		from = a.Status
		return t.apply(a)
	})
	if err != nil {
		return nil, updateError(err)
	}
	s.afterTransition(ctx, from, updated, actor)
	return updated, nil
}

// ProvideAdditionalInfo appends information or replaces the reason of an open appeal.
// An appeal waiting for information returns to review.
func (s *AppealService) ProvideAdditionalInfo(ctx context.Context, req dto.AdditionalInfoRequest, actor models.Actor) (*models.Appeal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload")
	}
	if req.AppealReason != "" {
		if err := checkReason(req.AppealReason); err != nil {
			return nil, err
		}
	}
	info := strings.TrimSpace(req.AdditionalInfo)
	if info == "" && req.AppealReason == "" && len(req.EvidenceDocuments) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "additional information, a new reason or evidence is required")
	}

	current, err := s.store.GetByID(ctx, req.AppealID)
	if err != nil {
		return nil, mapStoreError(err, appErrors.ErrStorage, "failed to load appeal")
	}
	if current.EmployeeID != actor.ID && !actor.Role.IsOperator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the appellant can add information")
	}
	if err := s.evidence.Validate(req.EvidenceDocuments, len(current.EvidenceDocuments)); err != nil {
		return nil, err
	}

	now := s.now()
	docs := toEvidenceDocuments(req.EvidenceDocuments)
	patch := func(a *models.Appeal) {
		if req.AppealReason != "" {
			a.AppealReason = req.AppealReason
		}
		if info != "" {
			a.AppealReason += fmt.Sprintf("\n\n[Additional information %s]\n%s", now.Format("2006-01-02"), info)
		}
		a.EvidenceDocuments = append(a.EvidenceDocuments, docs...)
		message := info
		if message == "" {
			message = "Appeal updated."
		}
		entry := models.CommunicationEntry{
			ID:        uuid.NewString(),
			Timestamp: now,
			Type:      models.CommunicationInfoResponse,
			From:      actor.ID,
			Message:   message,
		}
		if a.AssignedReviewer != nil {
			entry.To = a.AssignedReviewer.ID
		}
		a.CommunicationLog = append(a.CommunicationLog, entry)
	}

	var updated *models.Appeal
	switch current.Status {
	case models.AppealStatusAdditionalInfoRequested:
		t := transition{to: models.AppealStatusUnderReview, actor: actor, at: now}
		updated, err = s.store.Migrate(ctx, req.AppealID, models.AppealStatusUnderReview, func(a *models.Appeal) error {
			if a.Status != models.AppealStatusAdditionalInfoRequested {
				return invalidTransition(a.Status, models.AppealStatusUnderReview)
			}
			patch(a)
			return t.apply(a)
		})
	case models.AppealStatusReceived, models.AppealStatusUnderReview:
		updated, err = s.store.UpdateInPlace(ctx, req.AppealID, func(a *models.Appeal) error {
			if a.Status != current.Status {
				return appErrors.WithDetail(appErrors.Clone(appErrors.ErrInvalidStatus, "appeal status changed, retry"), "status", string(a.Status))
			}
			patch(a)
			return nil
		})
	default:
		return nil, appErrors.WithDetail(
			appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("appeal is %s and can no longer be updated", current.Status)),
			"status", string(current.Status))
	}
	if err != nil {
		return nil, updateError(err)
	}

	resumed := current.Status != updated.Status
	if resumed {
		s.metrics.AppealTransition(current.Status, updated.Status)
	}
	s.audit.Record(ctx, newAuditEntry(updated.AppealID, models.AuditActionProvideInfo, actor, map[string]string{
		"resumed":        strconv.FormatBool(resumed),
		"evidenceAdded":  strconv.Itoa(len(docs)),
		"reasonReplaced": strconv.FormatBool(req.AppealReason != ""),
	}))
	if updated.AssignedReviewer != nil {
		s.notify(ctx, updated, models.EventStatusChanged, reviewerRecipient(updated.AssignedReviewer),
			fmt.Sprintf("Appeal %s has new information", updated.AppealID),
			"The appellant supplied additional information.")
	}
	return updated, nil
}

// AddComment appends a message to the communication log without changing status.
func (s *AppealService) AddComment(ctx context.Context, id string, req dto.AddCommentRequest, actor models.Actor) (*models.Appeal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload")
	}
	entryID := uuid.NewString()
	updated, err := s.store.UpdateInPlace(ctx, id, func(a *models.Appeal) error {
		if !canView(actor, a) {
			return appErrors.Clone(appErrors.ErrForbidden, "appeal belongs to another employee")
		}
		a.CommunicationLog = append(a.CommunicationLog, models.CommunicationEntry{
			ID:          entryID,
			Timestamp:   s.now(),
			Type:        models.CommunicationComment,
			From:        actor.ID,
			To:          req.To,
			Message:     strings.TrimSpace(req.Message),
			Attachments: append([]string(nil), req.Attachments...),
		})
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, appErrors.ErrStorage, "failed to add comment")
	}

	s.audit.Record(ctx, newAuditEntry(updated.AppealID, models.AuditActionComment, actor, map[string]string{"commentId": entryID}))

	var recipient models.Recipient
	switch {
	case req.To != "":
		recipient = models.Recipient{ID: req.To}
	case actor.ID == updated.EmployeeID && updated.AssignedReviewer != nil:
		recipient = reviewerRecipient(updated.AssignedReviewer)
	case actor.ID != updated.EmployeeID:
		recipient = employeeRecipient(updated)
	}
	if recipient.ID != "" {
		s.notify(ctx, updated, models.EventCommentAdded, recipient,
			fmt.Sprintf("New comment on appeal %s", updated.AppealID), strings.TrimSpace(req.Message))
	}
	return updated, nil
}

func (s *AppealService) resolveReviewer(ctx context.Context, appeal *models.Appeal, reviewerID string) (models.ReviewerRef, error) {
	if reviewerID == "" {
		return s.assigner.Assign(ctx, appeal, appeal.Priority), nil
	}
	if s.reviewers == nil {
		return models.ReviewerRef{ID: reviewerID}, nil
	}
	reviewer, err := s.reviewers.GetByID(ctx, reviewerID)
	if err != nil {
		if errors.Is(err, repository.ErrReviewerNotFound) {
			return models.ReviewerRef{}, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, "unknown reviewer"), "reviewerId", reviewerID)
		}
		return models.ReviewerRef{}, appErrors.Wrap(err, appErrors.ErrStorage, "failed to load reviewer")
	}
	return reviewer.Ref(), nil
}

func (s *AppealService) afterTransition(ctx context.Context, from models.AppealStatus, appeal *models.Appeal, actor models.Actor) {
	s.metrics.AppealTransition(from, appeal.Status)
	for _, action := range transitionAuditActions(appeal.Status) {
		details := map[string]string{"from": string(from), "to": string(appeal.Status)}
		if appeal.Decision != nil {
			details["outcome"] = string(appeal.Decision.Outcome)
		}
		if action == models.AuditActionStartReview && appeal.AssignedReviewer != nil {
			details["reviewer"] = appeal.AssignedReviewer.ID
		}
		s.audit.Record(ctx, newAuditEntry(appeal.AppealID, action, actor, details))
	}
	logger.ForAppeal(s.logger, appeal.AppealID).Sugar().Infow("appeal status changed", "from", from, "to", appeal.Status, "actor_id", actor.ID)

	if actor.ID == appeal.EmployeeID {
		return
	}
	eventType := models.EventStatusChanged
	message := fmt.Sprintf("Your appeal is now %s.", appeal.Status)
	if appeal.Status == models.AppealStatusAdditionalInfoRequested {
		eventType = models.EventInfoRequested
		message = "The reviewer requested additional information for your appeal."
	}
	s.notify(ctx, appeal, eventType, employeeRecipient(appeal), fmt.Sprintf("Appeal %s updated", appeal.AppealID), message)
}

func (s *AppealService) notify(ctx context.Context, appeal *models.Appeal, eventType models.NotificationEventType, to models.Recipient, subject, message string) {
	if s.notifier == nil {
		return
	}
	result := s.notifier.Notify(ctx, models.NotificationEvent{
		Type:       eventType,
		AppealID:   appeal.AppealID,
		Priority:   appeal.Priority,
		Subject:    subject,
		Message:    message,
		Recipients: []models.Recipient{to},
	})
	if !result.Email && !result.Push && !result.SMS {
		s.logger.Sugar().Warnw("notification not delivered on any channel", "appeal_id", appeal.AppealID, "event", eventType)
	}
}

func employeeRecipient(appeal *models.Appeal) models.Recipient {
	return models.Recipient{ID: appeal.EmployeeID, Name: appeal.EmployeeName}
}

func reviewerRecipient(ref *models.ReviewerRef) models.Recipient {
	return models.Recipient{ID: ref.ID, Name: ref.Name, Email: ref.Email}
}

// mapStoreError translates repository errors into API errors.
func mapStoreError(err error, fallback *appErrors.Error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrAppealNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "appeal not found")
	case errors.Is(err, repository.ErrDuplicateAppeal):
		return appErrors.Wrap(err, appErrors.ErrDuplicateID, "")
	default:
		return appErrors.Wrap(err, fallback, message)
	}
}

func updateError(err error) error {
	mapped := mapStoreError(err, appErrors.ErrUpdate, "failed to update appeal")
	var appErr *appErrors.Error
	if errors.As(mapped, &appErr) && appErr.Code == appErrors.ErrUpdate.Code {
		return appErrors.WithDetail(appErr, "cause", appErrors.ErrStorage.Code)
	}
	return mapped
}
