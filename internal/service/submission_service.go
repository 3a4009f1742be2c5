package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
	"github.com/noah-isme/staff-appeal-api/pkg/logger"
)

const (
	// MinReasonLength is the minimum appeal reason length in characters.
	MinReasonLength = 100
	// DefaultResponseSLADays is the default number of days until a response is due.
	DefaultResponseSLADays = 21

	maxIDAttempts = 3
)

type eligibilityChecker interface {
	Check(ctx context.Context, periodID string) (models.EligibilityResult, error)
}

// SubmissionService files new appeals.
type SubmissionService struct {
	store       appealStore
	eligibility eligibilityChecker
	engine      *PriorityEngine
	assigner    reviewerAssigner
	audit       auditRecorder
	notifier    eventNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	evidence    EvidencePolicy
	slaDays     int
	logger      *zap.Logger
	now         func() time.Time
	newID       func(time.Time) string
}

// SubmissionOption configures the service.
type SubmissionOption func(*SubmissionService)

// WithSubmissionClock overrides the clock.
func WithSubmissionClock(now func() time.Time) SubmissionOption {
	return func(s *SubmissionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAppealIDGenerator overrides appeal id generation.
func WithAppealIDGenerator(gen func(time.Time) string) SubmissionOption {
	return func(s *SubmissionService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithResponseSLADays sets the days until a response is expected.
func WithResponseSLADays(days int) SubmissionOption {
	return func(s *SubmissionService) {
		if days > 0 {
			s.slaDays = days
		}
	}
}

// WithSubmissionEvidencePolicy sets evidence limits.
func WithSubmissionEvidencePolicy(policy EvidencePolicy) SubmissionOption {
	return func(s *SubmissionService) {
		s.evidence = policy
	}
}

// WithSubmissionMetrics attaches metrics.
func WithSubmissionMetrics(metrics *MetricsService) SubmissionOption {
	return func(s *SubmissionService) {
		s.metrics = metrics
	}
}

// NewSubmissionService constructs the service.
func NewSubmissionService(store appealStore, eligibility eligibilityChecker, engine *PriorityEngine, assigner reviewerAssigner, audit auditRecorder, notifier eventNotifier, validate *validator.Validate, logger *zap.Logger, opts ...SubmissionOption) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewPriorityEngine(SchemeStandard)
	}
	svc := &SubmissionService{
		store:       store,
		eligibility: eligibility,
		engine:      engine,
		assigner:    assigner,
		audit:       audit,
		notifier:    notifier,
		validator:   validate,
		slaDays:     DefaultResponseSLADays,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       NewAppealID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// NewAppealID returns an id of the form APL-<timestamp>-<suffix>.
func NewAppealID(now time.Time) string {
	return fmt.Sprintf("APL-%s-%s", now.UTC().Format("20060102T150405"), shortuuid.New()[:8])
}

// ReasonLength counts the characters of a trimmed reason.
func ReasonLength(reason string) int {
	return utf8.RuneCountInString(strings.TrimSpace(reason))
}

func checkReason(reason string) error {
	n := ReasonLength(reason)
	if n >= MinReasonLength {
		return nil
	}
	err := appErrors.Clone(appErrors.ErrInvalidReason, fmt.Sprintf("appeal reason must be at least %d characters, got %d", MinReasonLength, n))
	return appErrors.WithDetail(err, "length", strconv.Itoa(n))
}

// Submit validates, persists and routes a new appeal.
func (s *SubmissionService) Submit(ctx context.Context, req dto.SubmitAppealRequest, actor models.Actor) (*dto.SubmitAppealResponse, error) {
	appeal, err := s.prepare(ctx, req, actor)
	if err != nil {
		return nil, err
	}
	if err := s.create(ctx, appeal); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, newAuditEntry(appeal.AppealID, models.AuditActionSubmit, actor, map[string]string{
		"priority": string(appeal.Priority),
		"channel":  string(appeal.SubmittedVia),
	}))
	s.afterCreate(ctx, appeal)
	s.metrics.AppealSubmitted(appeal.Priority, appeal.SubmittedVia)

	return responseFor(appeal), nil
}

// prepare runs every gate that precedes persistence and builds the record.
func (s *SubmissionService) prepare(ctx context.Context, req dto.SubmitAppealRequest, actor models.Actor) (*models.Appeal, error) {
	if err := checkReason(req.AppealReason); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation, "invalid payload")
	}
	if err := s.evidence.Validate(req.EvidenceDocuments, 0); err != nil {
		return nil, err
	}

	employeeID := strings.TrimSpace(req.EmployeeID)
	if employeeID == "" {
		employeeID = actor.ID
	}
	if employeeID == "" {
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, "employeeId is required"), "field", "employeeId")
	}
	if employeeID != actor.ID && !actor.Role.IsOperator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot submit an appeal for another employee")
	}

	result, err := s.eligibility.Check(ctx, req.EvaluationPeriod)
	if err != nil {
		return nil, err
	}
	if !result.Eligible {
		perr := appErrors.Clone(appErrors.ErrPeriodInvalid, result.Reason)
		perr = appErrors.WithDetail(perr, "legacyCode", "E002")
		return nil, appErrors.WithDetail(perr, "reason", result.Code)
	}

	channel := req.SubmittedVia
	if channel == "" {
		channel = models.SubmittedViaWeb
	}
	now := s.now()
	appeal := &models.Appeal{
		EmployeeID:           employeeID,
		EmployeeName:         strings.TrimSpace(req.EmployeeName),
		DepartmentID:         req.DepartmentID,
		JobCategory:          req.JobCategory,
		EvaluationPeriod:     req.EvaluationPeriod,
		AppealCategory:       req.AppealCategory,
		AppealReason:         req.AppealReason,
		OriginalScore:        req.OriginalScore,
		RequestedScore:       req.RequestedScore,
		EvidenceDocuments:    toEvidenceDocuments(req.EvidenceDocuments),
		Status:               models.AppealStatusReceived,
		ExpectedResponseDate: now.AddDate(0, 0, s.slaDays),
		CreatedAt:            now,
		UpdatedAt:            now,
		SubmittedVia:         channel,
		CommunicationLog:     []models.CommunicationEntry{},
	}
	appeal.Priority = s.engine.Evaluate(models.PriorityInputFor(appeal))
	return appeal, nil
}

// create assigns an id when missing and stores the appeal, retrying id collisions.
func (s *SubmissionService) create(ctx context.Context, appeal *models.Appeal) error {
	generate := appeal.AppealID == ""
	var err error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if generate {
			appeal.AppealID = s.newID(appeal.CreatedAt)
		}
		err = s.store.Create(ctx, appeal)
		if err == nil {
			return nil
		}
		if !generate || !errors.Is(err, repository.ErrDuplicateAppeal) {
			break
		}
		s.logger.Sugar().Warnw("appeal id collision, regenerating", "appeal_id", appeal.AppealID)
	}
	if errors.Is(err, repository.ErrDuplicateAppeal) {
		return appErrors.Wrap(err, appErrors.ErrDuplicateID, "")
	}
	return appErrors.WithDetail(appErrors.Wrap(err, appErrors.ErrSubmit, "failed to store appeal"), "cause", appErrors.ErrStorage.Code)
}

// afterCreate performs the best-effort steps that follow a stored submission.
func (s *SubmissionService) afterCreate(ctx context.Context, appeal *models.Appeal) {
	log := logger.ForAppeal(s.logger, appeal.AppealID)
	if s.assigner != nil {
		ref := s.assigner.Assign(ctx, appeal, appeal.Priority)
		updated, err := s.store.UpdateInPlace(ctx, appeal.AppealID, func(a *models.Appeal) error {
			r := ref
			a.AssignedReviewer = &r
			return nil
		})
		if err != nil {
			log.Sugar().Warnw("failed to store reviewer assignment", "reviewer_id", ref.ID, "error", err)
			r := ref
			appeal.AssignedReviewer = &r
		} else {
			appeal.AssignedReviewer = updated.AssignedReviewer
			appeal.UpdatedAt = updated.UpdatedAt
		}
	}

	if s.notifier == nil {
		return
	}
	recipients := []models.Recipient{employeeRecipient(appeal)}
	if appeal.AssignedReviewer != nil {
		recipients = append(recipients, reviewerRecipient(appeal.AssignedReviewer))
	}
	result := s.notifier.Notify(ctx, models.NotificationEvent{
		Type:       models.EventAppealSubmitted,
		AppealID:   appeal.AppealID,
		Priority:   appeal.Priority,
		Subject:    fmt.Sprintf("Appeal %s received", appeal.AppealID),
		Message:    fmt.Sprintf("Appeal received with %s priority. A response is expected by %s.", appeal.Priority, appeal.ExpectedResponseDate.Format("2006-01-02")),
		Recipients: recipients,
		Urgent:     appeal.Priority == models.PriorityHigh,
	})
	if !result.Email && !result.Push && !result.SMS {
		log.Sugar().Warnw("submission notification not delivered on any channel")
	}
}

func responseFor(appeal *models.Appeal) *dto.SubmitAppealResponse {
	return &dto.SubmitAppealResponse{
		AppealID:             appeal.AppealID,
		ExpectedResponseDate: appeal.ExpectedResponseDate,
		Priority:             appeal.Priority,
		AssignedReviewer:     appeal.AssignedReviewer,
		RemoteReference:      appeal.RemoteReference,
	}
}
