package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
	"github.com/noah-isme/staff-appeal-api/pkg/evaluation"
	"github.com/noah-isme/staff-appeal-api/pkg/logger"
)

const (
	// DefaultRemoteAttempts bounds calls to the evaluation system per submission.
	DefaultRemoteAttempts = 3
	// DefaultRemoteBaseDelay is the delay before the second attempt; it doubles afterwards.
	DefaultRemoteBaseDelay = time.Second
)

type draftStore interface {
	Save(ctx context.Context, draft *models.SubmissionDraft) error
	Get(ctx context.Context, key string) (*models.SubmissionDraft, error)
	Delete(ctx context.Context, key string) error
}

type remoteSubmitter interface {
	Submit(ctx context.Context, idempotencyKey string, payload interface{}) (*evaluation.Acceptance, error)
}

// RemoteSubmissionService files appeals that must first be accepted by the
// external evaluation system. A local draft survives failed attempts so a
// retry is the same logical submission.
type RemoteSubmissionService struct {
	pipeline    *SubmissionService
	remote      remoteSubmitter
	drafts      draftStore
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(context.Context, time.Duration) error
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// RemoteSubmissionOption configures the service.
type RemoteSubmissionOption func(*RemoteSubmissionService)

// WithRetryPolicy sets the attempt bound and the base backoff delay.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) RemoteSubmissionOption {
	return func(s *RemoteSubmissionService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			s.baseDelay = baseDelay
		}
	}
}

// WithRetrySleep replaces the backoff sleep.
func WithRetrySleep(sleep func(context.Context, time.Duration) error) RemoteSubmissionOption {
	return func(s *RemoteSubmissionService) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithRemoteMetrics attaches metrics.
func WithRemoteMetrics(metrics *MetricsService) RemoteSubmissionOption {
	return func(s *RemoteSubmissionService) {
		s.metrics = metrics
	}
}

// NewRemoteSubmissionService constructs the service on top of the local pipeline.
func NewRemoteSubmissionService(pipeline *SubmissionService, remote remoteSubmitter, drafts draftStore, logger *zap.Logger, opts ...RemoteSubmissionOption) *RemoteSubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RemoteSubmissionService{
		pipeline:    pipeline,
		remote:      remote,
		drafts:      drafts,
		maxAttempts: DefaultRemoteAttempts,
		baseDelay:   DefaultRemoteBaseDelay,
		sleep:       sleepContext,
		logger:      logger,
		now:         pipeline.now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IdempotencyKey derives the remote idempotency key of a submission.
func IdempotencyKey(appealID, contentHash string) string {
	sum := sha256.Sum256([]byte(appealID + contentHash))
	return hex.EncodeToString(sum[:])
}

type submissionContent struct {
	EmployeeID        string                      `json:"employeeId"`
	EmployeeName      string                      `json:"employeeName"`
	DepartmentID      string                      `json:"departmentId"`
	JobCategory       string                      `json:"jobCategory"`
	EvaluationPeriod  string                      `json:"evaluationPeriod"`
	AppealCategory    models.AppealCategory       `json:"appealCategory"`
	AppealReason      string                      `json:"appealReason"`
	OriginalScore     *float64                    `json:"originalScore"`
	RequestedScore    *float64                    `json:"requestedScore"`
	EvidenceDocuments []dto.EvidenceDocumentInput `json:"evidenceDocuments"`
}

// ContentHash fingerprints the user supplied content of a submission.
func ContentHash(employeeID string, req dto.SubmitAppealRequest) (string, error) {
	raw, err := json.Marshal(submissionContent{
		EmployeeID:        employeeID,
		EmployeeName:      strings.TrimSpace(req.EmployeeName),
		DepartmentID:      req.DepartmentID,
		JobCategory:       req.JobCategory,
		EvaluationPeriod:  req.EvaluationPeriod,
		AppealCategory:    req.AppealCategory,
		AppealReason:      req.AppealReason,
		OriginalScore:     req.OriginalScore,
		RequestedScore:    req.RequestedScore,
		EvidenceDocuments: req.EvidenceDocuments,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Submit sends the appeal to the evaluation system and stores it locally once accepted.
func (s *RemoteSubmissionService) Submit(ctx context.Context, draftKey string, req dto.SubmitAppealRequest, actor models.Actor) (*dto.SubmitAppealResponse, error) {
	key := strings.TrimSpace(draftKey)
	if key == "" {
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, "draft key is required"), "field", "draftKey")
	}
	if req.SubmittedVia == "" {
		req.SubmittedVia = models.SubmittedViaCrossSystem
	}

	appeal, err := s.pipeline.prepare(ctx, req, actor)
	if err != nil {
		return nil, err
	}
	hash, err := ContentHash(appeal.EmployeeID, req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to fingerprint submission")
	}

	draft, err := s.loadDraft(ctx, key, appeal, hash)
	if err != nil {
		return nil, err
	}

	acceptance, err := s.send(ctx, draft)
	if err != nil {
		return nil, err
	}

	stored := draft.Appeal.Clone()
	stored.RemoteReference = acceptance.Reference
	log := logger.ForAppeal(s.logger, stored.AppealID)
	if err := s.pipeline.store.Create(ctx, stored); err != nil {
		if !errors.Is(err, repository.ErrDuplicateAppeal) {
			log.Sugar().Errorw("accepted remotely but local store failed", "remote_reference", acceptance.Reference, "error", err)
			perr := appErrors.Wrap(err, appErrors.ErrSubmit, "failed to store accepted appeal")
			perr = appErrors.WithDetail(perr, "cause", appErrors.ErrStorage.Code)
			return nil, appErrors.WithDetail(perr, "retry", "true")
		}
		existing, gerr := s.pipeline.store.GetByID(ctx, stored.AppealID)
		if gerr != nil {
			return nil, mapStoreError(gerr, appErrors.ErrSubmit, "failed to load accepted appeal")
		}
		s.clearDraft(ctx, key)
		return responseFor(existing), nil
	}

	s.pipeline.audit.Record(ctx, newAuditEntry(stored.AppealID, models.AuditActionSubmit, actor, map[string]string{
		"priority": string(stored.Priority),
		"channel":  string(stored.SubmittedVia),
		"attempts": strconv.Itoa(draft.Attempts),
	}))
	s.pipeline.audit.Record(ctx, newAuditEntry(stored.AppealID, models.AuditActionReceive, models.SystemActor, map[string]string{
		"remoteReference": acceptance.Reference,
		"acceptedAt":      acceptance.AcceptedAt.UTC().Format(time.RFC3339),
	}))
	s.pipeline.afterCreate(ctx, stored)
	s.pipeline.metrics.AppealSubmitted(stored.Priority, stored.SubmittedVia)
	s.clearDraft(ctx, key)

	return responseFor(stored), nil
}

// Resume returns the pending draft stored under key.
func (s *RemoteSubmissionService) Resume(ctx context.Context, key string) (*models.SubmissionDraft, error) {
	draft, err := s.drafts.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrDraftNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "draft not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage, "failed to load draft")
	}
	return draft, nil
}

// loadDraft reuses the appeal id of an existing draft so retries stay one logical submission.
func (s *RemoteSubmissionService) loadDraft(ctx context.Context, key string, appeal *models.Appeal, hash string) (*models.SubmissionDraft, error) {
	now := s.now()
	draft, err := s.drafts.Get(ctx, key)
	switch {
	case err == nil && draft.Appeal.EmployeeID != appeal.EmployeeID:
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrForbidden, "draft key belongs to another employee"), "draftKey", key)
	case err == nil && draft.ContentHash == hash:
		draft.LastError = ""
		return draft, nil
	case err == nil:
		appeal.AppealID = draft.Appeal.AppealID
		draft.Appeal = *appeal
		draft.ContentHash = hash
		draft.Attempts = 0
		draft.LastError = ""
		draft.Retryable = false
	case errors.Is(err, repository.ErrDraftNotFound):
		appeal.AppealID = s.pipeline.newID(appeal.CreatedAt)
		draft = &models.SubmissionDraft{
			Key:         key,
			Appeal:      *appeal,
			ContentHash: hash,
			CreatedAt:   now,
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrStorage, "failed to load draft")
	}
	draft.IdempotencyKey = IdempotencyKey(draft.Appeal.AppealID, hash)
	draft.Appeal.IdempotencyKey = draft.IdempotencyKey
	draft.UpdatedAt = now
	return draft, nil
}

// send runs the bounded retry loop. The draft is saved before every attempt.
func (s *RemoteSubmissionService) send(ctx context.Context, draft *models.SubmissionDraft) (*evaluation.Acceptance, error) {
	log := logger.ForAppeal(s.logger, draft.Appeal.AppealID)
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		draft.Attempts++
		draft.UpdatedAt = s.now()
		if err := s.drafts.Save(ctx, draft); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrStorage, "failed to save submission draft")
		}

		started := time.Now()
		acceptance, err := s.remote.Submit(ctx, draft.IdempotencyKey, draft.Appeal)
		if err == nil {
			s.metrics.RemoteAttempt("accepted", time.Since(started))
			return acceptance, nil
		}

		lastErr = err
		draft.LastError = err.Error()
		draft.Retryable = evaluation.IsTransient(err)
		if !draft.Retryable {
			s.metrics.RemoteAttempt("terminal", time.Since(started))
			log.Sugar().Warnw("remote submission rejected", "attempt", attempt, "error", err)
			break
		}
		s.metrics.RemoteAttempt("transient", time.Since(started))
		log.Sugar().Warnw("remote submission failed, will retry", "attempt", attempt, "max_attempts", s.maxAttempts, "error", err)
		if attempt == s.maxAttempts {
			break
		}
		if err := s.sleep(ctx, s.baseDelay<<(attempt-1)); err != nil {
			lastErr = err
			break
		}
	}

	draft.UpdatedAt = s.now()
	if err := s.drafts.Save(context.WithoutCancel(ctx), draft); err != nil {
		log.Sugar().Warnw("failed to save draft after remote failure", "draft_key", draft.Key, "error", err)
	}

	perr := appErrors.Wrap(lastErr, appErrors.ErrSubmitRejected, "")
	if draft.Retryable {
		perr = appErrors.Wrap(lastErr, appErrors.ErrSubmit, "evaluation system unavailable, retry later")
	}
	perr = appErrors.WithDetail(perr, "retry", strconv.FormatBool(draft.Retryable))
	perr = appErrors.WithDetail(perr, "attempts", strconv.Itoa(draft.Attempts))
	return nil, appErrors.WithDetail(perr, "draftKey", draft.Key)
}

func (s *RemoteSubmissionService) clearDraft(ctx context.Context, key string) {
	if err := s.drafts.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Sugar().Warnw("failed to clear submission draft", "draft_key", key, "error", err)
	}
}
