package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	"github.com/noah-isme/staff-appeal-api/pkg/evaluation"
	"github.com/noah-isme/staff-appeal-api/pkg/storage"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type appealAuditStub struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (s *appealAuditStub) Record(_ context.Context, entry models.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *appealAuditStub) actions() []models.AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditAction, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

type notifierStub struct {
	mu     sync.Mutex
	events []models.NotificationEvent
	admins []models.AdministratorNotification
}

func (s *notifierStub) Notify(_ context.Context, event models.NotificationEvent) models.DeliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return models.DeliveryResult{Email: true, Push: true, SMS: event.IsUrgent()}
}

func (s *notifierStub) NotifyAdministrators(_ context.Context, n models.AdministratorNotification) models.DeliveryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = append(s.admins, n)
	return models.DeliveryResult{Email: true, Push: true, SMS: true}
}

type assignerStub struct {
	ref   models.ReviewerRef
	calls int
}

func (s *assignerStub) Assign(_ context.Context, _ *models.Appeal, _ models.Priority) models.ReviewerRef {
	s.calls++
	return s.ref
}

type periodProviderStub struct {
	periods map[string]*models.EvaluationPeriod
	err     error
}

func (s periodProviderStub) GetByID(_ context.Context, id string) (*models.EvaluationPeriod, error) {
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.periods[id]; ok {
		return p, nil
	}
	return nil, repository.ErrPeriodNotFound
}

type reviewerDirectoryStub struct {
	reviewers []models.Reviewer
	err       error
}

func (s reviewerDirectoryStub) FindByTier(_ context.Context, tier models.ReviewerTier, departmentID string) (*models.Reviewer, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.reviewers {
		if s.reviewers[i].Tier == tier {
			return &s.reviewers[i], nil
		}
	}
	return nil, repository.ErrReviewerNotFound
}

func (s reviewerDirectoryStub) GetByID(_ context.Context, id string) (*models.Reviewer, error) {
	for i := range s.reviewers {
		if s.reviewers[i].ID == id {
			return &s.reviewers[i], nil
		}
	}
	return nil, repository.ErrReviewerNotFound
}

type remoteStub struct {
	mu        sync.Mutex
	responses []error
	keys      []string
	reference string
}

func (s *remoteStub) Submit(_ context.Context, key string, _ interface{}) (*evaluation.Acceptance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	if len(s.responses) > 0 {
		err := s.responses[0]
		s.responses = s.responses[1:]
		if err != nil {
			return nil, err
		}
	}
	return &evaluation.Acceptance{Reference: s.reference, AcceptedAt: fixedNow}, nil
}

type memoryDraftStore struct {
	mu     sync.Mutex
	drafts map[string]models.SubmissionDraft
	saves  int
}

func newMemoryDraftStore() *memoryDraftStore {
	return &memoryDraftStore{drafts: make(map[string]models.SubmissionDraft)}
}

func (s *memoryDraftStore) Save(_ context.Context, draft *models.SubmissionDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.drafts[draft.Key] = *draft
	return nil
}

func (s *memoryDraftStore) Get(_ context.Context, key string) (*models.SubmissionDraft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[key]
	if !ok {
		return nil, repository.ErrDraftNotFound
	}
	return &d, nil
}

func (s *memoryDraftStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, key)
	return nil
}

type failingStore struct {
	appealStore
	err error
}

func (s failingStore) Create(context.Context, *models.Appeal) error { return s.err }

var errDiskFull = errors.New("disk full")

func newFileStore(t *testing.T) *repository.FileAppealRepository {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return repository.NewFileAppealRepository(files, zap.NewNop())
}

func activePeriods() periodProviderStub {
	return periodProviderStub{periods: map[string]*models.EvaluationPeriod{
		"2024-H2": {ID: "2024-H2", Name: "Second half 2024", AppealDeadline: fixedNow.Add(48 * time.Hour), Status: models.PeriodStatusActive},
		"2024-H1": {ID: "2024-H1", Name: "First half 2024", AppealDeadline: fixedNow.Add(-24 * time.Hour), Status: models.PeriodStatusActive},
		"2023-H2": {ID: "2023-H2", Name: "Second half 2023", AppealDeadline: fixedNow.Add(48 * time.Hour), Status: models.PeriodStatusClosed},
	}}
}

func validReason() string {
	return strings.Repeat("The review missed the migration project I led. ", 3)
}

func floatPtr(v float64) *float64 { return &v }

func validSubmitRequest() dto.SubmitAppealRequest {
	return dto.SubmitAppealRequest{
		EmployeeName:     "Dana Putri",
		DepartmentID:     "ops",
		EvaluationPeriod: "2024-H2",
		AppealCategory:   models.AppealCategoryCriteriaMisinterpretation,
		AppealReason:     validReason(),
		OriginalScore:    floatPtr(60),
		RequestedScore:   floatPtr(62),
	}
}

var (
	employeeActor = models.Actor{ID: "emp-1", Role: models.RoleEmployee, Name: "Dana Putri"}
	reviewerActor = models.Actor{ID: "rev-1", Role: models.RoleReviewer, Name: "Rina"}
	adminActor    = models.Actor{ID: "hr-1", Role: models.RoleHRAdmin, Name: "HR"}
)

type submissionFixture struct {
	store    *repository.FileAppealRepository
	audit    *appealAuditStub
	notifier *notifierStub
	assigner *assignerStub
	svc      *SubmissionService
}

func newSubmissionFixture(t *testing.T, opts ...SubmissionOption) *submissionFixture {
	t.Helper()
	f := &submissionFixture{
		store:    newFileStore(t),
		audit:    &appealAuditStub{},
		notifier: &notifierStub{},
		assigner: &assignerStub{ref: models.ReviewerRef{ID: "rev-1", Name: "Rina", Tier: models.TierTeamLeader}},
	}
	eligibility := NewEligibilityService(activePeriods(), zap.NewNop(), WithEligibilityClock(fixedClock))
	opts = append([]SubmissionOption{WithSubmissionClock(fixedClock)}, opts...)
	f.svc = NewSubmissionService(f.store, eligibility, NewPriorityEngine(SchemeStandard), f.assigner, f.audit, f.notifier, nil, zap.NewNop(), opts...)
	return f
}
