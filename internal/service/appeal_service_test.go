package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
)

type appealFixture struct {
	*submissionFixture
	appeals *AppealService
}

func newAppealFixture(t *testing.T) *appealFixture {
	t.Helper()
	sf := newSubmissionFixture(t)
	directory := reviewerDirectoryStub{reviewers: []models.Reviewer{
		{ID: "rev-1", Name: "Rina", Tier: models.TierTeamLeader},
		{ID: "rev-9", Name: "Bayu", Tier: models.TierDepartmentHead},
	}}
	appeals := NewAppealService(sf.store, sf.assigner, sf.audit, sf.notifier, nil, zap.NewNop(),
		WithAppealClock(fixedClock), WithReviewerLookup(directory))
	return &appealFixture{submissionFixture: sf, appeals: appeals}
}

func (f *appealFixture) submit(t *testing.T) string {
	t.Helper()
	resp, err := f.svc.Submit(context.Background(), validSubmitRequest(), employeeActor)
	require.NoError(t, err)
	return resp.AppealID
}

func (f *appealFixture) move(t *testing.T, id string, status models.AppealStatus, decision *dto.DecisionInput) *models.Appeal {
	t.Helper()
	updated, err := f.appeals.UpdateStatus(context.Background(), id, dto.UpdateStatusRequest{Status: status, Decision: decision}, reviewerActor)
	require.NoError(t, err)
	return updated
}

func TestAppealLifecycleToResolution(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)

	reviewing := f.move(t, id, models.AppealStatusUnderReview, nil)
	require.NotNil(t, reviewing.ReviewStartDate)
	assert.Equal(t, "rev-1", reviewing.AssignedReviewer.ID)

	waiting := f.move(t, id, models.AppealStatusAdditionalInfoRequested, nil)
	require.NotEmpty(t, waiting.CommunicationLog)
	assert.Equal(t, models.CommunicationInfoRequest, waiting.CommunicationLog[len(waiting.CommunicationLog)-1].Type)

	resumed, err := f.appeals.ProvideAdditionalInfo(context.Background(), dto.AdditionalInfoRequest{
		AppealID:       id,
		AdditionalInfo: "Attached the sign-off email from the project sponsor.",
		EvidenceDocuments: []dto.EvidenceDocumentInput{
			{FileName: "signoff.pdf", MIMEType: "application/pdf", SizeBytes: 2048, Reference: "s3://appeals/signoff.pdf"},
		},
	}, employeeActor)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusUnderReview, resumed.Status)
	assert.Contains(t, resumed.AppealReason, "[Additional information 2025-03-10]")
	assert.Len(t, resumed.EvidenceDocuments, 1)
	assert.Equal(t, *reviewing.ReviewStartDate, *resumed.ReviewStartDate, "review start is kept on resume")

	resolved := f.move(t, id, models.AppealStatusResolved, &dto.DecisionInput{
		Outcome:       models.OutcomePartiallyApproved,
		Reason:        "Project impact confirmed; score adjusted.",
		AdjustedScore: floatPtr(64),
	})
	require.NotNil(t, resolved.Decision)
	assert.Equal(t, models.OutcomePartiallyApproved, resolved.Decision.Outcome)
	assert.Equal(t, "rev-1", resolved.Decision.DecidedBy)
	require.NotNil(t, resolved.FinalScore)
	assert.Equal(t, 64.0, *resolved.FinalScore)
	require.NotNil(t, resolved.ReviewEndDate)
	require.NotNil(t, resolved.ReviewerComments)
	assert.Equal(t, "Project impact confirmed; score adjusted.", *resolved.ReviewerComments)

	assert.Equal(t, []models.AuditAction{
		models.AuditActionSubmit,
		models.AuditActionStartReview,
		models.AuditActionRequestInfo,
		models.AuditActionProvideInfo,
		models.AuditActionCompleteReview,
		models.AuditActionApprove,
	}, f.audit.actions())

	stored, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusResolved, stored.Status)
	inProgress, err := f.store.ListByBucket(context.Background(), repository.BucketInProgress)
	require.NoError(t, err)
	assert.Empty(t, inProgress)
}

func TestRejectForcesRejectedOutcome(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)
	f.move(t, id, models.AppealStatusUnderReview, nil)

	rejected := f.move(t, id, models.AppealStatusRejected, &dto.DecisionInput{
		Outcome:       models.OutcomeApproved,
		Reason:        "Evaluation criteria were applied correctly.",
		AdjustedScore: floatPtr(90),
	})
	assert.Equal(t, models.OutcomeRejected, rejected.Decision.Outcome)
	assert.Nil(t, rejected.FinalScore)
	assert.Contains(t, f.audit.actions(), models.AuditActionReject)
}

func TestIllegalTransitionLeavesRecordUntouched(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)
	before, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	auditBefore := len(f.audit.actions())

	_, err = f.appeals.UpdateStatus(context.Background(), id, dto.UpdateStatusRequest{
		Status:   models.AppealStatusResolved,
		Decision: &dto.DecisionInput{Outcome: models.OutcomeApproved, Reason: "ok"},
	}, reviewerActor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidStatus.Code, appErr.Code)
	assert.Equal(t, "received", appErr.Details["from"])
	assert.Equal(t, "resolved", appErr.Details["to"])

	after, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.audit.actions(), auditBefore)
}

func TestCompletingReviewRequiresDecision(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)
	f.move(t, id, models.AppealStatusUnderReview, nil)

	_, err := f.appeals.UpdateStatus(context.Background(), id, dto.UpdateStatusRequest{Status: models.AppealStatusResolved}, reviewerActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	stored, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusUnderReview, stored.Status)
}

func TestStartReviewWithExplicitReviewer(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)

	updated, err := f.appeals.UpdateStatus(context.Background(), id, dto.UpdateStatusRequest{
		Status:     models.AppealStatusUnderReview,
		ReviewerID: "rev-9",
	}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "rev-9", updated.AssignedReviewer.ID)

	other := f.submit(t)
	_, err = f.appeals.UpdateStatus(context.Background(), other, dto.UpdateStatusRequest{
		Status:     models.AppealStatusUnderReview,
		ReviewerID: "ghost",
	}, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestWithdrawResolvedAppealIsRejected(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)
	f.move(t, id, models.AppealStatusUnderReview, nil)
	f.move(t, id, models.AppealStatusResolved, &dto.DecisionInput{Outcome: models.OutcomeApproved, Reason: "Agreed."})

	before, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	auditBefore := len(f.audit.actions())

	_, err = f.appeals.Withdraw(context.Background(), dto.WithdrawAppealRequest{AppealID: id}, employeeActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStatus.Code))

	after, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.audit.actions(), auditBefore)
}

func TestWithdrawByOwnerAndOperator(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)

	stranger := models.Actor{ID: "emp-2", Role: models.RoleEmployee}
	_, err := f.appeals.Withdraw(context.Background(), dto.WithdrawAppealRequest{AppealID: id}, stranger)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	withdrawn, err := f.appeals.Withdraw(context.Background(), dto.WithdrawAppealRequest{AppealID: id, Comments: "Resolved informally."}, employeeActor)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusWithdrawn, withdrawn.Status)
	assert.Nil(t, withdrawn.Decision)
	require.NotNil(t, withdrawn.ReviewEndDate)
	assert.Contains(t, f.audit.actions(), models.AuditActionWithdraw)

	second := f.submit(t)
	f.move(t, second, models.AppealStatusUnderReview, nil)
	byOperator, err := f.appeals.UpdateStatus(context.Background(), second, dto.UpdateStatusRequest{Status: models.AppealStatusWithdrawn}, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusWithdrawn, byOperator.Status)
}

func TestWithdrawUnknownAppeal(t *testing.T) {
	f := newAppealFixture(t)
	_, err := f.appeals.Withdraw(context.Background(), dto.WithdrawAppealRequest{AppealID: "APL-missing"}, employeeActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestProvideAdditionalInfoRules(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)

	_, err := f.appeals.ProvideAdditionalInfo(context.Background(), dto.AdditionalInfoRequest{
		AppealID:     id,
		AppealReason: strings.Repeat("x", 99),
	}, employeeActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidReason.Code))

	replacement := strings.Repeat("A corrected and more detailed reason. ", 3)
	updated, err := f.appeals.ProvideAdditionalInfo(context.Background(), dto.AdditionalInfoRequest{
		AppealID:     id,
		AppealReason: replacement,
	}, employeeActor)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusReceived, updated.Status)
	assert.Equal(t, replacement, updated.AppealReason)

	f.move(t, id, models.AppealStatusUnderReview, nil)
	f.move(t, id, models.AppealStatusRejected, &dto.DecisionInput{Outcome: models.OutcomeRejected, Reason: "No new facts."})
	_, err = f.appeals.ProvideAdditionalInfo(context.Background(), dto.AdditionalInfoRequest{AppealID: id, AdditionalInfo: "late"}, employeeActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStatus.Code))
}

func TestAddCommentInAnyStatus(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)
	_, err := f.appeals.Withdraw(context.Background(), dto.WithdrawAppealRequest{AppealID: id}, employeeActor)
	require.NoError(t, err)

	updated, err := f.appeals.AddComment(context.Background(), id, dto.AddCommentRequest{Message: "Thanks for the quick response."}, reviewerActor)
	require.NoError(t, err)
	last := updated.CommunicationLog[len(updated.CommunicationLog)-1]
	assert.Equal(t, models.CommunicationComment, last.Type)
	assert.Equal(t, "rev-1", last.From)
	assert.Equal(t, models.AuditActionComment, f.audit.actions()[len(f.audit.actions())-1])

	stranger := models.Actor{ID: "emp-2", Role: models.RoleEmployee}
	_, err = f.appeals.AddComment(context.Background(), id, dto.AddCommentRequest{Message: "hi"}, stranger)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
}

func TestGetAndListVisibility(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)

	appeal, err := f.appeals.Get(context.Background(), id, employeeActor)
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusReceived, appeal.Status)

	_, err = f.appeals.Get(context.Background(), id, models.Actor{ID: "emp-2", Role: models.RoleEmployee})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	_, err = f.appeals.Get(context.Background(), "APL-missing", reviewerActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	list, err := f.appeals.ListByEmployee(context.Background(), "emp-1", reviewerActor)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.appeals.ListByEmployee(context.Background(), "emp-1", models.Actor{ID: "emp-2", Role: models.RoleEmployee})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
}

func TestConcurrentCompletionHasOneWinner(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)
	f.move(t, id, models.AppealStatusUnderReview, nil)

	requests := []dto.UpdateStatusRequest{
		{Status: models.AppealStatusResolved, Decision: &dto.DecisionInput{Outcome: models.OutcomeApproved, Reason: "Agreed."}},
		{Status: models.AppealStatusRejected, Decision: &dto.DecisionInput{Outcome: models.OutcomeRejected, Reason: "Declined."}},
	}
	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req dto.UpdateStatusRequest) {
			defer wg.Done()
			_, errs[i] = f.appeals.UpdateStatus(context.Background(), id, req, reviewerActor)
		}(i, req)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStatus.Code))
		}
	}
	assert.Equal(t, 1, failures)
}

type migrateFailureStore struct {
	*repository.FileAppealRepository
}

func (s migrateFailureStore) Migrate(context.Context, string, models.AppealStatus, repository.AppealMutator) (*models.Appeal, error) {
	return nil, errDiskFull
}

func TestUpdateStatusStorageFailureIsUpdateError(t *testing.T) {
	f := newAppealFixture(t)
	id := f.submit(t)
	svc := NewAppealService(migrateFailureStore{f.store}, f.assigner, f.audit, f.notifier, nil, zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), id, dto.UpdateStatusRequest{Status: models.AppealStatusUnderReview}, reviewerActor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpdate.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrStorage.Code, appErr.Details["cause"])
}
