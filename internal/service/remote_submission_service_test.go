package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
	"github.com/noah-isme/staff-appeal-api/pkg/evaluation"
)

type remoteFixture struct {
	*submissionFixture
	remote *remoteStub
	drafts *memoryDraftStore
	sleeps []time.Duration
	svc    *RemoteSubmissionService
}

func newRemoteFixture(t *testing.T, responses ...error) *remoteFixture {
	t.Helper()
	f := &remoteFixture{
		submissionFixture: newSubmissionFixture(t),
		remote:            &remoteStub{responses: responses, reference: "EVAL-778"},
		drafts:            newMemoryDraftStore(),
	}
	f.svc = NewRemoteSubmissionService(f.submissionFixture.svc, f.remote, f.drafts, zap.NewNop(),
		WithRetrySleep(func(_ context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		}))
	return f
}

func unavailable() error { return &evaluation.StatusError{StatusCode: http.StatusServiceUnavailable} }

func TestRemoteSubmitRetriesTransientFailures(t *testing.T) {
	f := newRemoteFixture(t, unavailable(), unavailable())

	resp, err := f.svc.Submit(context.Background(), "draft-1", validSubmitRequest(), employeeActor)
	require.NoError(t, err)
	assert.Equal(t, "EVAL-778", resp.RemoteReference)

	require.Len(t, f.remote.keys, 3)
	assert.Equal(t, f.remote.keys[0], f.remote.keys[1])
	assert.Equal(t, f.remote.keys[0], f.remote.keys[2])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)
	assert.Equal(t, 3, f.drafts.saves)

	_, err = f.drafts.Get(context.Background(), "draft-1")
	assert.Error(t, err, "draft is cleared after acceptance")

	stored, err := f.store.GetByID(context.Background(), resp.AppealID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmittedViaCrossSystem, stored.SubmittedVia)
	assert.Equal(t, "EVAL-778", stored.RemoteReference)
	assert.Equal(t, f.remote.keys[0], stored.IdempotencyKey)
	assert.Equal(t, []models.AuditAction{models.AuditActionSubmit, models.AuditActionReceive}, f.audit.actions())
}

func TestRemoteSubmitTerminalFailureKeepsDraft(t *testing.T) {
	f := newRemoteFixture(t, &evaluation.StatusError{StatusCode: http.StatusBadRequest, Body: "bad period"})

	_, err := f.svc.Submit(context.Background(), "draft-2", validSubmitRequest(), employeeActor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSubmit.Code, appErr.Code)
	assert.Equal(t, appErrors.KindInput, appErrors.KindOf(err))
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Equal(t, "false", appErr.Details["retry"])
	assert.Len(t, f.remote.keys, 1)
	assert.Empty(t, f.sleeps)

	draft, err := f.drafts.Get(context.Background(), "draft-2")
	require.NoError(t, err)
	assert.False(t, draft.Retryable)
	assert.Equal(t, 1, draft.Attempts)
	assert.Contains(t, draft.LastError, "400")
	assert.Empty(t, f.audit.actions())
}

func TestRemoteSubmitExhaustedThenResubmitted(t *testing.T) {
	f := newRemoteFixture(t, unavailable(), unavailable(), unavailable())

	_, err := f.svc.Submit(context.Background(), "draft-3", validSubmitRequest(), employeeActor)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "true", appErr.Details["retry"])
	assert.Equal(t, "3", appErr.Details["attempts"])
	assert.Equal(t, appErrors.KindTransient, appErrors.KindOf(err))

	resumed, err := f.svc.Resume(context.Background(), "draft-3")
	require.NoError(t, err)
	assert.True(t, resumed.Retryable)
	firstKey := f.remote.keys[0]
	assert.Equal(t, firstKey, resumed.IdempotencyKey)

	resp, err := f.svc.Submit(context.Background(), "draft-3", validSubmitRequest(), employeeActor)
	require.NoError(t, err)
	assert.Equal(t, resumed.Appeal.AppealID, resp.AppealID, "retries keep the appeal id")
	assert.Equal(t, firstKey, f.remote.keys[len(f.remote.keys)-1], "retries keep the idempotency key")

	_, err = f.svc.Resume(context.Background(), "draft-3")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestRemoteSubmitChangedContentGetsNewKey(t *testing.T) {
	f := newRemoteFixture(t, &evaluation.StatusError{StatusCode: http.StatusUnprocessableEntity})

	_, err := f.svc.Submit(context.Background(), "draft-4", validSubmitRequest(), employeeActor)
	require.Error(t, err)

	req := validSubmitRequest()
	req.RequestedScore = floatPtr(70)
	_, err = f.svc.Submit(context.Background(), "draft-4", req, employeeActor)
	require.NoError(t, err)
	require.Len(t, f.remote.keys, 2)
	assert.NotEqual(t, f.remote.keys[0], f.remote.keys[1])
}

func TestRemoteSubmitGatesRunBeforeRemoteCall(t *testing.T) {
	f := newRemoteFixture(t)
	req := validSubmitRequest()
	req.AppealReason = "too short"

	_, err := f.svc.Submit(context.Background(), "draft-5", req, employeeActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidReason.Code))
	assert.Empty(t, f.remote.keys)

	_, err = f.svc.Submit(context.Background(), " ", validSubmitRequest(), employeeActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestIdempotencyKeyIsStable(t *testing.T) {
	hash, err := ContentHash("emp-1", validSubmitRequest())
	require.NoError(t, err)
	again, err := ContentHash("emp-1", validSubmitRequest())
	require.NoError(t, err)
	assert.Equal(t, hash, again)
	assert.Equal(t, IdempotencyKey("APL-1", hash), IdempotencyKey("APL-1", again))
	assert.NotEqual(t, IdempotencyKey("APL-1", hash), IdempotencyKey("APL-2", hash))
	assert.Len(t, IdempotencyKey("APL-1", hash), 64)
}

func TestRemoteSubmitRejectsDraftOfAnotherEmployee(t *testing.T) {
	f := newRemoteFixture(t, &evaluation.StatusError{StatusCode: http.StatusBadRequest, Body: "bad period"})

	_, err := f.svc.Submit(context.Background(), "shared", validSubmitRequest(), employeeActor)
	require.Error(t, err)
	owned, err := f.drafts.Get(context.Background(), "shared")
	require.NoError(t, err)
	appealID := owned.Appeal.AppealID

	other := models.Actor{ID: "emp-2", Role: models.RoleEmployee, Name: "Bayu"}
	req := validSubmitRequest()
	req.EmployeeName = "Bayu Santoso"
	_, err = f.svc.Submit(context.Background(), "shared", req, other)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
	assert.Equal(t, "shared", appErrors.FromError(err).Details["draftKey"])

	draft, err := f.drafts.Get(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", draft.Appeal.EmployeeID)
	assert.Equal(t, appealID, draft.Appeal.AppealID)
	assert.Equal(t, owned.ContentHash, draft.ContentHash)
	assert.Len(t, f.remote.keys, 1)
}
