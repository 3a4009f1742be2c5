package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
)

func seedAppeal(t *testing.T, store *repository.FileAppealRepository, id string, status models.AppealStatus, due time.Time) {
	t.Helper()
	appeal := &models.Appeal{
		AppealID:             id,
		EmployeeID:           "emp-1",
		EvaluationPeriod:     "2024-H2",
		AppealCategory:       models.AppealCategoryOther,
		AppealReason:         validReason(),
		Status:               status,
		Priority:             models.PriorityMedium,
		AssignedReviewer:     &models.ReviewerRef{ID: "rev-1", Name: "Rina"},
		ExpectedResponseDate: due,
		CreatedAt:            fixedNow.Add(-20 * 24 * time.Hour),
		UpdatedAt:            fixedNow.Add(-20 * 24 * time.Hour),
		SubmittedVia:         models.SubmittedViaWeb,
	}
	require.NoError(t, store.Create(context.Background(), appeal))
}

func TestReminderSweep(t *testing.T) {
	store := newFileStore(t)
	seedAppeal(t, store, "APL-due", models.AppealStatusReceived, fixedNow.Add(48*time.Hour))
	seedAppeal(t, store, "APL-late", models.AppealStatusUnderReview, fixedNow.Add(-26*time.Hour))
	seedAppeal(t, store, "APL-far", models.AppealStatusUnderReview, fixedNow.Add(10*24*time.Hour))
	seedAppeal(t, store, "APL-done", models.AppealStatusResolved, fixedNow.Add(-48*time.Hour))

	notifier := &notifierStub{}
	audit := &appealAuditStub{}
	svc := NewReminderService(store, repository.NewMemoryReminderLedger(), notifier, audit, nil, WithReminderClock(fixedClock))

	result, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Reminded: 1, Escalated: 1}, result)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.EventDeadlineReminder, notifier.events[0].Type)
	assert.Equal(t, "APL-due", notifier.events[0].AppealID)
	assert.Equal(t, "rev-1", notifier.events[0].Recipients[0].ID)

	require.Len(t, notifier.admins, 1)
	assert.Equal(t, "APL-late", notifier.admins[0].AppealID)
	assert.Contains(t, notifier.admins[0].Reason, "overdue")

	assert.ElementsMatch(t, []models.AuditAction{
		models.AuditActionRemind,
		models.AuditActionEscalate,
		models.AuditActionRemind,
	}, audit.actions())

	again, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Skipped: 2}, again, "each appeal is reminded once per day")
	assert.Len(t, notifier.events, 1)
}

func TestReminderSchedulerRunsSweep(t *testing.T) {
	store := newFileStore(t)
	seedAppeal(t, store, "APL-due", models.AppealStatusReceived, fixedNow.Add(time.Hour))

	notifier := &notifierStub{}
	svc := NewReminderService(store, nil, notifier, &appealAuditStub{}, nil, WithReminderClock(fixedClock))
	svc.Start(context.Background(), time.Hour, 1)
	defer svc.Stop()

	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.events) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
