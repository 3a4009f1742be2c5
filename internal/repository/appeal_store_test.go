package repository

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

func newTestAppeal(id, employeeID string, createdAt time.Time) *models.Appeal {
	return &models.Appeal{
		AppealID:          id,
		EmployeeID:        employeeID,
		EmployeeName:      "Sato Hanako",
		EvaluationPeriod:  "2024-H1",
		AppealCategory:    models.AppealCategoryCalculationError,
		AppealReason:      strings.Repeat("r", 120),
		EvidenceDocuments: []models.EvidenceDocument{},
		Status:            models.AppealStatusReceived,
		Priority:          models.PriorityHigh,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
		SubmittedVia:      models.SubmittedViaWeb,
		CommunicationLog:  []models.CommunicationEntry{},
	}
}

func TestBucketForStatus(t *testing.T) {
	cases := map[models.AppealStatus]AppealBucket{
		models.AppealStatusReceived:                BucketPending,
		models.AppealStatusUnderReview:             BucketInProgress,
		models.AppealStatusAdditionalInfoRequested: BucketInProgress,
		models.AppealStatusResolved:                BucketResolved,
		models.AppealStatusRejected:                BucketResolved,
		models.AppealStatusWithdrawn:               BucketResolved,
	}
	for status, want := range cases {
		got, err := BucketForStatus(status)
		require.NoError(t, err)
		assert.Equal(t, want, got, string(status))
	}

	_, err := BucketForStatus("archived")
	assert.Error(t, err)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	locks := NewKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("APL-1")
			current := counter
			time.Sleep(time.Microsecond)
			counter = current + 1
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.Len())
}

func TestKeyedMutexDifferentKeysDoNotBlock(t *testing.T) {
	locks := NewKeyedMutex()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}
