package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
)

func TestEligibilityDeadlineBoundaries(t *testing.T) {
	deadline := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
	periods := periodProviderStub{periods: map[string]*models.EvaluationPeriod{
		"2024-H2": {ID: "2024-H2", AppealDeadline: deadline, Status: models.PeriodStatusActive},
	}}

	tests := []struct {
		name     string
		now      time.Time
		eligible bool
		code     string
	}{
		{name: "one day before", now: deadline.Add(-24 * time.Hour), eligible: true},
		{name: "exact deadline", now: deadline, eligible: true},
		{name: "one second after", now: deadline.Add(time.Second), code: models.EligibilityPeriodExpired},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			now := tc.now
			svc := NewEligibilityService(periods, nil, WithEligibilityClock(func() time.Time { return now }))
			result, err := svc.Check(context.Background(), "2024-H2")
			require.NoError(t, err)
			assert.Equal(t, tc.eligible, result.Eligible)
			assert.Equal(t, tc.code, result.Code)
			assert.Equal(t, tc.eligible, svc.IsEligible(context.Background(), "2024-H2"))
		})
	}
}

func TestEligibilityUnknownAndClosedPeriods(t *testing.T) {
	svc := NewEligibilityService(activePeriods(), nil, WithEligibilityClock(fixedClock))

	result, err := svc.Check(context.Background(), "1999-H1")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, models.EligibilityPeriodNotFound, result.Code)

	result, err = svc.Check(context.Background(), "2023-H2")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, models.EligibilityPeriodClosed, result.Code)
	assert.NotEmpty(t, result.Reason)
}

func TestEligibilityProviderFailureIsStorageError(t *testing.T) {
	svc := NewEligibilityService(periodProviderStub{err: errors.New("connection refused")}, nil)

	_, err := svc.Check(context.Background(), "2024-H2")
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStorage.Code))
	assert.False(t, svc.IsEligible(context.Background(), "2024-H2"))
}
