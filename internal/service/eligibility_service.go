package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/internal/repository"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
)

// PeriodProvider supplies evaluation period reference data.
type PeriodProvider interface {
	GetByID(ctx context.Context, id string) (*models.EvaluationPeriod, error)
}

// EligibilityService decides whether appeals may be filed against a period.
type EligibilityService struct {
	periods PeriodProvider
	logger  *zap.Logger
	now     func() time.Time
}

// EligibilityOption configures the service.
type EligibilityOption func(*EligibilityService)

// WithEligibilityClock overrides the clock.
func WithEligibilityClock(now func() time.Time) EligibilityOption {
	return func(s *EligibilityService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewEligibilityService constructs the service.
func NewEligibilityService(periods PeriodProvider, logger *zap.Logger, opts ...EligibilityOption) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EligibilityService{periods: periods, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Check evaluates period eligibility. The deadline instant itself is still eligible.
// Only infrastructure failures are returned as errors.
func (s *EligibilityService) Check(ctx context.Context, periodID string) (models.EligibilityResult, error) {
	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, repository.ErrPeriodNotFound) {
			return models.EligibilityResult{
				Code:   models.EligibilityPeriodNotFound,
				Reason: fmt.Sprintf("evaluation period %s does not exist", periodID),
			}, nil
		}
		s.logger.Sugar().Errorw("failed to load evaluation period", "period_id", periodID, "error", err)
		return models.EligibilityResult{}, appErrors.Wrap(err, appErrors.ErrStorage, "failed to load evaluation period")
	}
	if period.Status != models.PeriodStatusActive {
		return models.EligibilityResult{
			Code:   models.EligibilityPeriodClosed,
			Reason: fmt.Sprintf("evaluation period %s is %s", periodID, period.Status),
		}, nil
	}
	if s.now().After(period.AppealDeadline) {
		return models.EligibilityResult{
			Code:   models.EligibilityPeriodExpired,
			Reason: fmt.Sprintf("appeal deadline passed at %s", period.AppealDeadline.UTC().Format(time.RFC3339)),
		}, nil
	}
	return models.EligibilityResult{Eligible: true}, nil
}

// IsEligible is the boolean form of Check; infrastructure failures count as ineligible.
func (s *EligibilityService) IsEligible(ctx context.Context, periodID string) bool {
	result, err := s.Check(ctx, periodID)
	return err == nil && result.Eligible
}
