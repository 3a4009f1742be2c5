package service

import (
	"strings"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

// ScoringScheme holds the score-difference thresholds used by the priority rules.
type ScoringScheme struct {
	Name             string
	HighDifference   float64
	MediumDifference float64
}

var (
	// SchemeStandard is the default 10/5 point scheme.
	SchemeStandard = ScoringScheme{Name: "standard", HighDifference: 10, MediumDifference: 5}
	// SchemeGraded100 is tuned for the 0-100, seven grade scale.
	SchemeGraded100 = ScoringScheme{Name: "graded_100", HighDifference: 15, MediumDifference: 8}
)

// SchemeByName resolves a configured scheme name, defaulting to SchemeStandard.
func SchemeByName(name string) ScoringScheme {
	if strings.EqualFold(strings.TrimSpace(name), SchemeGraded100.Name) {
		return SchemeGraded100
	}
	return SchemeStandard
}

var seniorJobCategories = map[string]struct{}{
	"manager":  {},
	"director": {},
	"chief":    {},
}

// PriorityEngine derives an appeal's urgency from its claim attributes. It is
// pure: the same input always yields the same priority.
type PriorityEngine struct {
	scheme ScoringScheme
}

// NewPriorityEngine constructs an engine for scheme.
func NewPriorityEngine(scheme ScoringScheme) *PriorityEngine {
	return &PriorityEngine{scheme: scheme}
}

// Scheme returns the active scoring scheme.
func (e *PriorityEngine) Scheme() ScoringScheme {
	return e.scheme
}

// Evaluate applies the rules in order; the first match wins.
func (e *PriorityEngine) Evaluate(in models.PriorityInput) models.Priority {
	switch in.Category {
	case models.AppealCategoryCalculationError, models.AppealCategoryPeriodError:
		return models.PriorityHigh
	}
	if in.OriginalScore != nil && in.RequestedScore != nil {
		diff := *in.RequestedScore - *in.OriginalScore
		if diff >= e.scheme.HighDifference {
			return models.PriorityHigh
		}
		if diff >= e.scheme.MediumDifference {
			return models.PriorityMedium
		}
	}
	if _, ok := seniorJobCategories[strings.ToLower(strings.TrimSpace(in.JobCategory))]; ok {
		return models.PriorityHigh
	}
	if in.Category == models.AppealCategoryAchievementOversight {
		return models.PriorityMedium
	}
	if in.EvidenceCount > 2 {
		return models.PriorityMedium
	}
	return models.PriorityLow
}
