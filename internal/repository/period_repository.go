package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/pkg/config"
)

// ErrPeriodNotFound is returned when an evaluation period id is unknown.
var ErrPeriodNotFound = errors.New("evaluation period not found")

// PeriodRepository reads evaluation periods from PostgreSQL.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository instantiates a period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// GetByID fetches a single period.
func (r *PeriodRepository) GetByID(ctx context.Context, id string) (*models.EvaluationPeriod, error) {
	const query = `SELECT id, name, appeal_deadline, status FROM evaluation_periods WHERE id = $1`
	var period models.EvaluationPeriod
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPeriodNotFound
		}
		return nil, fmt.Errorf("get evaluation period %s: %w", id, err)
	}
	return &period, nil
}

// List returns every period ordered by deadline, latest first.
func (r *PeriodRepository) List(ctx context.Context) ([]models.EvaluationPeriod, error) {
	const query = `SELECT id, name, appeal_deadline, status FROM evaluation_periods ORDER BY appeal_deadline DESC`
	var periods []models.EvaluationPeriod
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list evaluation periods: %w", err)
	}
	return periods, nil
}

// Upsert inserts or updates a period, used to seed the table from reference data.
func (r *PeriodRepository) Upsert(ctx context.Context, period models.EvaluationPeriod) error {
	const query = `INSERT INTO evaluation_periods (id, name, appeal_deadline, status, created_at, updated_at)
VALUES (:id, :name, :appeal_deadline, :status, NOW(), NOW())
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, appeal_deadline = EXCLUDED.appeal_deadline,
              status = EXCLUDED.status, updated_at = NOW()`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("upsert evaluation period %s: %w", period.ID, err)
	}
	return nil
}

// Seed upserts every reference period and returns the table contents afterwards.
func (r *PeriodRepository) Seed(ctx context.Context, periods []models.EvaluationPeriod) ([]models.EvaluationPeriod, error) {
	for _, period := range periods {
		if err := r.Upsert(ctx, period); err != nil {
			return nil, err
		}
	}
	return r.List(ctx)
}

// StaticPeriodRepository serves periods from reference data loaded at startup.
type StaticPeriodRepository struct {
	periods map[string]models.EvaluationPeriod
}

// PeriodsFromReference converts reference entries into models.
func PeriodsFromReference(ref *config.ReferenceData) ([]models.EvaluationPeriod, error) {
	if ref == nil {
		return nil, nil
	}
	periods := make([]models.EvaluationPeriod, 0, len(ref.Periods))
	for _, entry := range ref.Periods {
		deadline, err := entry.Deadline()
		if err != nil {
			return nil, err
		}
		periods = append(periods, models.EvaluationPeriod{
			ID:             entry.ID,
			Name:           entry.Name,
			AppealDeadline: deadline,
			Status:         models.PeriodStatus(entry.Status),
		})
	}
	return periods, nil
}

// NewStaticPeriodRepository indexes periods by id.
func NewStaticPeriodRepository(periods []models.EvaluationPeriod) *StaticPeriodRepository {
	index := make(map[string]models.EvaluationPeriod, len(periods))
	for _, p := range periods {
		index[p.ID] = p
	}
	return &StaticPeriodRepository{periods: index}
}

// GetByID returns the period with id.
func (r *StaticPeriodRepository) GetByID(_ context.Context, id string) (*models.EvaluationPeriod, error) {
	period, ok := r.periods[id]
	if !ok {
		return nil, ErrPeriodNotFound
	}
	return &period, nil
}

// ErrReviewerNotFound is returned when no reviewer matches a lookup.
var ErrReviewerNotFound = errors.New("reviewer not found")

// StaticReviewerDirectory resolves reviewers from reference data.
type StaticReviewerDirectory struct {
	reviewers []models.Reviewer
}

// NewStaticReviewerDirectory builds a directory from reference entries.
func NewStaticReviewerDirectory(ref *config.ReferenceData) *StaticReviewerDirectory {
	dir := &StaticReviewerDirectory{}
	if ref == nil {
		return dir
	}
	for _, entry := range ref.Reviewers {
		dir.reviewers = append(dir.reviewers, models.Reviewer{
			ID:           entry.ID,
			Name:         entry.Name,
			Email:        entry.Email,
			Tier:         models.ReviewerTier(entry.Tier),
			DepartmentID: entry.DepartmentID,
		})
	}
	return dir
}

// FindByTier returns a reviewer of tier, preferring one from departmentID.
func (d *StaticReviewerDirectory) FindByTier(_ context.Context, tier models.ReviewerTier, departmentID string) (*models.Reviewer, error) {
	var fallback *models.Reviewer
	for i := range d.reviewers {
		reviewer := d.reviewers[i]
		if reviewer.Tier != tier {
			continue
		}
		if departmentID != "" && reviewer.DepartmentID == departmentID {
			return &reviewer, nil
		}
		if fallback == nil {
			fallback = &reviewer
		}
	}
	if fallback == nil {
		return nil, ErrReviewerNotFound
	}
	return fallback, nil
}

// GetByID returns the reviewer with id.
func (d *StaticReviewerDirectory) GetByID(_ context.Context, id string) (*models.Reviewer, error) {
	for _, reviewer := range d.reviewers {
		if reviewer.ID == id {
			r := reviewer
			return &r, nil
		}
	}
	return nil, ErrReviewerNotFound
}
