package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

var appealTables = map[AppealBucket]string{
	BucketPending:    "appeals_pending",
	BucketInProgress: "appeals_in_progress",
	BucketResolved:   "appeals_resolved",
}

type appealRow struct {
	ID         string    `db:"id"`
	EmployeeID string    `db:"employee_id"`
	Status     string    `db:"status"`
	Record     []byte    `db:"record"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// PostgresAppealRepository stores each bucket in its own table. Migration is an
// insert into the new table and a delete from the old one inside one transaction.
type PostgresAppealRepository struct {
	db    *sqlx.DB
	locks *KeyedMutex
	now   func() time.Time
}

// NewPostgresAppealRepository constructs the repository.
func NewPostgresAppealRepository(db *sqlx.DB) *PostgresAppealRepository {
	return &PostgresAppealRepository{
		db:    db,
		locks: NewKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func toRow(appeal *models.Appeal) (*appealRow, error) {
	record, err := json.Marshal(appeal)
	if err != nil {
		return nil, fmt.Errorf("encode appeal %s: %w", appeal.AppealID, err)
	}
	return &appealRow{
		ID:         appeal.AppealID,
		EmployeeID: appeal.EmployeeID,
		Status:     string(appeal.Status),
		Record:     record,
		CreatedAt:  appeal.CreatedAt,
		UpdatedAt:  appeal.UpdatedAt,
	}, nil
}

func decodeRecord(raw []byte) (*models.Appeal, error) {
	var appeal models.Appeal
	if err := json.Unmarshal(raw, &appeal); err != nil {
		return nil, fmt.Errorf("decode appeal record: %w", err)
	}
	return &appeal, nil
}

// Create inserts the appeal after checking no bucket holds the id.
func (r *PostgresAppealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	bucket, err := BucketForStatus(appeal.Status)
	if err != nil {
		return err
	}
	row, err := toRow(appeal)
	if err != nil {
		return err
	}
	unlock := r.locks.Lock(appeal.AppealID)
	defer unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create appeal: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const existsQuery = `SELECT EXISTS (
	SELECT 1 FROM appeals_pending WHERE id = $1
	UNION ALL SELECT 1 FROM appeals_in_progress WHERE id = $1
	UNION ALL SELECT 1 FROM appeals_resolved WHERE id = $1)`
	var exists bool
	if err := tx.GetContext(ctx, &exists, existsQuery, appeal.AppealID); err != nil {
		return fmt.Errorf("check appeal %s: %w", appeal.AppealID, err)
	}
	if exists {
		return ErrDuplicateAppeal
	}
	if err := insertAppealRow(ctx, tx, bucket, row); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create appeal: %w", err)
	}
	return nil
}

func insertAppealRow(ctx context.Context, tx *sqlx.Tx, bucket AppealBucket, row *appealRow) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, employee_id, status, record, created_at, updated_at)
	VALUES (:id, :employee_id, :status, :record, :created_at, :updated_at)`, appealTables[bucket])
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateAppeal
		}
		return fmt.Errorf("insert appeal into %s: %w", bucket, err)
	}
	return nil
}

// GetByID scans the bucket tables in order.
func (r *PostgresAppealRepository) GetByID(ctx context.Context, id string) (*models.Appeal, error) {
	for _, bucket := range BucketScanOrder {
		query := fmt.Sprintf(`SELECT record FROM %s WHERE id = $1`, appealTables[bucket])
		var raw []byte
		err := r.db.GetContext(ctx, &raw, query, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get appeal %s from %s: %w", id, bucket, err)
		}
		return decodeRecord(raw)
	}
	return nil, ErrAppealNotFound
}

// ListByEmployee returns the employee's appeals, newest first.
func (r *PostgresAppealRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*models.Appeal, error) {
	parts := make([]string, 0, len(BucketScanOrder))
	for _, bucket := range BucketScanOrder {
		parts = append(parts, fmt.Sprintf(`SELECT record, created_at FROM %s WHERE employee_id = $1`, appealTables[bucket]))
	}
	query := strings.Join(parts, " UNION ALL ") + " ORDER BY created_at DESC"
	return r.selectRecords(ctx, query, employeeID)
}

// ListByBucket returns all appeals in bucket ordered by creation time.
func (r *PostgresAppealRepository) ListByBucket(ctx context.Context, bucket AppealBucket) ([]*models.Appeal, error) {
	table, ok := appealTables[bucket]
	if !ok {
		return nil, fmt.Errorf("unknown bucket %q", bucket)
	}
	query := fmt.Sprintf(`SELECT record, created_at FROM %s ORDER BY created_at ASC`, table)
	return r.selectRecords(ctx, query)
}

func (r *PostgresAppealRepository) selectRecords(ctx context.Context, query string, args ...interface{}) ([]*models.Appeal, error) {
	var rows []struct {
		Record    []byte    `db:"record"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	result := make([]*models.Appeal, 0, len(rows))
	for _, row := range rows {
		appeal, err := decodeRecord(row.Record)
		if err != nil {
			return nil, err
		}
		result = append(result, appeal)
	}
	return result, nil
}

// UpdateInPlace rewrites the record within its table.
func (r *PostgresAppealRepository) UpdateInPlace(ctx context.Context, id string, mutate AppealMutator) (*models.Appeal, error) {
	return r.mutate(ctx, id, "", mutate)
}

// Migrate applies mutate, sets status and moves the row to the matching table.
func (r *PostgresAppealRepository) Migrate(ctx context.Context, id string, status models.AppealStatus, mutate AppealMutator) (*models.Appeal, error) {
	if _, err := BucketForStatus(status); err != nil {
		return nil, err
	}
	return r.mutate(ctx, id, status, mutate)
}

// Reconcile is a no-op: migrations are transactional so no stale copies exist.
func (r *PostgresAppealRepository) Reconcile(context.Context) (int, error) {
	return 0, nil
}

func (r *PostgresAppealRepository) mutate(ctx context.Context, id string, status models.AppealStatus, mutate AppealMutator) (*models.Appeal, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update appeal: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, from, err := r.lockRow(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	next := current.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	next.AppealID = current.AppealID
	if status == "" {
		if next.Status != current.Status {
			return nil, ErrStatusChange
		}
	} else {
		next.Status = status
	}
	next.UpdatedAt = r.now()

	to, err := BucketForStatus(next.Status)
	if err != nil {
		return nil, err
	}
	row, err := toRow(next)
	if err != nil {
		return nil, err
	}

	if to == from {
		query := fmt.Sprintf(`UPDATE %s SET status = :status, record = :record, updated_at = :updated_at WHERE id = :id`, appealTables[from])
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return nil, fmt.Errorf("update appeal %s: %w", id, err)
		}
	} else {
		if err := insertAppealRow(ctx, tx, to, row); err != nil {
			return nil, err
		}
		query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, appealTables[from])
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return nil, fmt.Errorf("delete appeal %s from %s: %w", id, from, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update appeal: %w", err)
	}
	return next, nil
}

func (r *PostgresAppealRepository) lockRow(ctx context.Context, tx *sqlx.Tx, id string) (*models.Appeal, AppealBucket, error) {
	for _, bucket := range BucketScanOrder {
		query := fmt.Sprintf(`SELECT record FROM %s WHERE id = $1 FOR UPDATE`, appealTables[bucket])
		var raw []byte
		err := tx.GetContext(ctx, &raw, query, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("lock appeal %s in %s: %w", id, bucket, err)
		}
		appeal, err := decodeRecord(raw)
		if err != nil {
			return nil, "", err
		}
		return appeal, bucket, nil
	}
	return nil, "", ErrAppealNotFound
}
