package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/pkg/storage"
)

const appealFileSuffix = ".json"

// FileAppealRepository keeps one JSON document per appeal at <bucket>/<appealId>.json.
// Bucket migration writes the new copy before deleting the old one, so a crash
// leaves the appeal in at least one bucket; lookups and Reconcile resolve duplicates.
type FileAppealRepository struct {
	files  *storage.LocalStorage
	locks  *KeyedMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewFileAppealRepository constructs the repository over files.
func NewFileAppealRepository(files *storage.LocalStorage, logger *zap.Logger) *FileAppealRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileAppealRepository{
		files:  files,
		locks:  NewKeyedMutex(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type storedAppeal struct {
	bucket AppealBucket
	appeal *models.Appeal
}

func appealPath(bucket AppealBucket, id string) string {
	return path.Join(string(bucket), id+appealFileSuffix)
}

func validAppealID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// Create writes a new appeal into the bucket implied by its status.
func (r *FileAppealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validAppealID(appeal.AppealID) {
		return fmt.Errorf("invalid appeal id %q", appeal.AppealID)
	}
	bucket, err := BucketForStatus(appeal.Status)
	if err != nil {
		return err
	}
	unlock := r.locks.Lock(appeal.AppealID)
	defer unlock()

	for _, b := range BucketScanOrder {
		exists, err := r.files.Exists(appealPath(b, appeal.AppealID))
		if err != nil {
			return fmt.Errorf("check appeal %s: %w", appeal.AppealID, err)
		}
		if exists {
			return ErrDuplicateAppeal
		}
	}
	return r.write(bucket, appeal)
}

// GetByID scans buckets in order and returns the appeal.
func (r *FileAppealRepository) GetByID(ctx context.Context, id string) (*models.Appeal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validAppealID(id) {
		return nil, ErrAppealNotFound
	}
	unlock := r.locks.Lock(id)
	defer unlock()

	found, err := r.locate(id)
	if err != nil {
		return nil, err
	}
	return found.appeal, nil
}

// ListByEmployee returns the employee's appeals ordered by createdAt descending.
func (r *FileAppealRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*models.Appeal, error) {
	all, err := r.scan(ctx, BucketScanOrder...)
	if err != nil {
		return nil, err
	}
	result := make([]*models.Appeal, 0)
	for _, item := range all {
		if item.appeal.EmployeeID == employeeID {
			result = append(result, item.appeal)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// ListByBucket returns every appeal stored in bucket ordered by createdAt.
func (r *FileAppealRepository) ListByBucket(ctx context.Context, bucket AppealBucket) ([]*models.Appeal, error) {
	items, err := r.scan(ctx, bucket)
	if err != nil {
		return nil, err
	}
	result := make([]*models.Appeal, 0, len(items))
	for _, item := range items {
		result = append(result, item.appeal)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// UpdateInPlace rewrites the appeal within its current bucket.
func (r *FileAppealRepository) UpdateInPlace(ctx context.Context, id string, mutate AppealMutator) (*models.Appeal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := r.locks.Lock(id)
	defer unlock()

	current, err := r.locate(id)
	if err != nil {
		return nil, err
	}
	next := current.appeal.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	if next.Status != current.appeal.Status || next.AppealID != current.appeal.AppealID {
		return nil, ErrStatusChange
	}
	next.UpdatedAt = r.now()
	if err := r.write(current.bucket, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Migrate applies mutate, sets status and moves the appeal to the matching bucket.
func (r *FileAppealRepository) Migrate(ctx context.Context, id string, status models.AppealStatus, mutate AppealMutator) (*models.Appeal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := BucketForStatus(status)
	if err != nil {
		return nil, err
	}
	unlock := r.locks.Lock(id)
	defer unlock()

	current, err := r.locate(id)
	if err != nil {
		return nil, err
	}
	next := current.appeal.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	next.AppealID = current.appeal.AppealID
	next.Status = status
	next.UpdatedAt = r.now()

	if err := r.write(target, next); err != nil {
		return nil, err
	}
	if target != current.bucket {
		if err := r.files.Delete(appealPath(current.bucket, id)); err != nil {
			r.logger.Sugar().Warnw("stale appeal copy left behind", "appeal_id", id, "bucket", current.bucket, "error", err)
		}
	}
	return next, nil
}

// Reconcile removes stale copies left by an interrupted migration and moves
// records whose bucket disagrees with their status. It returns the number of
// appeals repaired.
func (r *FileAppealRepository) Reconcile(ctx context.Context) (int, error) {
	items, err := r.scan(ctx, BucketScanOrder...)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(items))
	repaired := 0
	for _, item := range items {
		id := item.appeal.AppealID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		changed, err := r.repair(id)
		if err != nil {
			return repaired, err
		}
		if changed {
			repaired++
		}
	}
	return repaired, nil
}

func (r *FileAppealRepository) repair(id string) (bool, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	copies, err := r.copies(id)
	if err != nil || len(copies) == 0 {
		return false, err
	}
	winner := newest(copies)
	want, err := BucketForStatus(winner.appeal.Status)
	if err != nil {
		return false, err
	}
	if len(copies) == 1 && winner.bucket == want {
		return false, nil
	}
	if winner.bucket != want {
		if err := r.write(want, winner.appeal); err != nil {
			return false, err
		}
	}
	for _, c := range copies {
		if c.bucket == want {
			continue
		}
		if err := r.files.Delete(appealPath(c.bucket, id)); err != nil {
			return false, fmt.Errorf("delete stale appeal %s/%s: %w", c.bucket, id, err)
		}
	}
	r.logger.Sugar().Infow("appeal reconciled", "appeal_id", id, "bucket", want, "copies", len(copies))
	return true, nil
}

// locate must be called with the id lock held. When an interrupted migration
// left several copies, the newest one wins and the others are removed.
func (r *FileAppealRepository) locate(id string) (*storedAppeal, error) {
	copies, err := r.copies(id)
	if err != nil {
		return nil, err
	}
	if len(copies) == 0 {
		return nil, ErrAppealNotFound
	}
	winner := newest(copies)
	for _, c := range copies {
		if c.bucket == winner.bucket {
			continue
		}
		if err := r.files.Delete(appealPath(c.bucket, id)); err != nil {
			r.logger.Sugar().Warnw("failed to remove stale appeal copy", "appeal_id", id, "bucket", c.bucket, "error", err)
		}
	}
	return winner, nil
}

func (r *FileAppealRepository) copies(id string) ([]storedAppeal, error) {
	var copies []storedAppeal
	for _, bucket := range BucketScanOrder {
		appeal, err := r.read(appealPath(bucket, id))
		if errors.Is(err, storage.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		copies = append(copies, storedAppeal{bucket: bucket, appeal: appeal})
	}
	return copies, nil
}

func newest(copies []storedAppeal) *storedAppeal {
	winner := copies[0]
	for _, c := range copies[1:] {
		if supersedes(c, winner) {
			winner = c
		}
	}
	return &winner
}

// supersedes reports whether candidate is the more recent copy. Copies with the
// same UpdatedAt are ordered by lifecycle, since migrations only move forward.
func supersedes(candidate, current storedAppeal) bool {
	if !candidate.appeal.UpdatedAt.Equal(current.appeal.UpdatedAt) {
		return candidate.appeal.UpdatedAt.After(current.appeal.UpdatedAt)
	}
	return bucketRank(candidate.bucket) > bucketRank(current.bucket)
}

func bucketRank(bucket AppealBucket) int {
	for i, b := range BucketScanOrder {
		if b == bucket {
			return i
		}
	}
	return -1
}

func (r *FileAppealRepository) scan(ctx context.Context, buckets ...AppealBucket) ([]storedAppeal, error) {
	var items []storedAppeal
	index := make(map[string]int)
	for _, bucket := range buckets {
		names, err := r.files.List(string(bucket), appealFileSuffix)
		if err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", bucket, err)
		}
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			appeal, err := r.read(path.Join(string(bucket), name))
			if errors.Is(err, storage.ErrNotExist) {
				// migrated away between list and read
				continue
			}
			if err != nil {
				return nil, err
			}
			if pos, dup := index[appeal.AppealID]; dup {
				candidate := storedAppeal{bucket: bucket, appeal: appeal}
				if supersedes(candidate, items[pos]) {
					items[pos] = candidate
				}
				continue
			}
			index[appeal.AppealID] = len(items)
			items = append(items, storedAppeal{bucket: bucket, appeal: appeal})
		}
	}
	return items, nil
}

func (r *FileAppealRepository) read(name string) (*models.Appeal, error) {
	raw, err := r.files.Read(name)
	if err != nil {
		return nil, err
	}
	var appeal models.Appeal
	if err := json.Unmarshal(raw, &appeal); err != nil {
		return nil, fmt.Errorf("decode appeal %s: %w", name, err)
	}
	return &appeal, nil
}

func (r *FileAppealRepository) write(bucket AppealBucket, appeal *models.Appeal) error {
	payload, err := json.MarshalIndent(appeal, "", "  ")
	if err != nil {
		return fmt.Errorf("encode appeal %s: %w", appeal.AppealID, err)
	}
	if err := r.files.Save(appealPath(bucket, appeal.AppealID), payload); err != nil {
		return fmt.Errorf("write appeal %s/%s: %w", bucket, appeal.AppealID, err)
	}
	return nil
}
