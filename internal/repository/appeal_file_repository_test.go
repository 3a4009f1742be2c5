package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/pkg/storage"
)

func newFileAppealRepo(t *testing.T) (*FileAppealRepository, string) {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return NewFileAppealRepository(files, nil), dir
}

func bucketsHolding(t *testing.T, dir, id string) []AppealBucket {
	t.Helper()
	var found []AppealBucket
	for _, bucket := range BucketScanOrder {
		if _, err := os.Stat(filepath.Join(dir, string(bucket), id+".json")); err == nil {
			found = append(found, bucket)
		}
	}
	return found
}

func TestFileAppealRepositoryCreateAndGet(t *testing.T) {
	repo, dir := newFileAppealRepo(t)
	ctx := context.Background()
	appeal := newTestAppeal("APL-1", "emp-1", time.Now().UTC())

	require.NoError(t, repo.Create(ctx, appeal))
	assert.Equal(t, []AppealBucket{BucketPending}, bucketsHolding(t, dir, "APL-1"))

	found, err := repo.GetByID(ctx, "APL-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusReceived, found.Status)
	assert.Equal(t, appeal.AppealReason, found.AppealReason)

	assert.ErrorIs(t, repo.Create(ctx, appeal), ErrDuplicateAppeal)

	_, err = repo.GetByID(ctx, "APL-missing")
	assert.ErrorIs(t, err, ErrAppealNotFound)
	_, err = repo.GetByID(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrAppealNotFound)
}

func TestFileAppealRepositoryMigrateMovesBucket(t *testing.T) {
	repo, dir := newFileAppealRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-1", "emp-1", time.Now().UTC())))

	updated, err := repo.Migrate(ctx, "APL-1", models.AppealStatusUnderReview, func(a *models.Appeal) error {
		now := time.Now().UTC()
		a.ReviewStartDate = &now
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusUnderReview, updated.Status)
	assert.Equal(t, []AppealBucket{BucketInProgress}, bucketsHolding(t, dir, "APL-1"))

	_, err = repo.Migrate(ctx, "APL-1", models.AppealStatusAdditionalInfoRequested, nil)
	require.NoError(t, err)
	assert.Equal(t, []AppealBucket{BucketInProgress}, bucketsHolding(t, dir, "APL-1"))

	_, err = repo.Migrate(ctx, "APL-1", models.AppealStatusResolved, nil)
	require.NoError(t, err)
	assert.Equal(t, []AppealBucket{BucketResolved}, bucketsHolding(t, dir, "APL-1"))

	found, err := repo.GetByID(ctx, "APL-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusResolved, found.Status)
	assert.NotNil(t, found.ReviewStartDate)
}

func TestFileAppealRepositoryMutatorErrorLeavesRecordUntouched(t *testing.T) {
	repo, dir := newFileAppealRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-1", "emp-1", time.Now().UTC())))
	before, err := os.ReadFile(filepath.Join(dir, "pending", "APL-1.json"))
	require.NoError(t, err)

	boom := errors.New("illegal")
	_, err = repo.Migrate(ctx, "APL-1", models.AppealStatusResolved, func(*models.Appeal) error { return boom })
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(filepath.Join(dir, "pending", "APL-1.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []AppealBucket{BucketPending}, bucketsHolding(t, dir, "APL-1"))
}

func TestFileAppealRepositoryUpdateInPlace(t *testing.T) {
	repo, _ := newFileAppealRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-1", "emp-1", time.Now().UTC())))

	updated, err := repo.UpdateInPlace(ctx, "APL-1", func(a *models.Appeal) error {
		a.CommunicationLog = append(a.CommunicationLog, models.CommunicationEntry{ID: "c1", Message: "hello"})
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, updated.CommunicationLog, 1)

	_, err = repo.UpdateInPlace(ctx, "APL-1", func(a *models.Appeal) error {
		a.Status = models.AppealStatusResolved
		return nil
	})
	assert.ErrorIs(t, err, ErrStatusChange)

	_, err = repo.UpdateInPlace(ctx, "APL-404", nil)
	assert.ErrorIs(t, err, ErrAppealNotFound)
}

func TestFileAppealRepositoryConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	repo, _ := newFileAppealRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-1", "emp-1", time.Now().UTC())))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.UpdateInPlace(ctx, "APL-1", func(a *models.Appeal) error {
				a.CommunicationLog = append(a.CommunicationLog, models.CommunicationEntry{ID: fmt.Sprintf("c%d", i)})
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	found, err := repo.GetByID(ctx, "APL-1")
	require.NoError(t, err)
	assert.Len(t, found.CommunicationLog, 20)
}

func TestFileAppealRepositoryListByEmployeeNewestFirst(t *testing.T) {
	repo, _ := newFileAppealRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-old", "emp-1", base)))
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-new", "emp-1", base.Add(48*time.Hour))))
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-mid", "emp-1", base.Add(24*time.Hour))))
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-other", "emp-2", base)))
	_, err := repo.Migrate(ctx, "APL-mid", models.AppealStatusWithdrawn, nil)
	require.NoError(t, err)

	list, err := repo.ListByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "APL-new", list[0].AppealID)
	assert.Equal(t, "APL-mid", list[1].AppealID)
	assert.Equal(t, "APL-old", list[2].AppealID)

	pending, err := repo.ListByBucket(ctx, BucketPending)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestFileAppealRepositoryResolvesInterruptedMigration(t *testing.T) {
	repo, dir := newFileAppealRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-1", "emp-1", created)))

	// simulate a crash after the new copy was written but before the old one was removed
	moved := newTestAppeal("APL-1", "emp-1", created)
	moved.Status = models.AppealStatusUnderReview
	moved.UpdatedAt = created.Add(time.Hour)
	payload, err := json.Marshal(moved)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "in-progress"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in-progress", "APL-1.json"), payload, 0o644))

	list, err := repo.ListByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.AppealStatusUnderReview, list[0].Status)

	repaired, err := repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, []AppealBucket{BucketInProgress}, bucketsHolding(t, dir, "APL-1"))

	repaired, err = repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestFileAppealRepositoryGetByIDPrefersNewestCopy(t *testing.T) {
	repo, dir := newFileAppealRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-1", "emp-1", created)))

	moved := newTestAppeal("APL-1", "emp-1", created)
	moved.Status = models.AppealStatusRejected
	moved.UpdatedAt = created.Add(time.Hour)
	payload, err := json.Marshal(moved)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "resolved"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "resolved", "APL-1.json"), payload, 0o644))

	found, err := repo.GetByID(ctx, "APL-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusRejected, found.Status)
	assert.Equal(t, []AppealBucket{BucketResolved}, bucketsHolding(t, dir, "APL-1"))
}

func TestFileAppealRepositoryTieKeepsLaterLifecycleCopy(t *testing.T) {
	repo, dir := newFileAppealRepo(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newTestAppeal("APL-1", "emp-1", created)))

	// migrated copy written within the same clock tick as the pending one
	moved := newTestAppeal("APL-1", "emp-1", created)
	moved.Status = models.AppealStatusUnderReview
	payload, err := json.Marshal(moved)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "in-progress"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in-progress", "APL-1.json"), payload, 0o644))

	list, err := repo.ListByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.AppealStatusUnderReview, list[0].Status)

	found, err := repo.GetByID(ctx, "APL-1")
	require.NoError(t, err)
	assert.Equal(t, models.AppealStatusUnderReview, found.Status)
	assert.Equal(t, []AppealBucket{BucketInProgress}, bucketsHolding(t, dir, "APL-1"))
}
