package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/noah-isme/staff-appeal-api/internal/models"
)

var (
	// ErrAppealNotFound is returned when no bucket holds the requested appeal.
	ErrAppealNotFound = errors.New("appeal not found")
	// ErrDuplicateAppeal is returned by Create when the id already exists in any bucket.
	ErrDuplicateAppeal = errors.New("appeal already exists")
	// ErrStatusChange is returned when an in-place mutation tries to change the status.
	ErrStatusChange = errors.New("status changes must go through migrate")
)

// AppealBucket is the storage partition an appeal lives in.
type AppealBucket string

const (
	BucketPending    AppealBucket = "pending"
	BucketInProgress AppealBucket = "in-progress"
	BucketResolved   AppealBucket = "resolved"
)

// BucketScanOrder is the fixed order in which lookups visit buckets.
var BucketScanOrder = []AppealBucket{BucketPending, BucketInProgress, BucketResolved}

// BucketForStatus maps a lifecycle status to its bucket.
func BucketForStatus(status models.AppealStatus) (AppealBucket, error) {
	switch status {
	case models.AppealStatusReceived:
		return BucketPending, nil
	case models.AppealStatusUnderReview, models.AppealStatusAdditionalInfoRequested:
		return BucketInProgress, nil
	case models.AppealStatusResolved, models.AppealStatusRejected, models.AppealStatusWithdrawn:
		return BucketResolved, nil
	}
	return "", fmt.Errorf("unknown appeal status %q", status)
}

// AppealMutator edits a private copy of an appeal. Returning an error aborts the write.
type AppealMutator func(*models.Appeal) error

// AppealStore persists appeals partitioned by lifecycle bucket. UpdateInPlace and
// Migrate are serialized per appeal id; different ids proceed in parallel.
type AppealStore interface {
	Create(ctx context.Context, appeal *models.Appeal) error
	GetByID(ctx context.Context, id string) (*models.Appeal, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*models.Appeal, error)
	ListByBucket(ctx context.Context, bucket AppealBucket) ([]*models.Appeal, error)
	UpdateInPlace(ctx context.Context, id string, mutate AppealMutator) (*models.Appeal, error)
	Migrate(ctx context.Context, id string, status models.AppealStatus, mutate AppealMutator) (*models.Appeal, error)
	Reconcile(ctx context.Context) (int, error)
}

// KeyedMutex hands out one mutex per key and frees it when no holder remains.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
