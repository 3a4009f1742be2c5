package repository

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
)

const draftKeyPrefix = "draft:"

type draftCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisDraftRepository keeps drafts in Redis with an expiry.
type RedisDraftRepository struct {
	cache draftCache
	ttl   time.Duration
}

// NewRedisDraftRepository constructs the repository. Every save refreshes the ttl.
func NewRedisDraftRepository(cache draftCache, ttl time.Duration) *RedisDraftRepository {
	return &RedisDraftRepository{cache: cache, ttl: ttl}
}

// Save overwrites the draft for its key.
func (r *RedisDraftRepository) Save(ctx context.Context, draft *models.SubmissionDraft) error {
	return r.cache.Set(ctx, draftKeyPrefix+draft.Key, draft, r.ttl)
}

// Get loads the draft for key.
func (r *RedisDraftRepository) Get(ctx context.Context, key string) (*models.SubmissionDraft, error) {
	var draft models.SubmissionDraft
	if err := r.cache.Get(ctx, draftKeyPrefix+key, &draft); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, ErrDraftNotFound
		}
		return nil, err
	}
	return &draft, nil
}

// Delete removes the draft for key.
func (r *RedisDraftRepository) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, draftKeyPrefix+key)
}
