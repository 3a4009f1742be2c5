package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/pkg/storage"
)

// ErrDraftNotFound is returned when no draft is cached under a key.
var ErrDraftNotFound = errors.New("draft not found")

// DraftStore caches cross-system submissions until the remote system accepts them.
type DraftStore interface {
	Save(ctx context.Context, draft *models.SubmissionDraft) error
	Get(ctx context.Context, key string) (*models.SubmissionDraft, error)
	Delete(ctx context.Context, key string) error
}

var safeDraftKey = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// DraftFileName maps a client supplied key onto a safe file name.
func DraftFileName(key string) string {
	if safeDraftKey.MatchString(key) && key != "." && key != ".." {
		return key + ".json"
	}
	sum := sha256.Sum256([]byte(key))
	return "k-" + hex.EncodeToString(sum[:16]) + ".json"
}

// FileDraftRepository stores each draft as <draftDir>/<key>.json.
type FileDraftRepository struct {
	files *storage.LocalStorage
	locks *KeyedMutex
}

// NewFileDraftRepository constructs the repository.
func NewFileDraftRepository(files *storage.LocalStorage) *FileDraftRepository {
	return &FileDraftRepository{files: files, locks: NewKeyedMutex()}
}

// Save overwrites the draft for its key.
func (r *FileDraftRepository) Save(ctx context.Context, draft *models.SubmissionDraft) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	unlock := r.locks.Lock(draft.Key)
	defer unlock()
	if err := r.files.Save(DraftFileName(draft.Key), payload); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Get loads the draft for key.
func (r *FileDraftRepository) Get(ctx context.Context, key string) (*models.SubmissionDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock := r.locks.Lock(key)
	defer unlock()
	raw, err := r.files.Read(DraftFileName(key))
	if errors.Is(err, storage.ErrNotExist) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	var draft models.SubmissionDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &draft, nil
}

// Delete removes the draft for key.
func (r *FileDraftRepository) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := r.locks.Lock(key)
	defer unlock()
	if err := r.files.Delete(DraftFileName(key)); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Cleanup removes drafts untouched for longer than ttl.
func (r *FileDraftRepository) Cleanup(ttl time.Duration) (int, error) {
	deleted, err := r.files.CleanupOlderThan("", ttl)
	return len(deleted), err
}
