package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/pkg/storage"
)

func TestFileAuditRepositoryRotatesDaily(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	repo := NewFileAuditRepository(files)
	ctx := context.Background()

	day1 := time.Date(2024, 4, 1, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)
	require.NoError(t, repo.Append(ctx, models.AuditEntry{ID: "a1", Timestamp: day1, AppealID: "APL-1", Action: models.AuditActionSubmit, ActorID: "emp-1"}))
	require.NoError(t, repo.Append(ctx, models.AuditEntry{ID: "a2", Timestamp: day1, AppealID: "APL-2", Action: models.AuditActionSubmit, ActorID: "emp-2"}))
	require.NoError(t, repo.Append(ctx, models.AuditEntry{ID: "a3", Timestamp: day2, AppealID: "APL-1", Action: models.AuditActionStartReview, ActorID: "rev-1"}))

	raw, err := os.ReadFile(filepath.Join(dir, "audit-2024-04-01.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
	_, err = os.Stat(filepath.Join(dir, "audit-2024-04-02.jsonl"))
	require.NoError(t, err)

	entries, err := repo.ListByAppeal(ctx, "APL-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionSubmit, entries[0].Action)
	assert.Equal(t, models.AuditActionStartReview, entries[1].Action)
}

func TestFileAuditRepositorySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	repo := NewFileAuditRepository(files)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "audit-2024-04-01.jsonl"),
		[]byte("{\"appealId\":\"APL-1\", broken\n{\"id\":\"ok\",\"appealId\":\"APL-1\",\"action\":\"comment\"}\n"), 0o644))

	entries, err := repo.ListByAppeal(context.Background(), "APL-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok", entries[0].ID)
}
