package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsApplyAppealSettings(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, 21, cfg.Appeals.ResponseSLADays)
	assert.Equal(t, BackendFile, cfg.Appeals.StorageBackend)
	assert.Equal(t, "standard", cfg.Appeals.ScoringScheme)
	assert.Equal(t, int64(10*1024*1024), cfg.Appeals.MaxEvidenceSizeBytes)
	assert.Contains(t, cfg.Appeals.AllowedEvidenceMIMEs, "application/pdf")
	assert.Equal(t, 3, cfg.Remote.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Remote.BaseDelay)
	assert.Equal(t, 72*time.Hour, cfg.Reminder.LeadTime)
}

func TestOverridesFromEnvironment(t *testing.T) {
	t.Setenv("APPEAL_SCORING_SCHEME", "graded_100")
	t.Setenv("APPEAL_RESPONSE_SLA_DAYS", "0")
	t.Setenv("NOTIFY_ADMIN_RECIPIENTS", "hr@example.com, ops@example.com")

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, "graded_100", cfg.Appeals.ScoringScheme)
	assert.Equal(t, 21, cfg.Appeals.ResponseSLADays)
	assert.Equal(t, []string{"hr@example.com", "ops@example.com"}, cfg.Notifications.AdminRecipients)
}

func TestLoadReferenceData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.yaml")
	content := `periods:
  - id: "2026-H1"
    name: "First half 2026"
    appeal_deadline: "2026-07-31T23:59:59+09:00"
    status: active
  - id: "2025-H2"
    appeal_deadline: "2026-01-31"
    status: closed
reviewers:
  - id: head-1
    name: Department Head
    tier: department_head
    department_id: nursing
  - id: chief-1
    tier: section_chief
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	data, err := LoadReferenceData(path)
	require.NoError(t, err)
	require.Len(t, data.Periods, 2)
	require.Len(t, data.Reviewers, 2)

	deadline, err := data.Periods[0].Deadline()
	require.NoError(t, err)
	assert.Equal(t, 2026, deadline.Year())
	assert.Equal(t, "nursing", data.Reviewers[0].DepartmentID)

	dateOnly, err := data.Periods[1].Deadline()
	require.NoError(t, err)
	assert.Equal(t, 23, dateOnly.Hour())
}

func TestLoadReferenceDataRejectsInvalidDeadline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.yaml")
	require.NoError(t, os.WriteFile(path, []byte("periods:\n  - id: p1\n    appeal_deadline: soon\n"), 0o644))

	_, err := LoadReferenceData(path)
	require.Error(t, err)
}
