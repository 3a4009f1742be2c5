package repository

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	"github.com/noah-isme/staff-appeal-api/pkg/storage"
)

const (
	auditFilePrefix = "audit-"
	auditFileSuffix = ".jsonl"
)

// FileAuditRepository appends audit entries as JSON lines, one file per UTC day.
type FileAuditRepository struct {
	files *storage.LocalStorage
	mu    sync.Mutex
}

// NewFileAuditRepository constructs the repository.
func NewFileAuditRepository(files *storage.LocalStorage) *FileAuditRepository {
	return &FileAuditRepository{files: files}
}

// AuditFileName returns the daily file an entry belongs to.
func AuditFileName(entry models.AuditEntry) string {
	return auditFilePrefix + entry.Timestamp.UTC().Format("2006-01-02") + auditFileSuffix
}

// Append writes entry as a single line.
func (r *FileAuditRepository) Append(ctx context.Context, entry models.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.files.Append(AuditFileName(entry), line); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByAppeal returns every entry recorded for appealID in chronological order.
// Malformed lines are skipped.
func (r *FileAuditRepository) ListByAppeal(ctx context.Context, appealID string) ([]models.AuditEntry, error) {
	names, err := r.files.List("", auditFileSuffix)
	if err != nil {
		return nil, fmt.Errorf("list audit files: %w", err)
	}
	needle := []byte(`"appealId":"` + appealID + `"`)
	entries := make([]models.AuditEntry, 0)
	for _, name := range names {
		if !strings.HasPrefix(name, auditFilePrefix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := r.files.Read(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		scanner := bufio.NewScanner(bytes.NewReader(raw))
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if !bytes.Contains(line, needle) {
				continue
			}
			var entry models.AuditEntry
			if err := json.Unmarshal(line, &entry); err != nil || entry.AppealID != appealID {
				continue
			}
			entries = append(entries, entry)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
