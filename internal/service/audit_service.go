package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/staff-appeal-api/internal/models"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
	"github.com/noah-isme/staff-appeal-api/pkg/export"
	"github.com/noah-isme/staff-appeal-api/pkg/logger"
)

type auditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	ListByAppeal(ctx context.Context, appealID string) ([]models.AuditEntry, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// Audit export formats.
const (
	AuditFormatJSON = "json"
	AuditFormatCSV  = "csv"
	AuditFormatPDF  = "pdf"
)

// AuditExport is a rendered audit trail.
type AuditExport struct {
	FileName    string
	ContentType string
	Body        []byte
}

// AuditService appends audit entries. Write failures go to the audit error
// channel and never reach the caller.
type AuditService struct {
	store   auditStore
	errLog  *zap.Logger
	metrics *MetricsService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	now     func() time.Time
}

// NewAuditService constructs the service.
func NewAuditService(store auditStore, log *zap.Logger, metrics *MetricsService) *AuditService {
	return &AuditService{
		store:   store,
		errLog:  logger.AuditErrors(log),
		metrics: metrics,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Record persists entry. Cancellation of ctx does not abort the write.
func (s *AuditService) Record(ctx context.Context, entry models.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.store.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.metrics.AuditWriteFailed()
		s.errLog.Error("audit write failed",
			zap.String("appeal_id", entry.AppealID),
			zap.String("action", string(entry.Action)),
			zap.String("actor_id", entry.ActorID),
			zap.Any("details", entry.Details),
			zap.Error(err),
		)
	}
}

// Trail returns the entries recorded for an appeal, oldest first.
func (s *AuditService) Trail(ctx context.Context, appealID string) ([]models.AuditEntry, error) {
	entries, err := s.store.ListByAppeal(ctx, appealID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage, "failed to read audit log")
	}
	return entries, nil
}

// Export renders the trail of an appeal as json, csv or pdf.
func (s *AuditService) Export(ctx context.Context, appealID, format string) (*AuditExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = AuditFormatJSON
	}
	if format != AuditFormatJSON && format != AuditFormatCSV && format != AuditFormatPDF {
		return nil, appErrors.WithDetail(appErrors.Clone(appErrors.ErrValidation, "unsupported export format"), "format", format)
	}
	entries, err := s.Trail(ctx, appealID)
	if err != nil {
		return nil, err
	}
	base := fmt.Sprintf("audit-%s", appealID)

	switch format {
	case AuditFormatCSV:
		body, err := s.csv.Render(auditTable(appealID, entries))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to render csv")
		}
		return &AuditExport{FileName: base + ".csv", ContentType: "text/csv", Body: body}, nil
	case AuditFormatPDF:
		body, err := s.pdf.Render(auditTable(appealID, entries))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to render pdf")
		}
		return &AuditExport{FileName: base + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		body, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal, "failed to render json")
		}
		return &AuditExport{FileName: base + ".json", ContentType: "application/json", Body: body}, nil
	}
}

func auditTable(appealID string, entries []models.AuditEntry) export.Table {
	table := export.Table{
		Title:   "Audit trail " + appealID,
		Headers: []string{"timestamp", "action", "actor", "role", "details"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, entry := range entries {
		table.Rows = append(table.Rows, []string{
			entry.Timestamp.UTC().Format(time.RFC3339),
			string(entry.Action),
			entry.ActorID,
			entry.ActorRole,
			formatDetails(entry.Details),
		})
	}
	return table
}

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+details[k])
	}
	return strings.Join(parts, "; ")
}

// newAuditEntry builds an entry for actor.
func newAuditEntry(appealID string, action models.AuditAction, actor models.Actor, details map[string]string) models.AuditEntry {
	return models.AuditEntry{
		AppealID:  appealID,
		Action:    action,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Details:   details,
	}
}
