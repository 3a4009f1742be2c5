package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/staff-appeal-api/internal/dto"
	"github.com/noah-isme/staff-appeal-api/internal/models"
	appErrors "github.com/noah-isme/staff-appeal-api/pkg/errors"
)

// EvidencePolicy bounds evidence attached to an appeal.
type EvidencePolicy struct {
	MaxSizeBytes int64
	MaxCount     int
	AllowedMIMEs []string
}

// Validate checks docs against the policy, counting existing documents towards the limit.
func (p EvidencePolicy) Validate(docs []dto.EvidenceDocumentInput, existing int) error {
	if p.MaxCount > 0 && existing+len(docs) > p.MaxCount {
		return appErrors.WithDetail(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d evidence documents are allowed", p.MaxCount)),
			"field", "evidenceDocuments")
	}
	for _, doc := range docs {
		if p.MaxSizeBytes > 0 && doc.SizeBytes > p.MaxSizeBytes {
			return appErrors.WithDetail(
				appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds the %d byte limit", doc.FileName, p.MaxSizeBytes)),
				"field", "evidenceDocuments")
		}
		if !p.allowed(doc.MIMEType) {
			return appErrors.WithDetail(
				appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s has unsupported type %s", doc.FileName, doc.MIMEType)),
				"field", "evidenceDocuments")
		}
	}
	return nil
}

func (p EvidencePolicy) allowed(mime string) bool {
	if len(p.AllowedMIMEs) == 0 {
		return true
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, allowed := range p.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

func toEvidenceDocuments(docs []dto.EvidenceDocumentInput) []models.EvidenceDocument {
	out := make([]models.EvidenceDocument, 0, len(docs))
	for _, doc := range docs {
		out = append(out, models.EvidenceDocument{
			ID:        uuid.NewString(),
			FileName:  doc.FileName,
			MIMEType:  doc.MIMEType,
			SizeBytes: doc.SizeBytes,
			Reference: doc.Reference,
		})
	}
	return out
}
