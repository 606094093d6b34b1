package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sga-platform/sga-notas-api/internal/models"
	appErrors "github.com/sga-platform/sga-notas-api/pkg/errors"
)

type auditStore interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByRecord(ctx context.Context, recordID string) ([]models.AuditEntry, error)
}

// AuditService appends one history entry per accepted mutation whose diff
// is non-empty. Idempotent submissions produce no entry.
type AuditService struct {
	store   auditStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(store auditStore, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, metrics: metrics, logger: logger}
}

// Record writes the audit entry for a diff. An empty diff returns nil, nil
// without touching storage.
func (s *AuditService) Record(ctx context.Context, diff models.RecordDiff, actor, reason string) (*models.AuditEntry, error) {
	if diff.Empty() {
		return nil, nil
	}

	entry := &models.AuditEntry{
		RecordID:  diff.RecordID,
		StudentID: diff.StudentID,
		CourseID:  diff.CourseID,
		Changes:   models.SlotChangeList(diff.Changes),
		Actor:     actor,
		Reason:    reason,
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append audit entry")
	}

	s.metrics.IncAuditEntry()
	s.logger.Sugar().Infow("audit entry recorded",
		"record_id", entry.RecordID,
		"student_id", entry.StudentID,
		"course_id", entry.CourseID,
		"changed_slots", len(entry.Changes),
		"actor", entry.Actor,
	)
	return entry, nil
}

// History returns a record's audit trail, newest first.
func (s *AuditService) History(ctx context.Context, recordID string) ([]models.AuditEntry, error) {
	entries, err := s.store.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit history")
	}
	return entries, nil
}
