package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

// AuditRepository persists the append-only grade change history. Rows are
// never updated; deletion happens only as a cascade from record deletion.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_entries (id, record_id, student_id, course_id, changes, actor, reason, created_at)
        VALUES (:id, :record_id, :student_id, :course_id, :changes, :actor, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByRecord returns a record's history, newest first.
func (r *AuditRepository) ListByRecord(ctx context.Context, recordID string) ([]models.AuditEntry, error) {
	const query = `SELECT id, record_id, student_id, course_id, changes, actor, reason, created_at
        FROM audit_entries
        WHERE record_id = $1
        ORDER BY created_at DESC`
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, recordID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
