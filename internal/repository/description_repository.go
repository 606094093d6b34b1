package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

// DescriptionRepository stores per-course evaluation descriptions keyed by
// (course_id, slot). The read path enriches notification payloads.
type DescriptionRepository struct {
	db *sqlx.DB
}

// NewDescriptionRepository constructs the repository.
func NewDescriptionRepository(db *sqlx.DB) *DescriptionRepository {
	return &DescriptionRepository{db: db}
}

// Describe returns the description text for a course slot, or nil when no
// description is stored.
func (r *DescriptionRepository) Describe(ctx context.Context, courseID string, slot models.Slot) (*string, error) {
	const query = `SELECT description FROM evaluation_descriptions
        WHERE course_id = $1 AND slot = $2`
	var description string
	if err := r.db.GetContext(ctx, &description, query, courseID, slot); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("describe slot: %w", err)
	}
	return &description, nil
}

// ListByCourse returns every description stored for a course.
func (r *DescriptionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.EvaluationDescription, error) {
	const query = `SELECT id, course_id, slot, description, evaluation_date, created_at, updated_at
        FROM evaluation_descriptions
        WHERE course_id = $1
        ORDER BY slot`
	var descriptions []models.EvaluationDescription
	if err := r.db.SelectContext(ctx, &descriptions, query, courseID); err != nil {
		return nil, fmt.Errorf("list descriptions: %w", err)
	}
	return descriptions, nil
}

// Upsert inserts or replaces the description for a course slot.
func (r *DescriptionRepository) Upsert(ctx context.Context, desc *models.EvaluationDescription) error {
	if desc.ID == "" {
		desc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if desc.CreatedAt.IsZero() {
		desc.CreatedAt = now
	}
	desc.UpdatedAt = now
	const query = `INSERT INTO evaluation_descriptions (id, course_id, slot, description, evaluation_date, created_at, updated_at)
        VALUES (:id, :course_id, :slot, :description, :evaluation_date, :created_at, :updated_at)
        ON CONFLICT (course_id, slot)
        DO UPDATE SET description = EXCLUDED.description,
            evaluation_date = EXCLUDED.evaluation_date,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, desc); err != nil {
		return fmt.Errorf("upsert description: %w", err)
	}
	return nil
}

// Delete removes the description for a course slot.
func (r *DescriptionRepository) Delete(ctx context.Context, courseID string, slot models.Slot) error {
	const query = `DELETE FROM evaluation_descriptions WHERE course_id = $1 AND slot = $2`
	if _, err := r.db.ExecContext(ctx, query, courseID, slot); err != nil {
		return fmt.Errorf("delete description: %w", err)
	}
	return nil
}
