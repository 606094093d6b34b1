package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

const recordColumns = `id, student_id, course_id, evaluation_type,
        evaluation1, evaluation2, evaluation3, evaluation4, evaluation5, evaluation6, evaluation7, evaluation8,
        practice1, practice2, practice3, practice4,
        partial1, partial2,
        weight, evaluation_date, observations, final_average, status, created_at, updated_at`

// RecordRepository persists evaluation records. The composite key
// (student_id, course_id, evaluation_type) is unique; Upsert keys on it so
// a resubmission mutates the live record instead of inserting a duplicate.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// GetByKey returns the live record for the composite key, or sql.ErrNoRows.
func (r *RecordRepository) GetByKey(ctx context.Context, studentID, courseID string, evaluationType models.EvaluationType) (*models.EvaluationRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluation_records
        WHERE student_id = $1 AND course_id = $2 AND evaluation_type = $3`, recordColumns)
	var record models.EvaluationRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, courseID, evaluationType); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByStudentCourse returns every record a student holds in a course,
// across all evaluation types.
func (r *RecordRepository) ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.EvaluationRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM evaluation_records
        WHERE student_id = $1 AND course_id = $2
        ORDER BY evaluation_type`, recordColumns)
	var records []models.EvaluationRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// Upsert inserts or updates the record keyed by its composite key.
func (r *RecordRepository) Upsert(ctx context.Context, record *models.EvaluationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO evaluation_records (id, student_id, course_id, evaluation_type,
            evaluation1, evaluation2, evaluation3, evaluation4, evaluation5, evaluation6, evaluation7, evaluation8,
            practice1, practice2, practice3, practice4,
            partial1, partial2,
            weight, evaluation_date, observations, final_average, status, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :evaluation_type,
            :evaluation1, :evaluation2, :evaluation3, :evaluation4, :evaluation5, :evaluation6, :evaluation7, :evaluation8,
            :practice1, :practice2, :practice3, :practice4,
            :partial1, :partial2,
            :weight, :evaluation_date, :observations, :final_average, :status, :created_at, :updated_at)
        ON CONFLICT (student_id, course_id, evaluation_type)
        DO UPDATE SET
            evaluation1 = EXCLUDED.evaluation1, evaluation2 = EXCLUDED.evaluation2,
            evaluation3 = EXCLUDED.evaluation3, evaluation4 = EXCLUDED.evaluation4,
            evaluation5 = EXCLUDED.evaluation5, evaluation6 = EXCLUDED.evaluation6,
            evaluation7 = EXCLUDED.evaluation7, evaluation8 = EXCLUDED.evaluation8,
            practice1 = EXCLUDED.practice1, practice2 = EXCLUDED.practice2,
            practice3 = EXCLUDED.practice3, practice4 = EXCLUDED.practice4,
            partial1 = EXCLUDED.partial1, partial2 = EXCLUDED.partial2,
            weight = EXCLUDED.weight, evaluation_date = EXCLUDED.evaluation_date,
            observations = EXCLUDED.observations, final_average = EXCLUDED.final_average,
            status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// Delete removes a record and cascades to its audit entries inside one
// transaction. Administrative use only.
func (r *RecordRepository) Delete(ctx context.Context, recordID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM audit_entries WHERE record_id = $1`, recordID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete audit entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM evaluation_records WHERE id = $1`, recordID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// CourseStatistics aggregates stored final averages for a course.
func (r *RecordRepository) CourseStatistics(ctx context.Context, courseID string, approvalThreshold float64) (*models.CourseStatistics, error) {
	const query = `SELECT $1 AS course_id,
            COUNT(*) FILTER (WHERE final_average >= $2) AS approved,
            COUNT(*) FILTER (WHERE final_average < $2) AS disapproved,
            MIN(final_average) AS min,
            MAX(final_average) AS max,
            AVG(final_average) AS average
        FROM evaluation_records
        WHERE course_id = $1 AND final_average IS NOT NULL`
	var stats models.CourseStatistics
	if err := r.db.GetContext(ctx, &stats, query, courseID, approvalThreshold); err != nil {
		return nil, fmt.Errorf("course statistics: %w", err)
	}
	return &stats, nil
}
