package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

// EnrollmentRepository answers the enrollment lookup used to gate grade
// entry.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// IsEnrolled reports whether the student holds an active enrollment in the
// course's term.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND status = $3)`
	var enrolled bool
	if err := r.db.GetContext(ctx, &enrolled, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}
