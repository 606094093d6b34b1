package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

// DirectoryRepository resolves the student contact and course name used to
// address notification payloads.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository constructs the repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// StudentContact returns name and email for a student, or sql.ErrNoRows.
func (r *DirectoryRepository) StudentContact(ctx context.Context, studentID string) (*models.StudentContact, error) {
	const query = `SELECT id, full_name, email FROM students WHERE id = $1`
	var contact models.StudentContact
	if err := r.db.GetContext(ctx, &contact, query, studentID); err != nil {
		return nil, err
	}
	return &contact, nil
}

// CourseName returns the display name of a course, or sql.ErrNoRows.
func (r *DirectoryRepository) CourseName(ctx context.Context, courseID string) (string, error) {
	const query = `SELECT name FROM courses WHERE id = $1`
	var name string
	if err := r.db.GetContext(ctx, &name, query, courseID); err != nil {
		return "", fmt.Errorf("course name: %w", err)
	}
	return name, nil
}
