package models

import "time"

// EnrollmentStatusActive marks enrollments that allow grade entry.
const EnrollmentStatusActive = "active"

// Enrollment ties a student to a course for a term.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	Status     string    `db:"status" json:"status"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// StudentContact is the directory information needed to address a
// notification.
type StudentContact struct {
	StudentID string `db:"id" json:"student_id"`
	FullName  string `db:"full_name" json:"full_name"`
	Email     string `db:"email" json:"email"`
}

// EvaluationDescription is the optional per-course free text attached to a
// slot, used to enrich notification payloads.
type EvaluationDescription struct {
	ID             string     `db:"id" json:"id"`
	CourseID       string     `db:"course_id" json:"course_id"`
	Slot           Slot       `db:"slot" json:"slot"`
	Description    string     `db:"description" json:"description"`
	EvaluationDate *time.Time `db:"evaluation_date" json:"evaluation_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
