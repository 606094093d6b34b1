package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

func TestAuditRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_entries")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	old := 12.0
	newVal := 14.0
	entry := &models.AuditEntry{
		RecordID:  "rec-1",
		StudentID: "stu-1",
		CourseID:  "course-1",
		Changes:   models.SlotChangeList{{Slot: models.SlotPractice1, Old: &old, New: &newVal}},
		Actor:     "teacher-9",
		Reason:    "corrected transcription error",
	}
	require.NoError(t, repo.Append(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	changes := []byte(`[{"slot":"evaluation1","new":15}]`)
	rows := sqlmock.NewRows([]string{"id", "record_id", "student_id", "course_id", "changes", "actor", "reason", "created_at"}).
		AddRow("aud-1", "rec-1", "stu-1", "course-1", changes, "teacher-9", "initial entry", time.Now())
	mock.ExpectQuery("SELECT .+ FROM audit_entries").
		WithArgs("rec-1").
		WillReturnRows(rows)

	entries, err := repo.ListByRecord(context.Background(), "rec-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Changes, 1)
	require.Equal(t, models.SlotEvaluation1, entries[0].Changes[0].Slot)
	require.Nil(t, entries[0].Changes[0].Old)
	require.NotNil(t, entries[0].Changes[0].New)
}
