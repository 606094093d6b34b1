package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

func TestDescriptionRepositoryDescribe(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDescriptionRepository(db)

	rows := sqlmock.NewRows([]string{"description"}).AddRow("Unit 3 quiz")
	mock.ExpectQuery("SELECT description FROM evaluation_descriptions").
		WithArgs("course-1", models.SlotEvaluation3).
		WillReturnRows(rows)

	description, err := repo.Describe(context.Background(), "course-1", models.SlotEvaluation3)
	require.NoError(t, err)
	require.NotNil(t, description)
	require.Equal(t, "Unit 3 quiz", *description)
}

func TestDescriptionRepositoryDescribeMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDescriptionRepository(db)

	mock.ExpectQuery("SELECT description FROM evaluation_descriptions").
		WithArgs("course-1", models.SlotPartial1).
		WillReturnRows(sqlmock.NewRows([]string{"description"}))

	description, err := repo.Describe(context.Background(), "course-1", models.SlotPartial1)
	require.NoError(t, err)
	require.Nil(t, description)
}

func TestDescriptionRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDescriptionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO evaluation_descriptions")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	desc := &models.EvaluationDescription{
		CourseID:    "course-1",
		Slot:        models.SlotEvaluation1,
		Description: "Vocabulary test",
	}
	require.NoError(t, repo.Upsert(context.Background(), desc))
	require.NotEmpty(t, desc.ID)
	require.False(t, desc.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDescriptionRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDescriptionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM evaluation_descriptions WHERE course_id = $1 AND slot = $2")).
		WithArgs("course-1", models.SlotPractice2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "course-1", models.SlotPractice2))
	require.NoError(t, mock.ExpectationsWereMet())
}
