package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sga-platform/sga-notas-api/internal/models"
	appErrors "github.com/sga-platform/sga-notas-api/pkg/errors"
)

func newTestBatch(store *fakeRecordStore, auditStore *fakeAuditStore) *BatchService {
	reconciler := newTestReconciler(store, &fakeEnrollment{enrolled: true}, nil)
	audit := NewAuditService(auditStore, nil, nil)
	return NewBatchService(reconciler, audit, nil, nil)
}

func TestBatchApplyMixedOutcomes(t *testing.T) {
	store := newFakeRecordStore()
	existing := models.EvaluationRecord{
		ID:             "rec-1",
		StudentID:      "s3",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Weight:         1.0,
	}
	existing.SetValue(models.SlotEvaluation1, 10)
	store.seed(existing)

	auditStore := &fakeAuditStore{}
	svc := newTestBatch(store, auditStore)

	result, err := svc.Apply(context.Background(), BatchRequest{
		CourseID: "c1",
		Items: []GradeSubmission{
			{
				StudentID:      "s1",
				EvaluationType: models.EvaluationTypeEvaluation,
				Slots:          models.SlotValues{Evaluation1: fptr(15)},
				Actor:          "teacher-1",
			},
			{
				StudentID:      "s2",
				EvaluationType: models.EvaluationTypeEvaluation,
				Slots:          models.SlotValues{Evaluation1: fptr(25)},
				Actor:          "teacher-1",
			},
			{
				StudentID:      "s3",
				EvaluationType: models.EvaluationTypeEvaluation,
				Slots:          models.SlotValues{Evaluation1: fptr(12)},
				Actor:          "teacher-1",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Equal(t, "s2", result.Errors[0].StudentID)
	assert.Contains(t, result.Errors[0].Reason, "evaluation1")

	// one audit entry per accepted item that changed something
	assert.Len(t, auditStore.appended, 2)

	// the rejected item left no record behind
	_, err = store.GetByKey(context.Background(), "s2", "c1", models.EvaluationTypeEvaluation)
	assert.Error(t, err)
}

func TestBatchApplyItemsAreIndependent(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestBatch(store, &fakeAuditStore{})

	result, err := svc.Apply(context.Background(), BatchRequest{
		CourseID: "c1",
		Items: []GradeSubmission{
			{
				StudentID:      "s1",
				EvaluationType: "HOMEWORK",
				Slots:          models.SlotValues{Evaluation1: fptr(10)},
				Actor:          "teacher-1",
			},
			{
				StudentID:      "s2",
				EvaluationType: models.EvaluationTypeEvaluation,
				Slots:          models.SlotValues{Evaluation1: fptr(16)},
				Actor:          "teacher-1",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].Index)

	record, err := store.GetByKey(context.Background(), "s2", "c1", models.EvaluationTypeEvaluation)
	require.NoError(t, err)
	require.NotNil(t, record.Value(models.SlotEvaluation1))
	assert.Equal(t, 16.0, *record.Value(models.SlotEvaluation1))
}

func TestBatchApplyRejectsEmptyRequest(t *testing.T) {
	svc := newTestBatch(newFakeRecordStore(), &fakeAuditStore{})

	_, err := svc.Apply(context.Background(), BatchRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Apply(context.Background(), BatchRequest{Items: []GradeSubmission{{StudentID: "s1"}}})
	require.Error(t, err)
}

func TestBatchApplyUsesRequestCourse(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestBatch(store, &fakeAuditStore{})

	_, err := svc.Apply(context.Background(), BatchRequest{
		CourseID: "c9",
		Items: []GradeSubmission{
			{
				StudentID:      "s1",
				CourseID:       "ignored",
				EvaluationType: models.EvaluationTypePartial,
				Slots:          models.SlotValues{Partial1: fptr(13)},
				Actor:          "teacher-1",
			},
		},
	})
	require.NoError(t, err)

	_, err = store.GetByKey(context.Background(), "s1", "c9", models.EvaluationTypePartial)
	assert.NoError(t, err)
}
