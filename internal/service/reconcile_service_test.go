package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sga-platform/sga-notas-api/internal/models"
	appErrors "github.com/sga-platform/sga-notas-api/pkg/errors"
)

type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]models.EvaluationRecord
	upserts int
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{records: map[string]models.EvaluationRecord{}}
}

func storeKey(studentID, courseID string, evaluationType models.EvaluationType) string {
	return fmt.Sprintf("%s|%s|%s", studentID, courseID, evaluationType)
}

func (f *fakeRecordStore) GetByKey(ctx context.Context, studentID, courseID string, evaluationType models.EvaluationType) (*models.EvaluationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[storeKey(studentID, courseID, evaluationType)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := record
	return &copied, nil
}

func (f *fakeRecordStore) Upsert(ctx context.Context, record *models.EvaluationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if record.ID == "" {
		record.ID = fmt.Sprintf("rec-%d", len(f.records)+1)
	}
	f.upserts++
	f.records[storeKey(record.StudentID, record.CourseID, record.EvaluationType)] = *record
	return nil
}

func (f *fakeRecordStore) seed(record models.EvaluationRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[storeKey(record.StudentID, record.CourseID, record.EvaluationType)] = record
}

type fakeEnrollment struct {
	enrolled bool
	err      error
}

func (f *fakeEnrollment) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	return f.enrolled, f.err
}

type fakeInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (f *fakeInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = append(f.patterns, pattern)
	return nil
}

func newTestReconciler(store *fakeRecordStore, enrollment *fakeEnrollment, cache *fakeInvalidator) *ReconcileService {
	var invalidator cacheInvalidator
	if cache != nil {
		invalidator = cache
	}
	return NewReconcileService(store, enrollment, nil, invalidator, nil, nil, nil)
}

func TestReconcileCreatesRecord(t *testing.T) {
	store := newFakeRecordStore()
	cache := &fakeInvalidator{}
	svc := newTestReconciler(store, &fakeEnrollment{enrolled: true}, cache)

	result, err := svc.Reconcile(context.Background(), GradeSubmission{
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Slots:          models.SlotValues{Evaluation1: fptr(15)},
		Actor:          "teacher-1",
	})
	require.NoError(t, err)

	assert.True(t, result.Created)
	assert.True(t, result.Changed)
	require.Len(t, result.Diff.Changes, 1)
	assert.Equal(t, models.SlotEvaluation1, result.Diff.Changes[0].Slot)
	assert.Nil(t, result.Diff.Changes[0].Old)
	require.NotNil(t, result.Diff.Changes[0].New)
	assert.Equal(t, 15.0, *result.Diff.Changes[0].New)

	require.NotNil(t, result.Record.FinalAverage)
	assert.Equal(t, 1.50, *result.Record.FinalAverage)
	assert.Equal(t, models.StatusDisapproved, result.Record.Status)
	assert.Equal(t, 1.0, result.Record.Weight)
	assert.NotEmpty(t, result.Record.ID)
	assert.Equal(t, result.Record.ID, result.Diff.RecordID)

	assert.Equal(t, []string{"structure:s1:c1"}, cache.patterns)
}

func TestReconcileIdempotentSubmission(t *testing.T) {
	store := newFakeRecordStore()
	existing := models.EvaluationRecord{
		ID:             "rec-1",
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Weight:         1.0,
		EvaluationDate: time.Now().UTC(),
	}
	existing.SetValue(models.SlotEvaluation1, 15)
	store.seed(existing)

	svc := newTestReconciler(store, &fakeEnrollment{enrolled: true}, nil)

	result, err := svc.Reconcile(context.Background(), GradeSubmission{
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Slots:          models.SlotValues{Evaluation1: fptr(15)},
		Actor:          "teacher-1",
	})
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.False(t, result.Changed)
	assert.True(t, result.Diff.Empty())
}

func TestReconcilePartialUpdateKeepsOtherSlots(t *testing.T) {
	store := newFakeRecordStore()
	existing := models.EvaluationRecord{
		ID:             "rec-1",
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Weight:         1.0,
	}
	existing.SetValue(models.SlotEvaluation1, 10)
	store.seed(existing)

	svc := newTestReconciler(store, &fakeEnrollment{enrolled: true}, nil)

	result, err := svc.Reconcile(context.Background(), GradeSubmission{
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Slots:          models.SlotValues{Evaluation2: fptr(18)},
		Actor:          "teacher-1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Record.Value(models.SlotEvaluation1))
	assert.Equal(t, 10.0, *result.Record.Value(models.SlotEvaluation1))
	require.NotNil(t, result.Record.Value(models.SlotEvaluation2))
	assert.Equal(t, 18.0, *result.Record.Value(models.SlotEvaluation2))

	require.Len(t, result.Diff.Changes, 1)
	assert.Equal(t, models.SlotEvaluation2, result.Diff.Changes[0].Slot)
}

func TestReconcileRejectsOutOfRange(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestReconciler(store, &fakeEnrollment{enrolled: true}, nil)

	_, err := svc.Reconcile(context.Background(), GradeSubmission{
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Slots: models.SlotValues{
			Evaluation1: fptr(15),
			Evaluation2: fptr(25),
		},
		Actor: "teacher-1",
	})
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "evaluation2")

	// all-or-nothing: the in-range slot was not applied either
	assert.Equal(t, 0, store.upserts)
}

func TestReconcileRejectsNegativeValue(t *testing.T) {
	svc := newTestReconciler(newFakeRecordStore(), &fakeEnrollment{enrolled: true}, nil)

	_, err := svc.Reconcile(context.Background(), GradeSubmission{
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypePartial,
		Slots:          models.SlotValues{Partial1: fptr(-0.5)},
		Actor:          "teacher-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReconcileRejectsUnknownEvaluationType(t *testing.T) {
	svc := newTestReconciler(newFakeRecordStore(), &fakeEnrollment{enrolled: true}, nil)

	_, err := svc.Reconcile(context.Background(), GradeSubmission{
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: "HOMEWORK",
		Slots:          models.SlotValues{Evaluation1: fptr(12)},
		Actor:          "teacher-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReconcileRejectsUnenrolledStudent(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestReconciler(store, &fakeEnrollment{enrolled: false}, nil)

	_, err := svc.Reconcile(context.Background(), GradeSubmission{
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		Slots:          models.SlotValues{Evaluation1: fptr(12)},
		Actor:          "teacher-1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotEnrolled.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.upserts)
}

func TestReconcileConcurrentSameKey(t *testing.T) {
	store := newFakeRecordStore()
	svc := newTestReconciler(store, &fakeEnrollment{enrolled: true}, nil)

	var wg sync.WaitGroup
	for _, slot := range models.SlotOrder {
		wg.Add(1)
		go func(s models.Slot) {
			defer wg.Done()
			patch := models.SlotValues{}
			patch.SetValue(s, 14)
			_, err := svc.Reconcile(context.Background(), GradeSubmission{
				StudentID:      "s1",
				CourseID:       "c1",
				EvaluationType: models.EvaluationTypeEvaluation,
				Slots:          patch,
				Actor:          "teacher-1",
			})
			assert.NoError(t, err)
		}(slot)
	}
	wg.Wait()

	record, err := store.GetByKey(context.Background(), "s1", "c1", models.EvaluationTypeEvaluation)
	require.NoError(t, err)
	for _, slot := range models.SlotOrder {
		require.NotNil(t, record.Value(slot), "slot %s lost", slot)
		assert.Equal(t, 14.0, *record.Value(slot))
	}
}
