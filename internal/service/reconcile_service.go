package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sga-platform/sga-notas-api/internal/models"
	appErrors "github.com/sga-platform/sga-notas-api/pkg/errors"
	"github.com/sga-platform/sga-notas-api/pkg/keylock"
)

const (
	slotMin = 0.0
	slotMax = 20.0
)

type recordStore interface {
	GetByKey(ctx context.Context, studentID, courseID string, evaluationType models.EvaluationType) (*models.EvaluationRecord, error)
	Upsert(ctx context.Context, record *models.EvaluationRecord) error
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GradeSubmission is one partial update for a record. Only non-nil slots
// are applied; a nil slot means "leave unchanged", never "clear". There is
// no way to clear a previously entered value.
type GradeSubmission struct {
	StudentID      string                `json:"student_id" validate:"required"`
	CourseID       string                `json:"course_id" validate:"required"`
	EvaluationType models.EvaluationType `json:"evaluation_type" validate:"required"`
	Slots          models.SlotValues     `json:"slots"`
	EvaluationDate *time.Time            `json:"evaluation_date,omitempty"`
	Observations   *string               `json:"observations,omitempty"`
	Actor          string                `json:"actor" validate:"required"`
	Reason         string                `json:"reason,omitempty"`
}

// ReconcileResult carries the persisted record and the diff between its
// pre- and post-mutation images.
type ReconcileResult struct {
	Record  *models.EvaluationRecord
	Diff    models.RecordDiff
	Created bool
	Changed bool
}

// ReconcileService applies partial grade submissions against stored
// records. Each composite key reconciles under its own lock, so two
// concurrent submissions for the same record cannot lose updates to each
// other; different keys proceed in parallel.
type ReconcileService struct {
	records     recordStore
	enrollments enrollmentChecker
	calculator  *GradeCalculator
	cache       cacheInvalidator
	metrics     *MetricsService
	locks       *keylock.KeyedMutex
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewReconcileService constructs the service.
func NewReconcileService(records recordStore, enrollments enrollmentChecker, calculator *GradeCalculator, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReconcileService {
	if calculator == nil {
		calculator = NewGradeCalculator(0, nil)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{
		records:     records,
		enrollments: enrollments,
		calculator:  calculator,
		cache:       cache,
		metrics:     metrics,
		locks:       keylock.New(),
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile validates and applies one submission, returning the record and
// its diff. Rejections happen before any persistence; a rejected
// submission leaves the record untouched.
func (s *ReconcileService) Reconcile(ctx context.Context, sub GradeSubmission) (*ReconcileResult, error) {
	started := s.now()

	if err := s.validator.Struct(sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade submission")
	}
	if !sub.EvaluationType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown evaluation type %q", sub.EvaluationType))
	}
	for _, slot := range models.SlotOrder {
		if v := sub.Slots.Value(slot); v != nil {
			if *v < slotMin || *v > slotMax {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slot %s value %.2f outside [0, 20]", slot, *v))
			}
		}
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, sub.StudentID, sub.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotEnrolled, fmt.Sprintf("student %s not enrolled in course %s", sub.StudentID, sub.CourseID))
	}

	unlock := s.locks.Lock(recordKey(sub.StudentID, sub.CourseID, sub.EvaluationType))
	defer unlock()

	record, created, err := s.fetchOrInit(ctx, sub)
	if err != nil {
		return nil, err
	}

	preImage := record.Snapshot()

	for _, slot := range models.SlotOrder {
		if v := sub.Slots.Value(slot); v != nil {
			record.SetValue(slot, *v)
		}
	}
	if sub.EvaluationDate != nil {
		record.EvaluationDate = *sub.EvaluationDate
	}
	if sub.Observations != nil {
		record.Observations = sub.Observations
	}

	record.FinalAverage, record.Status = s.calculator.CategoryWeighted(record)

	if err := s.records.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist record")
	}

	changes := ComputeDiff(preImage, record.Snapshot())
	result := &ReconcileResult{
		Record: record,
		Diff: models.RecordDiff{
			RecordID:  record.ID,
			StudentID: record.StudentID,
			CourseID:  record.CourseID,
			Changes:   changes,
		},
		Created: created,
		Changed: len(changes) > 0,
	}

	if s.cache != nil {
		pattern := structureCacheKey(record.StudentID, record.CourseID)
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Sugar().Warnw("failed to invalidate structure cache", "student_id", record.StudentID, "course_id", record.CourseID, "error", err)
		}
	}

	if created {
		s.metrics.IncRecordCreated()
	} else {
		s.metrics.IncRecordUpdated()
	}
	s.metrics.ObserveReconcile(s.now().Sub(started))

	return result, nil
}

func (s *ReconcileService) fetchOrInit(ctx context.Context, sub GradeSubmission) (*models.EvaluationRecord, bool, error) {
	record, err := s.records.GetByKey(ctx, sub.StudentID, sub.CourseID, sub.EvaluationType)
	if err == nil {
		return record, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}

	date := s.now()
	if sub.EvaluationDate != nil {
		date = *sub.EvaluationDate
	}
	return &models.EvaluationRecord{
		StudentID:      sub.StudentID,
		CourseID:       sub.CourseID,
		EvaluationType: sub.EvaluationType,
		Weight:         1.0,
		EvaluationDate: date,
		Status:         models.StatusNoGrades,
	}, true, nil
}

func recordKey(studentID, courseID string, evaluationType models.EvaluationType) string {
	return fmt.Sprintf("%s:%s:%s", studentID, courseID, evaluationType)
}
