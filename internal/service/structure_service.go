package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sga-platform/sga-notas-api/internal/models"
	appErrors "github.com/sga-platform/sga-notas-api/pkg/errors"
)

type structureRecordLister interface {
	ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.EvaluationRecord, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StructureService checks whether a student's recorded items match the
// expected per-category structure of a full term. It is a reporting and
// certification gate; it never blocks grade entry.
type StructureService struct {
	records  structureRecordLister
	cache    reportCache
	expected models.StructureExpectation
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStructureService constructs the service. A nil cache disables report
// caching.
func NewStructureService(records structureRecordLister, cache reportCache, expected models.StructureExpectation, cacheTTL time.Duration, logger *zap.Logger) *StructureService {
	if expected == (models.StructureExpectation{}) {
		expected = models.DefaultStructureExpectation()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StructureService{records: records, cache: cache, expected: expected, cacheTTL: cacheTTL, logger: logger}
}

func structureCacheKey(studentID, courseID string) string {
	return fmt.Sprintf("structure:%s:%s", studentID, courseID)
}

// Validate counts the recorded items per category against the expected
// counts. Completeness requires an exact match per category, not a
// minimum.
func (s *StructureService) Validate(ctx context.Context, studentID, courseID string) (*models.StructureReport, error) {
	key := structureCacheKey(studentID, courseID)
	if s.cache != nil {
		var cached models.StructureReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	records, err := s.records.ListByStudentCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluation records")
	}

	counts := map[models.EvaluationType]int{}
	for i := range records {
		for _, slot := range models.SlotOrder {
			if records[i].Value(slot) != nil {
				counts[slot.Category()]++
			}
		}
	}

	report := &models.StructureReport{
		StudentID:   studentID,
		CourseID:    courseID,
		Evaluations: categoryCount(counts[models.EvaluationTypeEvaluation], s.expected.Evaluations),
		Practices:   categoryCount(counts[models.EvaluationTypePractice], s.expected.Practices),
		Partials:    categoryCount(counts[models.EvaluationTypePartial], s.expected.Partials),
	}
	report.StructureComplete = report.Evaluations.Complete && report.Practices.Complete && report.Partials.Complete

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("failed to cache structure report", "student_id", studentID, "course_id", courseID, "error", err)
		}
	}

	return report, nil
}

func categoryCount(recorded, expected int) models.CategoryCount {
	return models.CategoryCount{
		Expected: expected,
		Recorded: recorded,
		Complete: recorded == expected,
	}
}
