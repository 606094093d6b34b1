package service

import (
	"math"

	"github.com/sga-platform/sga-notas-api/internal/models"
)

// DefaultApprovalThreshold is the pass cut-off used when no configuration
// override is supplied. Historical call sites disagreed between 10.5 and
// 11; the operative value is configurable and this default mirrors the
// calculator's original constant.
const DefaultApprovalThreshold = 10.5

// GradeCalculator aggregates a record's slot values into a final average
// and status. Both aggregation strategies are exposed as separate methods;
// they are not interchangeable.
type GradeCalculator struct {
	threshold float64
	weights   models.WeightConfiguration
}

// NewGradeCalculator constructs a calculator. Zero threshold or nil
// weights fall back to the defaults.
func NewGradeCalculator(threshold float64, weights models.WeightConfiguration) *GradeCalculator {
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}
	if weights == nil {
		weights = models.DefaultWeights()
	}
	return &GradeCalculator{threshold: threshold, weights: weights}
}

// RoundHalfUp rounds a non-negative grade to two decimal places, ties
// rounding up.
func RoundHalfUp(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// SimpleMean returns the arithmetic mean of every non-absent slot across
// all three categories. Used when a single record's own average is
// requested.
func (c *GradeCalculator) SimpleMean(record *models.EvaluationRecord) (*float64, models.RecordStatus) {
	var sum float64
	var count int
	for _, slot := range models.SlotOrder {
		if v := record.Value(slot); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return nil, models.StatusNoGrades
	}
	avg := RoundHalfUp(sum / float64(count))
	return &avg, c.status(avg)
}

// CategoryWeighted returns the term aggregation: each category's own
// average scaled by its weight, summed. A category with no graded slots
// contributes 0; the per-category divisors are never renormalized against
// each other.
func (c *GradeCalculator) CategoryWeighted(record *models.EvaluationRecord) (*float64, models.RecordStatus) {
	graded := 0
	total := 0.0
	for _, category := range []models.EvaluationType{
		models.EvaluationTypeEvaluation,
		models.EvaluationTypePractice,
		models.EvaluationTypePartial,
	} {
		values := record.CategoryValues(category)
		if len(values) == 0 {
			continue
		}
		graded += len(values)
		total += categoryAverage(values) * c.weights[category]
	}
	if graded == 0 {
		return nil, models.StatusNoGrades
	}
	avg := RoundHalfUp(total)
	return &avg, c.status(avg)
}

// ApprovalThreshold exposes the configured pass cut-off.
func (c *GradeCalculator) ApprovalThreshold() float64 {
	return c.threshold
}

func (c *GradeCalculator) status(avg float64) models.RecordStatus {
	if avg >= c.threshold {
		return models.StatusApproved
	}
	return models.StatusDisapproved
}

func categoryAverage(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
