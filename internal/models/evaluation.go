package models

import "time"

// EvaluationType identifies one of the recognized grading categories and is
// part of the record key alongside student and course.
type EvaluationType string

const (
	// EvaluationTypeEvaluation covers the weekly evaluation slots.
	EvaluationTypeEvaluation EvaluationType = "EVALUATION"
	// EvaluationTypePractice covers the practice slots.
	EvaluationTypePractice EvaluationType = "PRACTICE"
	// EvaluationTypePartial covers the partial exam slots.
	EvaluationTypePartial EvaluationType = "PARTIAL"
)

// Valid reports whether t is a recognized category.
func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationTypeEvaluation, EvaluationTypePractice, EvaluationTypePartial:
		return true
	}
	return false
}

// RecordStatus is the derived pass/fail state of a record.
type RecordStatus string

const (
	StatusApproved    RecordStatus = "APPROVED"
	StatusDisapproved RecordStatus = "DISAPPROVED"
	StatusNoGrades    RecordStatus = "NO_GRADES"
)

// Slot names one of the 14 numeric grade fields on a record.
type Slot string

const (
	SlotEvaluation1 Slot = "evaluation1"
	SlotEvaluation2 Slot = "evaluation2"
	SlotEvaluation3 Slot = "evaluation3"
	SlotEvaluation4 Slot = "evaluation4"
	SlotEvaluation5 Slot = "evaluation5"
	SlotEvaluation6 Slot = "evaluation6"
	SlotEvaluation7 Slot = "evaluation7"
	SlotEvaluation8 Slot = "evaluation8"
	SlotPractice1   Slot = "practice1"
	SlotPractice2   Slot = "practice2"
	SlotPractice3   Slot = "practice3"
	SlotPractice4   Slot = "practice4"
	SlotPartial1    Slot = "partial1"
	SlotPartial2    Slot = "partial2"
)

// SlotOrder is the canonical slot ordering. Diffing and notification
// selection both iterate slots in this order.
var SlotOrder = []Slot{
	SlotEvaluation1, SlotEvaluation2, SlotEvaluation3, SlotEvaluation4,
	SlotEvaluation5, SlotEvaluation6, SlotEvaluation7, SlotEvaluation8,
	SlotPractice1, SlotPractice2, SlotPractice3, SlotPractice4,
	SlotPartial1, SlotPartial2,
}

// ParseSlot returns the slot matching the given name.
func ParseSlot(name string) (Slot, bool) {
	for _, s := range SlotOrder {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// Category returns the grading category a slot belongs to.
func (s Slot) Category() EvaluationType {
	switch s {
	case SlotPractice1, SlotPractice2, SlotPractice3, SlotPractice4:
		return EvaluationTypePractice
	case SlotPartial1, SlotPartial2:
		return EvaluationTypePartial
	default:
		return EvaluationTypeEvaluation
	}
}

// Label returns the human-readable slot name used in notifications.
func (s Slot) Label() string {
	switch s {
	case SlotEvaluation1:
		return "Evaluation 1"
	case SlotEvaluation2:
		return "Evaluation 2"
	case SlotEvaluation3:
		return "Evaluation 3"
	case SlotEvaluation4:
		return "Evaluation 4"
	case SlotEvaluation5:
		return "Evaluation 5"
	case SlotEvaluation6:
		return "Evaluation 6"
	case SlotEvaluation7:
		return "Evaluation 7"
	case SlotEvaluation8:
		return "Evaluation 8"
	case SlotPractice1:
		return "Practice 1"
	case SlotPractice2:
		return "Practice 2"
	case SlotPractice3:
		return "Practice 3"
	case SlotPractice4:
		return "Practice 4"
	case SlotPartial1:
		return "Partial Exam 1"
	case SlotPartial2:
		return "Partial Exam 2"
	default:
		return string(s)
	}
}

// SlotValues holds the 14 optional grade fields. A nil pointer means the
// slot has not been graded yet, which is distinct from a stored zero. The
// same shape doubles as a partial update payload, where nil means "leave
// unchanged".
type SlotValues struct {
	Evaluation1 *float64 `db:"evaluation1" json:"evaluation1,omitempty"`
	Evaluation2 *float64 `db:"evaluation2" json:"evaluation2,omitempty"`
	Evaluation3 *float64 `db:"evaluation3" json:"evaluation3,omitempty"`
	Evaluation4 *float64 `db:"evaluation4" json:"evaluation4,omitempty"`
	Evaluation5 *float64 `db:"evaluation5" json:"evaluation5,omitempty"`
	Evaluation6 *float64 `db:"evaluation6" json:"evaluation6,omitempty"`
	Evaluation7 *float64 `db:"evaluation7" json:"evaluation7,omitempty"`
	Evaluation8 *float64 `db:"evaluation8" json:"evaluation8,omitempty"`
	Practice1   *float64 `db:"practice1" json:"practice1,omitempty"`
	Practice2   *float64 `db:"practice2" json:"practice2,omitempty"`
	Practice3   *float64 `db:"practice3" json:"practice3,omitempty"`
	Practice4   *float64 `db:"practice4" json:"practice4,omitempty"`
	Partial1    *float64 `db:"partial1" json:"partial1,omitempty"`
	Partial2    *float64 `db:"partial2" json:"partial2,omitempty"`
}

func (v *SlotValues) slot(s Slot) **float64 {
	switch s {
	case SlotEvaluation1:
		return &v.Evaluation1
	case SlotEvaluation2:
		return &v.Evaluation2
	case SlotEvaluation3:
		return &v.Evaluation3
	case SlotEvaluation4:
		return &v.Evaluation4
	case SlotEvaluation5:
		return &v.Evaluation5
	case SlotEvaluation6:
		return &v.Evaluation6
	case SlotEvaluation7:
		return &v.Evaluation7
	case SlotEvaluation8:
		return &v.Evaluation8
	case SlotPractice1:
		return &v.Practice1
	case SlotPractice2:
		return &v.Practice2
	case SlotPractice3:
		return &v.Practice3
	case SlotPractice4:
		return &v.Practice4
	case SlotPartial1:
		return &v.Partial1
	case SlotPartial2:
		return &v.Partial2
	default:
		return nil
	}
}

// Value returns the stored value for the slot, or nil when ungraded.
func (v *SlotValues) Value(s Slot) *float64 {
	p := v.slot(s)
	if p == nil {
		return nil
	}
	return *p
}

// SetValue stores a value into the named slot.
func (v *SlotValues) SetValue(s Slot, value float64) {
	p := v.slot(s)
	if p == nil {
		return
	}
	val := value
	*p = &val
}

// Snapshot copies every slot value into a map keyed by slot name. The
// returned map owns its own float values and is safe to keep as a
// pre-mutation image.
func (v *SlotValues) Snapshot() map[Slot]*float64 {
	snap := make(map[Slot]*float64, len(SlotOrder))
	for _, s := range SlotOrder {
		if val := v.Value(s); val != nil {
			copied := *val
			snap[s] = &copied
		} else {
			snap[s] = nil
		}
	}
	return snap
}

// CategoryValues returns the non-absent values belonging to one category,
// in canonical slot order.
func (v *SlotValues) CategoryValues(t EvaluationType) []float64 {
	var values []float64
	for _, s := range SlotOrder {
		if s.Category() != t {
			continue
		}
		if val := v.Value(s); val != nil {
			values = append(values, *val)
		}
	}
	return values
}

// EvaluationRecord is the single live grade record for a
// (student, course, evaluation type) key.
type EvaluationRecord struct {
	ID             string         `db:"id" json:"id"`
	StudentID      string         `db:"student_id" json:"student_id"`
	CourseID       string         `db:"course_id" json:"course_id"`
	EvaluationType EvaluationType `db:"evaluation_type" json:"evaluation_type"`
	SlotValues
	Weight         float64      `db:"weight" json:"weight"`
	EvaluationDate time.Time    `db:"evaluation_date" json:"evaluation_date"`
	Observations   *string      `db:"observations" json:"observations,omitempty"`
	FinalAverage   *float64     `db:"final_average" json:"final_average,omitempty"`
	Status         RecordStatus `db:"status" json:"status"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// SlotChange is one slot whose value differs between the pre- and
// post-mutation images. Old is nil when the slot was previously ungraded.
type SlotChange struct {
	Slot Slot     `json:"slot"`
	Old  *float64 `json:"old,omitempty"`
	New  *float64 `json:"new,omitempty"`
}

// RecordDiff is the set of slot changes produced by one reconciliation.
type RecordDiff struct {
	RecordID  string       `json:"record_id"`
	StudentID string       `json:"student_id"`
	CourseID  string       `json:"course_id"`
	Changes   []SlotChange `json:"changes"`
}

// Empty reports whether the reconciliation changed nothing.
func (d RecordDiff) Empty() bool {
	return len(d.Changes) == 0
}

// WeightConfiguration maps each category to its share of the final average.
type WeightConfiguration map[EvaluationType]float64

// DefaultWeights returns the term weighting: weekly evaluations count 10%,
// practices and partial exams 30% each.
func DefaultWeights() WeightConfiguration {
	return WeightConfiguration{
		EvaluationTypeEvaluation: 0.1,
		EvaluationTypePractice:   0.3,
		EvaluationTypePartial:    0.3,
	}
}

// CategoryCount compares recorded items against the expected count for one
// category.
type CategoryCount struct {
	Expected int  `json:"expected"`
	Recorded int  `json:"recorded"`
	Complete bool `json:"complete"`
}

// StructureReport summarises how complete a student's term structure is for
// a course. StructureComplete is true only when every category matches its
// expected count exactly.
type StructureReport struct {
	StudentID         string        `json:"student_id"`
	CourseID          string        `json:"course_id"`
	Evaluations       CategoryCount `json:"evaluations"`
	Practices         CategoryCount `json:"practices"`
	Partials          CategoryCount `json:"partials"`
	StructureComplete bool          `json:"structure_complete"`
}

// StructureExpectation holds the per-category item counts of a full term.
type StructureExpectation struct {
	Evaluations int
	Practices   int
	Partials    int
}

// DefaultStructureExpectation returns the full-term structure: 32 weekly
// evaluations, 4 practices and 2 partial exams.
func DefaultStructureExpectation() StructureExpectation {
	return StructureExpectation{Evaluations: 32, Practices: 4, Partials: 2}
}

// CourseStatistics aggregates stored final averages for one course.
type CourseStatistics struct {
	CourseID    string   `db:"course_id" json:"course_id"`
	Approved    int      `db:"approved" json:"approved"`
	Disapproved int      `db:"disapproved" json:"disapproved"`
	Min         *float64 `db:"min" json:"min,omitempty"`
	Max         *float64 `db:"max" json:"max,omitempty"`
	Average     *float64 `db:"average" json:"average,omitempty"`
}
