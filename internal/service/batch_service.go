package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/sga-platform/sga-notas-api/pkg/errors"
)

// BatchRequest is a bulk submission for one course. Items are independent
// work units; there is no cross-item transaction.
type BatchRequest struct {
	CourseID string            `json:"course_id" validate:"required"`
	Items    []GradeSubmission `json:"items" validate:"required,min=1"`
}

// BatchError reports one failed item by its position in the request.
type BatchError struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// BatchResult summarizes a bulk run. Created plus Updated plus the error
// count equals the item count.
type BatchResult struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Errors  []BatchError `json:"errors"`
}

// BatchService runs bulk grade submissions item by item. One rejected item
// never blocks the rest; each accepted item gets the same reconcile, audit
// and notify treatment as a single submission.
type BatchService struct {
	reconciler    *ReconcileService
	audit         *AuditService
	notifications *NotificationService
	logger        *zap.Logger
}

// NewBatchService constructs the coordinator. Notifications may be nil.
func NewBatchService(reconciler *ReconcileService, audit *AuditService, notifications *NotificationService, logger *zap.Logger) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{
		reconciler:    reconciler,
		audit:         audit,
		notifications: notifications,
		logger:        logger,
	}
}

// Apply processes every item and returns per-item outcomes. The returned
// error is non-nil only for malformed requests, never for item failures.
func (s *BatchService) Apply(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if req.CourseID == "" || len(req.Items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch requires a course and at least one item")
	}

	result := &BatchResult{}
	for i := range req.Items {
		item := req.Items[i]
		item.CourseID = req.CourseID

		outcome, err := s.Submit(ctx, item)
		if err != nil {
			result.Errors = append(result.Errors, BatchError{
				Index:     i,
				StudentID: item.StudentID,
				Reason:    appErrors.FromError(err).Message,
			})
			continue
		}
		if outcome.Created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.logger.Sugar().Infow("batch applied",
		"course_id", req.CourseID,
		"items", len(req.Items),
		"created", result.Created,
		"updated", result.Updated,
		"failed", len(result.Errors),
	)
	return result, nil
}

// Submit runs the full single-item pipeline: reconcile, audit, notify.
// Audit failures are returned; notification problems never are.
func (s *BatchService) Submit(ctx context.Context, sub GradeSubmission) (*ReconcileResult, error) {
	outcome, err := s.reconciler.Reconcile(ctx, sub)
	if err != nil {
		return nil, err
	}

	if _, err := s.audit.Record(ctx, outcome.Diff, sub.Actor, sub.Reason); err != nil {
		return nil, err
	}

	if s.notifications != nil {
		s.notifications.Notify(outcome)
	}
	return outcome, nil
}
