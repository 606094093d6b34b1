package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sga-platform/sga-notas-api/internal/models"
	"github.com/sga-platform/sga-notas-api/pkg/jobs"
	"github.com/sga-platform/sga-notas-api/pkg/notify"
)

type contactReader interface {
	StudentContact(ctx context.Context, studentID string) (*models.StudentContact, error)
}

type courseReader interface {
	CourseName(ctx context.Context, courseID string) (string, error)
}

type descriptionReader interface {
	Describe(ctx context.Context, courseID string, slot models.Slot) (*string, error)
}

// Dispatcher delivers one rendered notification.
type Dispatcher interface {
	Send(ctx context.Context, msg notify.Message) error
}

// SelectNotification picks the slot a mutation notifies about: the first
// changed slot in canonical order whose new value is present. A mutation
// touching several slots still produces a single notification; the
// remaining changes stay visible in the audit trail only.
func SelectNotification(diff models.RecordDiff) *models.SlotChange {
	for i := range diff.Changes {
		if diff.Changes[i].New != nil {
			change := diff.Changes[i]
			return &change
		}
	}
	return nil
}

type notificationJob struct {
	StudentID string
	CourseID  string
	Slot      models.Slot
	Value     float64
	Date      time.Time
}

// NotificationService turns accepted mutations into student emails. Work
// runs on a background queue; enqueue and delivery failures are logged and
// never surfaced to the mutation that triggered them.
type NotificationService struct {
	contacts     contactReader
	courses      courseReader
	descriptions descriptionReader
	dispatcher   Dispatcher
	metrics      *MetricsService
	queue        *jobs.Queue
	logger       *zap.Logger
}

// NewNotificationService constructs the service and its delivery queue.
func NewNotificationService(contacts contactReader, courses courseReader, descriptions descriptionReader, dispatcher Dispatcher, metrics *MetricsService, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s := &NotificationService{
		contacts:     contacts,
		courses:      courses,
		descriptions: descriptions,
		dispatcher:   dispatcher,
		metrics:      metrics,
		logger:       logger,
	}
	s.queue = jobs.NewQueue("grade-notifications", s.deliver, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues the notification for a mutation result, if any slot
// changed. It never returns an error; a full or stopped queue only logs.
func (s *NotificationService) Notify(result *ReconcileResult) {
	if result == nil || result.Diff.Empty() {
		return
	}
	change := SelectNotification(result.Diff)
	if change == nil {
		return
	}

	job := notificationJob{
		StudentID: result.Record.StudentID,
		CourseID:  result.Record.CourseID,
		Slot:      change.Slot,
		Value:     *change.New,
		Date:      result.Record.EvaluationDate,
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "grade-notification",
		Payload: job,
	})
	if err != nil {
		s.metrics.IncNotificationFailed()
		s.logger.Sugar().Warnw("failed to enqueue notification",
			"student_id", job.StudentID, "course_id", job.CourseID, "slot", job.Slot, "error", err)
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		s.logger.Sugar().Errorw("unexpected notification payload", "job_id", job.ID)
		return nil
	}

	contact, err := s.contacts.StudentContact(ctx, payload.StudentID)
	if err != nil {
		s.metrics.IncNotificationFailed()
		s.logger.Sugar().Warnw("failed to resolve student contact",
			"student_id", payload.StudentID, "error", err)
		return nil
	}
	if contact.Email == "" {
		s.logger.Sugar().Infow("student has no email, skipping notification",
			"student_id", payload.StudentID)
		return nil
	}

	courseName, err := s.courses.CourseName(ctx, payload.CourseID)
	if err != nil {
		courseName = payload.CourseID
		s.logger.Sugar().Warnw("failed to resolve course name",
			"course_id", payload.CourseID, "error", err)
	}

	var description *string
	if s.descriptions != nil {
		if description, err = s.descriptions.Describe(ctx, payload.CourseID, payload.Slot); err != nil {
			description = nil
			s.logger.Sugar().Warnw("failed to load evaluation description",
				"course_id", payload.CourseID, "slot", payload.Slot, "error", err)
		}
	}

	msg := notify.Message{
		RecipientEmail: contact.Email,
		RecipientName:  contact.FullName,
		CourseName:     courseName,
		SlotLabel:      payload.Slot.Label(),
		Value:          payload.Value,
		Date:           payload.Date,
		Description:    description,
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		// Returned so the queue can retry transient SMTP failures.
		s.metrics.IncNotificationFailed()
		s.logger.Sugar().Warnw("failed to deliver notification",
			"student_id", payload.StudentID, "course_id", payload.CourseID, "error", err)
		return err
	}

	s.metrics.IncNotificationSent()
	return nil
}
