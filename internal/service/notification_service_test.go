package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sga-platform/sga-notas-api/internal/models"
	"github.com/sga-platform/sga-notas-api/pkg/jobs"
	"github.com/sga-platform/sga-notas-api/pkg/notify"
)

type fakeDirectory struct {
	contact *models.StudentContact
	course  string
}

func (f *fakeDirectory) StudentContact(ctx context.Context, studentID string) (*models.StudentContact, error) {
	if f.contact == nil {
		return nil, errors.New("student not found")
	}
	return f.contact, nil
}

func (f *fakeDirectory) CourseName(ctx context.Context, courseID string) (string, error) {
	return f.course, nil
}

type fakeDescriptions struct {
	description *string
}

func (f *fakeDescriptions) Describe(ctx context.Context, courseID string, slot models.Slot) (*string, error) {
	return f.description, nil
}

type fakeDispatcher struct {
	err  error
	sent chan notify.Message
}

func newFakeDispatcher(err error) *fakeDispatcher {
	return &fakeDispatcher{err: err, sent: make(chan notify.Message, 8)}
}

func (f *fakeDispatcher) Send(ctx context.Context, msg notify.Message) error {
	f.sent <- msg
	return f.err
}

func startedNotificationService(t *testing.T, directory *fakeDirectory, descriptions *fakeDescriptions, dispatcher *fakeDispatcher) *NotificationService {
	t.Helper()
	svc := NewNotificationService(directory, directory, descriptions, dispatcher, nil, jobs.QueueConfig{Workers: 1}, nil)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func awaitMessage(t *testing.T, dispatcher *fakeDispatcher) notify.Message {
	t.Helper()
	select {
	case msg := <-dispatcher.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no notification dispatched")
		return notify.Message{}
	}
}

func multiSlotResult() *ReconcileResult {
	record := &models.EvaluationRecord{
		ID:             "rec-1",
		StudentID:      "s1",
		CourseID:       "c1",
		EvaluationType: models.EvaluationTypeEvaluation,
		EvaluationDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	record.SetValue(models.SlotEvaluation3, 14)
	record.SetValue(models.SlotPractice1, 17)
	return &ReconcileResult{
		Record: record,
		Diff: models.RecordDiff{
			RecordID:  "rec-1",
			StudentID: "s1",
			CourseID:  "c1",
			Changes: []models.SlotChange{
				{Slot: models.SlotEvaluation3, Old: nil, New: fptr(14)},
				{Slot: models.SlotPractice1, Old: fptr(15), New: fptr(17)},
			},
		},
		Changed: true,
	}
}

func TestSelectNotificationFirstChangedSlot(t *testing.T) {
	change := SelectNotification(multiSlotResult().Diff)
	require.NotNil(t, change)
	assert.Equal(t, models.SlotEvaluation3, change.Slot)
}

func TestSelectNotificationEmptyDiff(t *testing.T) {
	assert.Nil(t, SelectNotification(models.RecordDiff{}))
}

func TestNotifyDeliversFirstChangedSlotOnly(t *testing.T) {
	directory := &fakeDirectory{
		contact: &models.StudentContact{StudentID: "s1", FullName: "Ana Quispe", Email: "ana@example.edu"},
		course:  "Mathematics II",
	}
	description := "Unit 3 quiz"
	dispatcher := newFakeDispatcher(nil)
	svc := startedNotificationService(t, directory, &fakeDescriptions{description: &description}, dispatcher)

	svc.Notify(multiSlotResult())

	msg := awaitMessage(t, dispatcher)
	assert.Equal(t, "ana@example.edu", msg.RecipientEmail)
	assert.Equal(t, "Ana Quispe", msg.RecipientName)
	assert.Equal(t, "Mathematics II", msg.CourseName)
	assert.Equal(t, "Evaluation 3", msg.SlotLabel)
	assert.Equal(t, 14.0, msg.Value)
	require.NotNil(t, msg.Description)
	assert.Equal(t, "Unit 3 quiz", *msg.Description)

	select {
	case extra := <-dispatcher.sent:
		t.Fatalf("unexpected second notification for %s", extra.SlotLabel)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifySkipsEmptyDiff(t *testing.T) {
	dispatcher := newFakeDispatcher(nil)
	svc := startedNotificationService(t, &fakeDirectory{}, &fakeDescriptions{}, dispatcher)

	svc.Notify(&ReconcileResult{
		Record: &models.EvaluationRecord{StudentID: "s1", CourseID: "c1"},
		Diff:   models.RecordDiff{RecordID: "rec-1"},
	})
	svc.Notify(nil)

	select {
	case <-dispatcher.sent:
		t.Fatal("notification dispatched for empty diff")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyDispatchFailureDoesNotPropagate(t *testing.T) {
	directory := &fakeDirectory{
		contact: &models.StudentContact{StudentID: "s1", FullName: "Ana Quispe", Email: "ana@example.edu"},
		course:  "Mathematics II",
	}
	dispatcher := newFakeDispatcher(errors.New("smtp down"))
	svc := startedNotificationService(t, directory, &fakeDescriptions{}, dispatcher)

	// Notify has no error return; failure is absorbed by the queue
	svc.Notify(multiSlotResult())
	awaitMessage(t, dispatcher)
}

func TestNotifySkipsStudentWithoutEmail(t *testing.T) {
	directory := &fakeDirectory{
		contact: &models.StudentContact{StudentID: "s1", FullName: "Ana Quispe"},
		course:  "Mathematics II",
	}
	dispatcher := newFakeDispatcher(nil)
	svc := startedNotificationService(t, directory, &fakeDescriptions{}, dispatcher)

	svc.Notify(multiSlotResult())

	select {
	case <-dispatcher.sent:
		t.Fatal("notification dispatched without recipient email")
	case <-time.After(100 * time.Millisecond):
	}
}
