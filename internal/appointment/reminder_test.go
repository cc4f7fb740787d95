package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthsync/appointment-scheduling/internal/availability"
	"github.com/healthsync/appointment-scheduling/internal/directory"
	"github.com/healthsync/appointment-scheduling/internal/notification"
)

func TestReminderRun_DispatchesScheduledOnly(t *testing.T) {
	target := day(1)
	scheduled := Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Date: target, Session: availability.SessionMorning, Status: StatusScheduled}
	cancelled := Appointment{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Date: target, Session: availability.SessionAfternoon, Status: StatusCancelled}

	repo := &mockRepo{
		listByDateFunc: func(ctx context.Context, date time.Time) ([]Appointment, error) {
			assert.Equal(t, target, date)
			return []Appointment{scheduled, cancelled}, nil
		},
	}
	notifier := &mockNotifier{}

	d := NewReminderDispatcher(repo, &mockDirectory{}, notifier, time.Second, zerolog.Nop())

	sent, err := d.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, notifier.sent, 1)
	req := notifier.sent[0]
	assert.Equal(t, notification.KindReminder, req.Kind)
	assert.Equal(t, scheduled.ID, req.AppointmentID)
	assert.Equal(t, "Ana Flores", req.PatientName)
	assert.Equal(t, "Dr. Reyes", req.DoctorName)
}

func TestReminderRun_DirectoryFailureStillDispatches(t *testing.T) {
	repo := &mockRepo{
		listByDateFunc: func(ctx context.Context, date time.Time) ([]Appointment, error) {
			return []Appointment{
				{ID: uuid.New(), PatientID: uuid.New(), DoctorID: uuid.New(), Date: date, Session: availability.SessionMorning, Status: StatusScheduled},
			}, nil
		},
	}
	dir := &mockDirectory{
		getDoctorFunc: func(ctx context.Context, id uuid.UUID) (*directory.Doctor, error) {
			return nil, directory.ErrDoctorNotFound
		},
	}
	notifier := &mockNotifier{}

	d := NewReminderDispatcher(repo, dir, notifier, time.Second, zerolog.Nop())

	sent, err := d.Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, notifier.sent, 1)
	assert.Empty(t, notifier.sent[0].DoctorName)
	assert.Equal(t, "Ana Flores", notifier.sent[0].PatientName)
}

func TestReminderRun_DispatchFailureDoesNotCount(t *testing.T) {
	failID := uuid.New()
	okID := uuid.New()

	repo := &mockRepo{
		listByDateFunc: func(ctx context.Context, date time.Time) ([]Appointment, error) {
			return []Appointment{
				{ID: failID, PatientID: uuid.New(), DoctorID: uuid.New(), Date: date, Session: availability.SessionMorning, Status: StatusScheduled},
				{ID: okID, PatientID: uuid.New(), DoctorID: uuid.New(), Date: date, Session: availability.SessionAfternoon, Status: StatusScheduled},
			}, nil
		},
	}
	notifier := &mockNotifier{
		notifyFunc: func(ctx context.Context, req notification.Request) error {
			if req.AppointmentID == failID {
				return errors.New("broker unreachable")
			}
			return nil
		},
	}

	d := NewReminderDispatcher(repo, &mockDirectory{}, notifier, time.Second, zerolog.Nop())

	sent, err := d.Run(context.Background(), day(1))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestReminderRun_ListFailureAborts(t *testing.T) {
	listErr := errors.New("db down")
	repo := &mockRepo{
		listByDateFunc: func(ctx context.Context, date time.Time) ([]Appointment, error) {
			return nil, listErr
		},
	}

	d := NewReminderDispatcher(repo, &mockDirectory{}, &mockNotifier{}, time.Second, zerolog.Nop())

	_, err := d.Run(context.Background(), day(1))
	require.ErrorIs(t, err, listErr)
}
