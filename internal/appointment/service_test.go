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
	redisclient "github.com/healthsync/appointment-scheduling/internal/redis"
)

// Mock repository for testing
type mockRepo struct {
	getByIDFunc                   func(ctx context.Context, id uuid.UUID) (*Appointment, error)
	createFunc                    func(ctx context.Context, a Appointment) (*Appointment, error)
	deleteFunc                    func(ctx context.Context, id uuid.UUID) error
	existsScheduledFunc           func(ctx context.Context, patientID uuid.UUID, date time.Time, session availability.Session, excludeID *uuid.UUID) (bool, error)
	updateScheduleFunc            func(ctx context.Context, id, doctorID, slotID uuid.UUID, date time.Time, session availability.Session) (*Appointment, error)
	updateStatusFunc              func(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	listByPatientFunc             func(ctx context.Context, patientID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error)
	listByDoctorFunc              func(ctx context.Context, doctorID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error)
	listByDateFunc                func(ctx context.Context, date time.Time) ([]Appointment, error)
	listInRangeFunc               func(ctx context.Context, start, end time.Time) ([]Appointment, error)
	listScheduledWithFreeSlotFunc func(ctx context.Context) ([]Appointment, error)
	listOrphanedBookedSlotsFunc   func(ctx context.Context) ([]uuid.UUID, error)
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockRepo) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, a)
	}
	a.ID = uuid.New()
	a.Status = StatusScheduled
	return &a, nil
}

func (m *mockRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockRepo) ExistsScheduled(ctx context.Context, patientID uuid.UUID, date time.Time, session availability.Session, excludeID *uuid.UUID) (bool, error) {
	if m.existsScheduledFunc != nil {
		return m.existsScheduledFunc(ctx, patientID, date, session, excludeID)
	}
	return false, nil
}

func (m *mockRepo) UpdateSchedule(ctx context.Context, id, doctorID, slotID uuid.UUID, date time.Time, session availability.Session) (*Appointment, error) {
	if m.updateScheduleFunc != nil {
		return m.updateScheduleFunc(ctx, id, doctorID, slotID, date, session)
	}
	return &Appointment{ID: id, DoctorID: doctorID, SlotID: slotID, Date: date, Session: session, Status: StatusScheduled}, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to)
	}
	return &Appointment{ID: id, Status: to}, nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error) {
	if m.listByPatientFunc != nil {
		return m.listByPatientFunc(ctx, patientID, from, status, current)
	}
	return nil, nil
}

func (m *mockRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error) {
	if m.listByDoctorFunc != nil {
		return m.listByDoctorFunc(ctx, doctorID, from, status, current)
	}
	return nil, nil
}

func (m *mockRepo) ListByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	if m.listByDateFunc != nil {
		return m.listByDateFunc(ctx, date)
	}
	return nil, nil
}

func (m *mockRepo) ListInRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	if m.listInRangeFunc != nil {
		return m.listInRangeFunc(ctx, start, end)
	}
	return nil, nil
}

func (m *mockRepo) ListScheduledWithFreeSlot(ctx context.Context) ([]Appointment, error) {
	if m.listScheduledWithFreeSlotFunc != nil {
		return m.listScheduledWithFreeSlotFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepo) ListOrphanedBookedSlots(ctx context.Context) ([]uuid.UUID, error) {
	if m.listOrphanedBookedSlotsFunc != nil {
		return m.listOrphanedBookedSlotsFunc(ctx)
	}
	return nil, nil
}

type mockSlots struct {
	findFreeSlotFunc func(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error)
	reserveFunc      func(ctx context.Context, slotID uuid.UUID) error
	releaseFunc      func(ctx context.Context, slotID uuid.UUID) error
}

func (m *mockSlots) FindFreeSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error) {
	if m.findFreeSlotFunc != nil {
		return m.findFreeSlotFunc(ctx, doctorID, date, session)
	}
	return &availability.Slot{ID: uuid.New(), DoctorID: doctorID, Date: date, Session: session, Status: availability.SlotFree}, nil
}

func (m *mockSlots) Reserve(ctx context.Context, slotID uuid.UUID) error {
	if m.reserveFunc != nil {
		return m.reserveFunc(ctx, slotID)
	}
	return nil
}

func (m *mockSlots) Release(ctx context.Context, slotID uuid.UUID) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, slotID)
	}
	return nil
}

type mockDirectory struct {
	getDoctorFunc func(ctx context.Context, id uuid.UUID) (*directory.Doctor, error)
}

func (m *mockDirectory) GetDoctor(ctx context.Context, id uuid.UUID) (*directory.Doctor, error) {
	if m.getDoctorFunc != nil {
		return m.getDoctorFunc(ctx, id)
	}
	return &directory.Doctor{ID: id, Name: "Dr. Reyes", SpecializationID: uuid.New()}, nil
}

func (m *mockDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*directory.Patient, error) {
	return &directory.Patient{ID: id, Name: "Ana Flores"}, nil
}

func (m *mockDirectory) GetSpecialization(ctx context.Context, id uuid.UUID) (*directory.Specialization, error) {
	return &directory.Specialization{ID: id, Name: "Cardiology"}, nil
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, req notification.Request) error
	sent       []notification.Request
}

func (m *mockNotifier) Notify(ctx context.Context, req notification.Request) error {
	m.sent = append(m.sent, req)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, req)
	}
	return nil
}

// passLocker just runs the critical section.
type passLocker struct {
	keys []string
}

func (l *passLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, slotKey)
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func newTestService(repo Repository, slots Slots, notifier notification.Notifier, locker redisclient.Locker) *Service {
	svc := NewService(repo, slots, &mockDirectory{}, notifier, locker, time.Second, zerolog.Nop())
	svc.now = func() time.Time {
		return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func day(offset int) time.Time {
	return time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestBook_Success(t *testing.T) {
	slotID := uuid.New()
	patientID := uuid.New()
	doctorID := uuid.New()

	var calls []string

	repo := &mockRepo{
		createFunc: func(ctx context.Context, a Appointment) (*Appointment, error) {
			calls = append(calls, "create")
			a.ID = uuid.New()
			a.Status = StatusScheduled
			return &a, nil
		},
	}
	slots := &mockSlots{
		findFreeSlotFunc: func(ctx context.Context, dID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error) {
			return &availability.Slot{ID: slotID, DoctorID: dID, Date: date, Session: session, Status: availability.SlotFree}, nil
		},
		reserveFunc: func(ctx context.Context, id uuid.UUID) error {
			calls = append(calls, "reserve")
			assert.Equal(t, slotID, id)
			return nil
		},
	}
	notifier := &mockNotifier{}
	locker := &passLocker{}

	svc := newTestService(repo, slots, notifier, locker)

	detail, err := svc.Book(context.Background(), patientID, doctorID, day(1), availability.SessionMorning)
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, StatusScheduled, detail.Status)
	assert.Equal(t, slotID, detail.SlotID)
	assert.Equal(t, "Dr. Reyes", detail.DoctorName)
	assert.Equal(t, "Ana Flores", detail.PatientName)

	// The appointment row goes in before the slot is taken.
	assert.Equal(t, []string{"create", "reserve"}, calls)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notification.KindBooked, notifier.sent[0].Kind)

	require.Len(t, locker.keys, 1)
	assert.Contains(t, locker.keys[0], doctorID.String())
	assert.Contains(t, locker.keys[0], "morning")
}

func TestBook_DuplicateScheduled(t *testing.T) {
	repo := &mockRepo{
		existsScheduledFunc: func(ctx context.Context, patientID uuid.UUID, date time.Time, session availability.Session, excludeID *uuid.UUID) (bool, error) {
			assert.Nil(t, excludeID)
			return true, nil
		},
	}
	findCalled := false
	slots := &mockSlots{
		findFreeSlotFunc: func(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error) {
			findCalled = true
			return nil, nil
		},
	}

	svc := newTestService(repo, slots, &mockNotifier{}, &passLocker{})

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), day(1), availability.SessionAfternoon)
	require.ErrorIs(t, err, ErrDuplicateScheduled)
	assert.False(t, findCalled, "duplicate guard must short-circuit before slot lookup")
}

func TestBook_NoSlotsForDate(t *testing.T) {
	slots := &mockSlots{
		findFreeSlotFunc: func(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error) {
			return nil, availability.ErrNoSlotsForDate
		},
	}

	svc := newTestService(&mockRepo{}, slots, &mockNotifier{}, &passLocker{})

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), day(120), availability.SessionMorning)
	require.ErrorIs(t, err, availability.ErrNoSlotsForDate)
}

func TestBook_DoctorNotAvailable(t *testing.T) {
	slots := &mockSlots{
		findFreeSlotFunc: func(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error) {
			return nil, availability.ErrDoctorNotAvailable
		},
	}

	svc := newTestService(&mockRepo{}, slots, &mockNotifier{}, &passLocker{})

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), day(1), availability.SessionMorning)
	require.ErrorIs(t, err, availability.ErrDoctorNotAvailable)
}

func TestBook_LockBusy(t *testing.T) {
	notifier := &mockNotifier{}
	svc := newTestService(&mockRepo{}, &mockSlots{}, notifier, busyLocker{})

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), day(1), availability.SessionMorning)
	require.ErrorIs(t, err, ErrSlotBeingBooked)
	assert.Empty(t, notifier.sent)
}

func TestBook_ReserveLostRace_UndoesAppointment(t *testing.T) {
	apptID := uuid.New()
	deleted := false

	repo := &mockRepo{
		createFunc: func(ctx context.Context, a Appointment) (*Appointment, error) {
			a.ID = apptID
			a.Status = StatusScheduled
			return &a, nil
		},
		deleteFunc: func(ctx context.Context, id uuid.UUID) error {
			deleted = true
			assert.Equal(t, apptID, id)
			return nil
		},
	}
	slots := &mockSlots{
		reserveFunc: func(ctx context.Context, slotID uuid.UUID) error {
			return availability.ErrSlotNotAvailable
		},
	}
	notifier := &mockNotifier{}

	svc := newTestService(repo, slots, notifier, &passLocker{})

	_, err := svc.Book(context.Background(), uuid.New(), uuid.New(), day(1), availability.SessionMorning)
	require.ErrorIs(t, err, availability.ErrDoctorNotAvailable)
	assert.True(t, deleted, "appointment must be undone when the slot was lost")
	assert.Empty(t, notifier.sent)
}

func TestBook_NotificationFailureDoesNotFailBooking(t *testing.T) {
	notifier := &mockNotifier{
		notifyFunc: func(ctx context.Context, req notification.Request) error {
			return errors.New("broker unreachable")
		},
	}

	svc := newTestService(&mockRepo{}, &mockSlots{}, notifier, &passLocker{})

	detail, err := svc.Book(context.Background(), uuid.New(), uuid.New(), day(1), availability.SessionMorning)
	require.NoError(t, err)
	require.NotNil(t, detail)
}

func TestReschedule_Success_ReleasesOldAfterNewReserved(t *testing.T) {
	apptID := uuid.New()
	patientID := uuid.New()
	oldSlotID := uuid.New()
	newSlotID := uuid.New()
	newDoctorID := uuid.New()

	var calls []string

	repo := &mockRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
			return &Appointment{
				ID:        apptID,
				PatientID: patientID,
				DoctorID:  uuid.New(),
				SlotID:    oldSlotID,
				Date:      day(2),
				Session:   availability.SessionMorning,
				Status:    StatusScheduled,
			}, nil
		},
		existsScheduledFunc: func(ctx context.Context, pID uuid.UUID, date time.Time, session availability.Session, excludeID *uuid.UUID) (bool, error) {
			require.NotNil(t, excludeID, "reschedule must exclude the appointment itself from the duplicate guard")
			assert.Equal(t, apptID, *excludeID)
			return false, nil
		},
		updateScheduleFunc: func(ctx context.Context, id, doctorID, slotID uuid.UUID, date time.Time, session availability.Session) (*Appointment, error) {
			calls = append(calls, "update")
			assert.Equal(t, newSlotID, slotID)
			return &Appointment{ID: id, PatientID: patientID, DoctorID: doctorID, SlotID: slotID, Date: date, Session: session, Status: StatusScheduled}, nil
		},
	}
	slots := &mockSlots{
		findFreeSlotFunc: func(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error) {
			return &availability.Slot{ID: newSlotID, DoctorID: doctorID, Date: date, Session: session, Status: availability.SlotFree}, nil
		},
		reserveFunc: func(ctx context.Context, slotID uuid.UUID) error {
			calls = append(calls, "reserve:"+slotID.String())
			return nil
		},
		releaseFunc: func(ctx context.Context, slotID uuid.UUID) error {
			calls = append(calls, "release:"+slotID.String())
			return nil
		},
	}
	notifier := &mockNotifier{}

	svc := newTestService(repo, slots, notifier, &passLocker{})

	detail, err := svc.Reschedule(context.Background(), apptID, newDoctorID, day(5), availability.SessionAfternoon)
	require.NoError(t, err)
	assert.Equal(t, newSlotID, detail.SlotID)

	assert.Equal(t, []string{
		"reserve:" + newSlotID.String(),
		"update",
		"release:" + oldSlotID.String(),
	}, calls)

	require.Len(t, notifier.sent, 1)
	req := notifier.sent[0]
	assert.Equal(t, notification.KindRescheduled, req.Kind)
	require.NotNil(t, req.OldDate)
	assert.Equal(t, day(2), *req.OldDate)
	assert.Equal(t, "morning", req.OldSession)
}

func TestReschedule_NotScheduled(t *testing.T) {
	repo := &mockRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
			return &Appointment{ID: id, Status: StatusCancelled}, nil
		},
	}

	svc := newTestService(repo, &mockSlots{}, &mockNotifier{}, &passLocker{})

	_, err := svc.Reschedule(context.Background(), uuid.New(), uuid.New(), day(3), availability.SessionMorning)
	require.ErrorIs(t, err, ErrNotScheduled)
}

func TestReschedule_UpdateFails_ReleasesNewSlotOnly(t *testing.T) {
	oldSlotID := uuid.New()
	newSlotID := uuid.New()

	var released []uuid.UUID

	repo := &mockRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
			return &Appointment{ID: id, PatientID: uuid.New(), SlotID: oldSlotID, Date: day(2), Session: availability.SessionMorning, Status: StatusScheduled}, nil
		},
		updateScheduleFunc: func(ctx context.Context, id, doctorID, slotID uuid.UUID, date time.Time, session availability.Session) (*Appointment, error) {
			return nil, ErrNotScheduled
		},
	}
	slots := &mockSlots{
		findFreeSlotFunc: func(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error) {
			return &availability.Slot{ID: newSlotID}, nil
		},
		releaseFunc: func(ctx context.Context, slotID uuid.UUID) error {
			released = append(released, slotID)
			return nil
		},
	}
	notifier := &mockNotifier{}

	svc := newTestService(repo, slots, notifier, &passLocker{})

	_, err := svc.Reschedule(context.Background(), uuid.New(), uuid.New(), day(5), availability.SessionAfternoon)
	require.ErrorIs(t, err, ErrNotScheduled)

	// Only the new slot is handed back; the appointment still owns the old one.
	assert.Equal(t, []uuid.UUID{newSlotID}, released)
	assert.Empty(t, notifier.sent)
}

func TestCancel_Success(t *testing.T) {
	apptID := uuid.New()
	slotID := uuid.New()
	released := false

	repo := &mockRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
			return &Appointment{ID: apptID, PatientID: uuid.New(), DoctorID: uuid.New(), SlotID: slotID, Date: day(0), Session: availability.SessionMorning, Status: StatusScheduled}, nil
		},
		updateStatusFunc: func(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
			assert.Equal(t, StatusScheduled, from)
			assert.Equal(t, StatusCancelled, to)
			return &Appointment{ID: id, Status: to, Date: day(0)}, nil
		},
	}
	slots := &mockSlots{
		releaseFunc: func(ctx context.Context, id uuid.UUID) error {
			released = true
			assert.Equal(t, slotID, id)
			return nil
		},
	}
	notifier := &mockNotifier{}

	svc := newTestService(repo, slots, notifier, &passLocker{})

	detail, err := svc.Cancel(context.Background(), apptID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, detail.Status)
	assert.True(t, released)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notification.KindCancelled, notifier.sent[0].Kind)
}

func TestCancel_PastDate(t *testing.T) {
	repo := &mockRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
			return &Appointment{ID: id, Date: day(-1), Status: StatusScheduled}, nil
		},
	}

	svc := newTestService(repo, &mockSlots{}, &mockNotifier{}, &passLocker{})

	_, err := svc.Cancel(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrPastDateCancel)
}

func TestCancel_NotScheduled(t *testing.T) {
	for _, status := range []Status{StatusCancelled, StatusCompleted} {
		repo := &mockRepo{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
				return &Appointment{ID: id, Date: day(1), Status: status}, nil
			},
		}

		svc := newTestService(repo, &mockSlots{}, &mockNotifier{}, &passLocker{})

		_, err := svc.Cancel(context.Background(), uuid.New())
		require.ErrorIs(t, err, ErrNotCancellable, "status %s", status)
	}
}

func TestComplete_SameDayOnly(t *testing.T) {
	tests := []struct {
		name    string
		date    time.Time
		wantErr error
	}{
		{"today", day(0), nil},
		{"tomorrow", day(1), ErrNotToday},
		{"yesterday", day(-1), ErrNotToday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepo{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
					return &Appointment{ID: id, PatientID: uuid.New(), DoctorID: uuid.New(), SlotID: uuid.New(), Date: tt.date, Status: StatusScheduled}, nil
				},
			}
			notifier := &mockNotifier{}

			svc := newTestService(repo, &mockSlots{}, notifier, &passLocker{})

			detail, err := svc.Complete(context.Background(), uuid.New())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusCompleted, detail.Status)
			// Completion is not announced to the patient.
			assert.Empty(t, notifier.sent)
		})
	}
}

func TestComplete_NotScheduled(t *testing.T) {
	repo := &mockRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
			return &Appointment{ID: id, Date: day(0), Status: StatusCompleted}, nil
		},
	}

	svc := newTestService(repo, &mockSlots{}, &mockNotifier{}, &passLocker{})

	_, err := svc.Complete(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotCompletable)
}

func TestGetAppointment_DirectoryFailureFailsRead(t *testing.T) {
	repo := &mockRepo{
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*Appointment, error) {
			return &Appointment{ID: id, PatientID: uuid.New(), DoctorID: uuid.New(), Status: StatusScheduled}, nil
		},
	}
	dir := &mockDirectory{
		getDoctorFunc: func(ctx context.Context, id uuid.UUID) (*directory.Doctor, error) {
			return nil, directory.ErrDoctorNotFound
		},
	}

	svc := NewService(repo, &mockSlots{}, dir, &mockNotifier{}, &passLocker{}, time.Second, zerolog.Nop())

	_, err := svc.GetAppointment(context.Background(), uuid.New())
	require.ErrorIs(t, err, directory.ErrDoctorNotFound)
}

func TestAppointmentsByDate_EmptyIsNotFound(t *testing.T) {
	svc := newTestService(&mockRepo{}, &mockSlots{}, &mockNotifier{}, &passLocker{})

	_, err := svc.AppointmentsByDate(context.Background(), day(3))
	require.ErrorIs(t, err, ErrAppointmentNotFound)
}
