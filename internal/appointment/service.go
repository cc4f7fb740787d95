package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthsync/appointment-scheduling/internal/availability"
	"github.com/healthsync/appointment-scheduling/internal/directory"
	"github.com/healthsync/appointment-scheduling/internal/notification"
	redisclient "github.com/healthsync/appointment-scheduling/internal/redis"
)

var (
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")

	ErrNotCancellable = errors.New("only scheduled appointments can be cancelled")
	ErrPastDateCancel = errors.New("appointments with past dates cannot be cancelled")
	ErrNotCompletable = errors.New("already cancelled or completed appointments cannot be marked completed")
	ErrNotToday       = errors.New("appointments can only be completed on the appointment date")
)

// Slots is the availability port the coordinator books against.
type Slots interface {
	FindFreeSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, session availability.Session) (*availability.Slot, error)
	Reserve(ctx context.Context, slotID uuid.UUID) error
	Release(ctx context.Context, slotID uuid.UUID) error
}

// Service orchestrates booking, rescheduling, cancellation, and completion.
// Slot mutations are sequenced strictly after the appointment row commits so
// a crash in between leaves the appointment as the source of truth; the
// reconcile sweep heals the slot side.
type Service struct {
	repo      Repository
	slots     Slots
	directory directory.Directory
	notifier  notification.Notifier
	locker    redisclient.Locker
	log       zerolog.Logger

	notifyTimeout time.Duration
	now           func() time.Time
}

func NewService(repo Repository, slots Slots, dir directory.Directory, notifier notification.Notifier, locker redisclient.Locker, notifyTimeout time.Duration, log zerolog.Logger) *Service {
	if notifyTimeout <= 0 {
		notifyTimeout = 3 * time.Second
	}
	return &Service{
		repo:          repo,
		slots:         slots,
		directory:     dir,
		notifier:      notifier,
		locker:        locker,
		log:           log.With().Str("component", "coordinator").Logger(),
		notifyTimeout: notifyTimeout,
		now:           time.Now,
	}
}

func slotKey(doctorID uuid.UUID, date time.Time, session availability.Session) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, availability.Date(date).Format("2006-01-02"), session)
}

// Book reserves a free slot of the doctor for the patient.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, session availability.Session) (*Detail, error) {
	date = availability.Date(date)

	// Duplicate-booking guard, checked first to fail fast. The partial unique
	// index re-checks it at insert time.
	dup, err := s.repo.ExistsScheduled(ctx, patientID, date, session, nil)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateScheduled
	}

	slot, err := s.slots.FindFreeSlot(ctx, doctorID, date, session)
	if err != nil {
		return nil, err
	}

	var booked *Appointment

	err = s.locker.WithSlotLock(ctx, slotKey(doctorID, date, session), func(lockCtx context.Context) error {
		appt, err := s.repo.Create(lockCtx, Appointment{
			PatientID: patientID,
			DoctorID:  doctorID,
			SlotID:    slot.ID,
			Date:      date,
			Session:   session,
		})
		if err != nil {
			return err
		}

		// Reserve only after the appointment row is durable. The conditional
		// update loses cleanly if another booking won the slot meanwhile.
		if err := s.slots.Reserve(lockCtx, slot.ID); err != nil {
			if errors.Is(err, availability.ErrSlotNotAvailable) {
				if delErr := s.repo.Delete(lockCtx, appt.ID); delErr != nil {
					s.log.Error().Err(delErr).
						Stringer("appointment_id", appt.ID).
						Msg("failed to undo appointment after losing slot")
				}
				return availability.ErrDoctorNotAvailable
			}
			s.log.Error().Err(err).
				Stringer("appointment_id", appt.ID).
				Stringer("slot_id", slot.ID).
				Msg("appointment committed but slot not reserved; reconcile sweep will re-reserve")
			return fmt.Errorf("reserve slot: %w", err)
		}

		booked = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Stringer("appointment_id", booked.ID).
		Stringer("patient_id", patientID).
		Stringer("doctor_id", doctorID).
		Time("date", date).
		Str("session", string(session)).
		Msg("appointment booked")

	detail := s.enrich(ctx, booked)
	s.notify(ctx, notification.KindBooked, detail, nil, "")
	return detail, nil
}

// Reschedule moves an appointment to a new (doctor, date, session). The old
// slot is released only once the new slot is secured, so a failed reschedule
// never frees a slot the appointment still points at. Unlike Book, the new
// slot is reserved before the row update: a crash in between leaves a booked
// slot no appointment references, which the reconcile sweep releases.
func (s *Service) Reschedule(ctx context.Context, appointmentID, doctorID uuid.UUID, newDate time.Time, newSession availability.Session) (*Detail, error) {
	newDate = availability.Date(newDate)

	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != StatusScheduled {
		return nil, ErrNotScheduled
	}

	dup, err := s.repo.ExistsScheduled(ctx, appt.PatientID, newDate, newSession, &appt.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateScheduled
	}

	newSlot, err := s.slots.FindFreeSlot(ctx, doctorID, newDate, newSession)
	if err != nil {
		return nil, err
	}

	oldDate, oldSession, oldSlotID := appt.Date, appt.Session, appt.SlotID

	var updated *Appointment

	err = s.locker.WithSlotLock(ctx, slotKey(doctorID, newDate, newSession), func(lockCtx context.Context) error {
		// Acquire the new slot first.
		if err := s.slots.Reserve(lockCtx, newSlot.ID); err != nil {
			if errors.Is(err, availability.ErrSlotNotAvailable) {
				return availability.ErrDoctorNotAvailable
			}
			return fmt.Errorf("reserve new slot: %w", err)
		}

		updated, err = s.repo.UpdateSchedule(lockCtx, appt.ID, doctorID, newSlot.ID, newDate, newSession)
		if err != nil {
			// Hand the new slot back; the appointment still owns the old one.
			if relErr := s.slots.Release(lockCtx, newSlot.ID); relErr != nil {
				s.log.Error().Err(relErr).
					Stringer("slot_id", newSlot.ID).
					Msg("failed to release slot after aborted reschedule; reconcile sweep will release")
			}
			return err
		}

		// Old slot is released only after the move committed.
		if err := s.slots.Release(lockCtx, oldSlotID); err != nil {
			s.log.Error().Err(err).
				Stringer("appointment_id", appt.ID).
				Stringer("slot_id", oldSlotID).
				Msg("reschedule committed but old slot not released; reconcile sweep will release")
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.log.Info().
		Stringer("appointment_id", appt.ID).
		Time("old_date", oldDate).
		Str("old_session", string(oldSession)).
		Time("new_date", newDate).
		Str("new_session", string(newSession)).
		Msg("appointment rescheduled")

	detail := s.enrich(ctx, updated)
	s.notify(ctx, notification.KindRescheduled, detail, &oldDate, oldSession)
	return detail, nil
}

// Cancel marks a scheduled, non-past appointment cancelled and frees its slot.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) (*Detail, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusScheduled {
		return nil, ErrNotCancellable
	}

	today := availability.Date(s.now())
	if availability.Date(appt.Date).Before(today) {
		return nil, ErrPastDateCancel
	}

	cancelled, err := s.repo.UpdateStatus(ctx, appt.ID, StatusScheduled, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrNotScheduled) {
			return nil, ErrNotCancellable
		}
		return nil, err
	}

	if err := s.slots.Release(ctx, appt.SlotID); err != nil {
		s.log.Error().Err(err).
			Stringer("appointment_id", appt.ID).
			Stringer("slot_id", appt.SlotID).
			Msg("cancel committed but slot not released; reconcile sweep will release")
	}

	s.log.Info().Stringer("appointment_id", appt.ID).Msg("appointment cancelled")

	detail := s.enrich(ctx, cancelled)
	s.notify(ctx, notification.KindCancelled, detail, nil, "")
	return detail, nil
}

// Complete marks a scheduled appointment completed. Strict same-day rule:
// neither future nor past appointments may be completed.
func (s *Service) Complete(ctx context.Context, appointmentID uuid.UUID) (*Detail, error) {
	appt, err := s.repo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusScheduled {
		return nil, ErrNotCompletable
	}

	today := availability.Date(s.now())
	if !availability.Date(appt.Date).Equal(today) {
		return nil, ErrNotToday
	}

	completed, err := s.repo.UpdateStatus(ctx, appt.ID, StatusScheduled, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrNotScheduled) {
			return nil, ErrNotCompletable
		}
		return nil, err
	}

	if err := s.slots.Release(ctx, appt.SlotID); err != nil {
		s.log.Error().Err(err).
			Stringer("appointment_id", appt.ID).
			Stringer("slot_id", appt.SlotID).
			Msg("complete committed but slot not released; reconcile sweep will release")
	}

	s.log.Info().Stringer("appointment_id", appt.ID).Msg("appointment completed")

	return s.enrich(ctx, completed), nil
}

// GetAppointment returns one appointment enriched with directory names.
// Directory failure fails the read.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Detail, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.enrichStrict(ctx, appt)
}

// CurrentPatientAppointments lists scheduled appointments dated today or later.
func (s *Service) CurrentPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Detail, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID, s.now(), StatusScheduled, true)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, appts)
}

// PastPatientAppointments lists completed appointments dated today or earlier.
func (s *Service) PastPatientAppointments(ctx context.Context, patientID uuid.UUID) ([]Detail, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID, s.now(), StatusCompleted, false)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, appts)
}

func (s *Service) CurrentDoctorAppointments(ctx context.Context, doctorID uuid.UUID) ([]Detail, error) {
	appts, err := s.repo.ListByDoctor(ctx, doctorID, s.now(), StatusScheduled, true)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, appts)
}

func (s *Service) PastDoctorAppointments(ctx context.Context, doctorID uuid.UUID) ([]Detail, error) {
	appts, err := s.repo.ListByDoctor(ctx, doctorID, s.now(), StatusCompleted, false)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, appts)
}

// AppointmentsByDate feeds the reminder dispatch for one calendar day.
func (s *Service) AppointmentsByDate(ctx context.Context, date time.Time) ([]Detail, error) {
	appts, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, ErrAppointmentNotFound
	}
	return s.enrichAll(ctx, appts)
}

func (s *Service) AppointmentsInRange(ctx context.Context, start, end time.Time) ([]Detail, error) {
	appts, err := s.repo.ListInRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.enrichAll(ctx, appts)
}

// enrichStrict resolves display names and propagates lookup failures. Used by
// reads, where a missing directory entry fails the whole read.
func (s *Service) enrichStrict(ctx context.Context, appt *Appointment) (*Detail, error) {
	detail := &Detail{Appointment: *appt}

	doctor, err := s.directory.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	detail.DoctorName = doctor.Name

	spec, err := s.directory.GetSpecialization(ctx, doctor.SpecializationID)
	if err != nil {
		return nil, fmt.Errorf("resolve specialization: %w", err)
	}
	detail.SpecializationName = spec.Name

	patient, err := s.directory.GetPatient(ctx, appt.PatientID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient: %w", err)
	}
	detail.PatientName = patient.Name

	return detail, nil
}

// enrich is the write-path variant: directory lookups decorate the response
// but never gate the committed transaction.
func (s *Service) enrich(ctx context.Context, appt *Appointment) *Detail {
	detail, err := s.enrichStrict(ctx, appt)
	if err != nil {
		s.log.Warn().Err(err).
			Stringer("appointment_id", appt.ID).
			Msg("directory enrichment failed; returning appointment without names")
		return &Detail{Appointment: *appt}
	}
	return detail
}

func (s *Service) enrichAll(ctx context.Context, appts []Appointment) ([]Detail, error) {
	details := make([]Detail, 0, len(appts))
	for i := range appts {
		d, err := s.enrichStrict(ctx, &appts[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}

// notify dispatches best-effort: failures are logged, never rolled back.
func (s *Service) notify(ctx context.Context, kind notification.Kind, detail *Detail, oldDate *time.Time, oldSession availability.Session) {
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	req := notification.Request{
		Kind:          kind,
		AppointmentID: detail.ID,
		PatientID:     detail.PatientID,
		DoctorID:      detail.DoctorID,
		PatientName:   detail.PatientName,
		DoctorName:    detail.DoctorName,
		Date:          detail.Date,
		Session:       string(detail.Session),
	}
	if oldDate != nil {
		d := availability.Date(*oldDate)
		req.OldDate = &d
		req.OldSession = string(oldSession)
	}

	if err := s.notifier.Notify(notifyCtx, req); err != nil {
		s.log.Error().Err(err).
			Str("kind", string(kind)).
			Stringer("appointment_id", detail.ID).
			Msg("notification dispatch failed")
	}
}
