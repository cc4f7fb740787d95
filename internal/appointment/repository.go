package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/healthsync/appointment-scheduling/internal/availability"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrNotScheduled is returned by conditional updates when the appointment
	// is no longer in the scheduled state.
	ErrNotScheduled = errors.New("appointment is not scheduled")
)

// Repository contains all DB interactions needed by the coordinator.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Create persists a new scheduled appointment. The partial unique
	// index on (patient, date, session, scheduled) backs the duplicate guard.
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// ExistsScheduled reports whether the patient already holds a scheduled
	// appointment at (date, session), excluding excludeID when non-nil.
	ExistsScheduled(ctx context.Context, patientID uuid.UUID, date time.Time, session availability.Session, excludeID *uuid.UUID) (bool, error)

	// UpdateSchedule repoints a scheduled appointment at a new
	// (doctor, date, session, slot); ErrNotScheduled when the row has moved on.
	UpdateSchedule(ctx context.Context, id, doctorID, slotID uuid.UUID, date time.Time, session availability.Session) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error)
	ListByDate(ctx context.Context, date time.Time) ([]Appointment, error)
	ListInRange(ctx context.Context, start, end time.Time) ([]Appointment, error)

	// Reconciliation sweep
	ListScheduledWithFreeSlot(ctx context.Context) ([]Appointment, error)
	ListOrphanedBookedSlots(ctx context.Context) ([]uuid.UUID, error)
}
