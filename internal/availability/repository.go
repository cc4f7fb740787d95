package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound = errors.New("availability slot not found")

	// ErrNoSlotsForDate means generation has not produced any slot for the
	// requested date yet. Distinct from ErrDoctorNotAvailable so callers can
	// tell "nothing exists yet" from "taken".
	ErrNoSlotsForDate     = errors.New("no availability records for date")
	ErrDoctorNotAvailable = errors.New("doctor is not available for the selected slot")

	// ErrSlotNotAvailable is returned by Reserve when the conditional update
	// finds the slot no longer free.
	ErrSlotNotAvailable = errors.New("slot is no longer available")

	ErrSlotBooked = errors.New("slot has a booking and cannot be toggled")
)

// Repository contains all DB interactions needed by the availability service.
type Repository interface {
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	FindSlotByStatus(ctx context.Context, doctorID uuid.UUID, date time.Time, session Session, status SlotStatus) (*Slot, error)
	ExistsForDate(ctx context.Context, date time.Time) (bool, error)

	// UpdateSlotStatus flips status from->to atomically; ErrSlotNotAvailable
	// when the slot is not currently in the from state.
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error)
	// ReleaseSlot sets the slot free unless it is a day off. Idempotent.
	ReleaseSlot(ctx context.Context, id uuid.UUID) (*Slot, error)

	// Horizon generation
	ListDoctors(ctx context.Context) ([]DoctorRef, error)
	InsertSlots(ctx context.Context, slots []Slot) (int64, error)
	GetGenerationMarker(ctx context.Context) (*time.Time, error)
	SetGenerationMarker(ctx context.Context, date time.Time) error

	// Schedule reads
	ListDoctorSchedule(ctx context.Context, doctorID uuid.UUID) ([]Slot, error)
	ListAvailableDoctors(ctx context.Context, specialization string, date time.Time, session Session) ([]Slot, error)
	ListDoctorScheduleInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Slot, error)
}
