package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service answers "is doctor D free on date X in session S?" and owns all
// slot-state mutation.
type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("component", "availability").Logger(),
	}
}

// FindFreeSlot returns the unique free slot for (doctor, date, session).
// When no slot exists for the date at all the generation process has not
// reached it yet, which is reported separately from "doctor not free".
func (s *Service) FindFreeSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, session Session) (*Slot, error) {
	exists, err := s.repo.ExistsForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("check availability for date: %w", err)
	}
	if !exists {
		return nil, ErrNoSlotsForDate
	}

	slot, err := s.repo.FindSlotByStatus(ctx, doctorID, date, session, SlotFree)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrDoctorNotAvailable
		}
		return nil, fmt.Errorf("find free slot: %w", err)
	}

	return slot, nil
}

// Reserve marks a slot occupied. The conditional update is the only way a
// slot moves free -> booked, so two callers cannot both win.
func (s *Service) Reserve(ctx context.Context, slotID uuid.UUID) error {
	_, err := s.repo.UpdateSlotStatus(ctx, slotID, SlotFree, SlotBooked)
	if err != nil {
		if errors.Is(err, ErrSlotNotAvailable) || errors.Is(err, ErrSlotNotFound) {
			return err
		}
		return fmt.Errorf("reserve slot %s: %w", slotID, err)
	}
	return nil
}

// Release restores a slot to free. Releasing an already-free slot is a no-op.
func (s *Service) Release(ctx context.Context, slotID uuid.UUID) error {
	slot, err := s.repo.ReleaseSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return err
		}
		return fmt.Errorf("release slot %s: %w", slotID, err)
	}
	if slot.Status == SlotDayOff {
		s.log.Debug().Stringer("slot_id", slotID).Msg("release skipped for day-off slot")
	}
	return nil
}

// ToggleDayOff flips a slot between free and day_off. Slots holding a booking
// cannot be toggled; the appointment has to be cancelled first.
func (s *Service) ToggleDayOff(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	switch slot.Status {
	case SlotBooked:
		return nil, ErrSlotBooked
	case SlotDayOff:
		return s.repo.UpdateSlotStatus(ctx, slotID, SlotDayOff, SlotFree)
	default:
		return s.repo.UpdateSlotStatus(ctx, slotID, SlotFree, SlotDayOff)
	}
}

func (s *Service) GetSlot(ctx context.Context, slotID uuid.UUID) (*Slot, error) {
	return s.repo.GetSlotByID(ctx, slotID)
}

func (s *Service) DoctorSchedule(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	return s.repo.ListDoctorSchedule(ctx, doctorID)
}

func (s *Service) AvailableDoctors(ctx context.Context, specialization string, date time.Time, session Session) ([]Slot, error) {
	slots, err := s.repo.ListAvailableDoctors(ctx, specialization, date, session)
	if err != nil {
		return nil, fmt.Errorf("list available doctors: %w", err)
	}
	return slots, nil
}

func (s *Service) DoctorScheduleInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Slot, error) {
	return s.repo.ListDoctorScheduleInRange(ctx, doctorID, start, end)
}
