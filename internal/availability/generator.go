package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateHorizon keeps a rolling horizon of horizonDays days of slots for
// every doctor, one slot per session per day. The first run fills the whole
// window; later runs only append the missing tail. Progress is tracked in a
// persisted marker so restarts and multiple instances stay correct, and each
// insert skips (doctor, date, session) tuples that already have a slot.
func (s *Service) GenerateHorizon(ctx context.Context, today time.Time, horizonDays int) (int64, error) {
	today = Date(today)
	horizonEnd := today.AddDate(0, 0, horizonDays-1)

	start := today
	marker, err := s.repo.GetGenerationMarker(ctx)
	if err != nil {
		return 0, err
	}
	if marker != nil {
		next := Date(*marker).AddDate(0, 0, 1)
		if next.After(start) {
			start = next
		}
	}

	if start.After(horizonEnd) {
		s.log.Debug().Time("horizon_end", horizonEnd).Msg("horizon already generated")
		return 0, nil
	}

	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return 0, fmt.Errorf("list doctors: %w", err)
	}

	var slots []Slot
	for date := start; !date.After(horizonEnd); date = date.AddDate(0, 0, 1) {
		for _, doctor := range doctors {
			for _, session := range Sessions() {
				slots = append(slots, Slot{
					ID:               uuid.New(),
					DoctorID:         doctor.ID,
					SpecializationID: doctor.SpecializationID,
					Date:             date,
					Session:          session,
					Status:           SlotFree,
				})
			}
		}
	}

	created, err := s.repo.InsertSlots(ctx, slots)
	if err != nil {
		return 0, fmt.Errorf("insert horizon slots: %w", err)
	}

	if err := s.repo.SetGenerationMarker(ctx, horizonEnd); err != nil {
		return created, err
	}

	s.log.Info().
		Time("from", start).
		Time("to", horizonEnd).
		Int("doctors", len(doctors)).
		Int64("slots_created", created).
		Msg("availability horizon generated")

	return created, nil
}
