package appointment

import (
	"context"

	"github.com/rs/zerolog"
)

// Reconciler heals the two consistency gaps a crash between appointment
// commit and slot mutation can leave behind: scheduled appointments whose
// slot is still free, and booked slots no scheduled appointment references.
type Reconciler struct {
	repo  Repository
	slots Slots
	log   zerolog.Logger
}

func NewReconciler(repo Repository, slots Slots, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		repo:  repo,
		slots: slots,
		log:   log.With().Str("component", "reconciler").Logger(),
	}
}

type ReconcileResult struct {
	SlotsReserved int
	SlotsReleased int
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	unreserved, err := r.repo.ListScheduledWithFreeSlot(ctx)
	if err != nil {
		return result, err
	}
	for _, appt := range unreserved {
		if err := r.slots.Reserve(ctx, appt.SlotID); err != nil {
			r.log.Error().Err(err).
				Stringer("appointment_id", appt.ID).
				Stringer("slot_id", appt.SlotID).
				Msg("failed to re-reserve slot for scheduled appointment")
			continue
		}
		r.log.Warn().
			Stringer("appointment_id", appt.ID).
			Stringer("slot_id", appt.SlotID).
			Msg("re-reserved slot left free by interrupted booking")
		result.SlotsReserved++
	}

	orphaned, err := r.repo.ListOrphanedBookedSlots(ctx)
	if err != nil {
		return result, err
	}
	for _, slotID := range orphaned {
		if err := r.slots.Release(ctx, slotID); err != nil {
			r.log.Error().Err(err).
				Stringer("slot_id", slotID).
				Msg("failed to release orphaned booked slot")
			continue
		}
		r.log.Warn().
			Stringer("slot_id", slotID).
			Msg("released booked slot with no scheduled appointment")
		result.SlotsReleased++
	}

	return result, nil
}
