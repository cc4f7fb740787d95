package appointment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthsync/appointment-scheduling/internal/availability"
	"github.com/healthsync/appointment-scheduling/internal/directory"
	"github.com/healthsync/appointment-scheduling/internal/notification"
)

// ReminderDispatcher sends a reminder for every appointment still scheduled
// on a given date. cmd/reminder-worker runs it one day ahead.
type ReminderDispatcher struct {
	repo      Repository
	directory directory.Directory
	notifier  notification.Notifier
	log       zerolog.Logger

	notifyTimeout time.Duration
}

func NewReminderDispatcher(repo Repository, dir directory.Directory, notifier notification.Notifier, notifyTimeout time.Duration, log zerolog.Logger) *ReminderDispatcher {
	if notifyTimeout <= 0 {
		notifyTimeout = 3 * time.Second
	}
	return &ReminderDispatcher{
		repo:          repo,
		directory:     dir,
		notifier:      notifier,
		log:           log.With().Str("component", "reminders").Logger(),
		notifyTimeout: notifyTimeout,
	}
}

// Run dispatches reminders for date and returns how many were sent. Lookup
// and dispatch failures are logged per appointment; the sweep keeps going.
// Name resolution is best-effort, a reminder without names still goes out.
func (d *ReminderDispatcher) Run(ctx context.Context, date time.Time) (int, error) {
	date = availability.Date(date)

	appts, err := d.repo.ListByDate(ctx, date)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range appts {
		appt := &appts[i]
		if appt.Status != StatusScheduled {
			continue
		}

		req := notification.Request{
			Kind:          notification.KindReminder,
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
			Date:          appt.Date,
			Session:       string(appt.Session),
		}
		if patient, err := d.directory.GetPatient(ctx, appt.PatientID); err == nil {
			req.PatientName = patient.Name
		}
		if doctor, err := d.directory.GetDoctor(ctx, appt.DoctorID); err == nil {
			req.DoctorName = doctor.Name
		}

		notifyCtx, cancel := context.WithTimeout(ctx, d.notifyTimeout)
		err := d.notifier.Notify(notifyCtx, req)
		cancel()
		if err != nil {
			d.log.Error().Err(err).
				Stringer("appointment_id", appt.ID).
				Msg("reminder dispatch failed")
			continue
		}
		sent++
	}

	if sent > 0 {
		d.log.Info().
			Time("date", date).
			Int("reminders_sent", sent).
			Msg("reminders dispatched")
	}

	return sent, nil
}
