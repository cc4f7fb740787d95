package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthsync/appointment-scheduling/internal/availability"
)

// ErrDuplicateScheduled surfaces the partial unique index on
// (patient_id, appointment_date, session) WHERE status = 'scheduled'.
var ErrDuplicateScheduled = errors.New("patient already has a scheduled appointment for this date and session")

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const apptColumns = `id, patient_id, doctor_id, slot_id, appointment_date, session, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.SlotID,
		&a.Date,
		&a.Session,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_id, appointment_date, session, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+apptColumns+`
	`, id, a.PatientID, a.DoctorID, a.SlotID, availability.Date(a.Date), a.Session, StatusScheduled)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateScheduled
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ExistsScheduled(ctx context.Context, patientID uuid.UUID, date time.Time, session availability.Session, excludeID *uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			  AND appointment_date = $2
			  AND session = $3
			  AND status = $4
			  AND ($5::uuid IS NULL OR id <> $5)
		)
	`, patientID, availability.Date(date), session, StatusScheduled, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing scheduled appointment: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, id, doctorID, slotID uuid.UUID, date time.Time, session availability.Session) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_id = $2,
		    slot_id = $3,
		    appointment_date = $4,
		    session = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = $6
		RETURNING `+apptColumns+`
	`, id, doctorID, slotID, availability.Date(date), session, StatusScheduled)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotScheduled
	}
	return appt, err
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+apptColumns+`
	`, id, to, from)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotScheduled
	}
	return appt, err
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error) {
	cmp := "<="
	if current {
		cmp = ">="
	}
	return r.queryAppointments(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE patient_id = $1 AND appointment_date `+cmp+` $2 AND status = $3
		ORDER BY appointment_date, session
	`, patientID, availability.Date(from), status)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, status Status, current bool) ([]Appointment, error) {
	cmp := "<="
	if current {
		cmp = ">="
	}
	return r.queryAppointments(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date `+cmp+` $2 AND status = $3
		ORDER BY appointment_date, session
	`, doctorID, availability.Date(from), status)
}

func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE appointment_date = $1
		ORDER BY session, created_at
	`, availability.Date(date))
}

func (r *PgRepository) ListInRange(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE appointment_date BETWEEN $1 AND $2
		ORDER BY appointment_date, session
	`, availability.Date(start), availability.Date(end))
}

// ListScheduledWithFreeSlot finds appointments whose referenced slot is still
// marked free, the residue of a crash between appointment-commit and reserve.
func (r *PgRepository) ListScheduledWithFreeSlot(ctx context.Context) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT a.id, a.patient_id, a.doctor_id, a.slot_id, a.appointment_date, a.session, a.status, a.created_at, a.updated_at
		FROM appointments a
		JOIN availability_slots s ON s.id = a.slot_id
		WHERE a.status = $1 AND s.status = $2
	`, StatusScheduled, availability.SlotFree)
}

// ListOrphanedBookedSlots finds booked slots no scheduled appointment
// references, the residue of a crash between cancel/reschedule and release.
func (r *PgRepository) ListOrphanedBookedSlots(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id
		FROM availability_slots s
		WHERE s.status = $1
		  AND NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.slot_id = s.id AND a.status = $2
		  )
	`, availability.SlotBooked, StatusScheduled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}

	return result, rows.Err()
}

func (r *PgRepository) queryAppointments(ctx context.Context, sql string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}
