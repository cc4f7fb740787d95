package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.SpecializationID,
		&s.Date,
		&s.Session,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

const slotColumns = `id, doctor_id, specialization_id, slot_date, session, status, created_at, updated_at`

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) FindSlotByStatus(ctx context.Context, doctorID uuid.UUID, date time.Time, session Session, status SlotStatus) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND session = $3 AND status = $4
	`, doctorID, Date(date), session, status)
	return scanSlot(row)
}

func (r *PgRepository) ExistsForDate(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM availability_slots WHERE slot_date = $1)
	`, Date(date)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slots for date: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+slotColumns+`
	`, id, to, from)

	slot, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		// Either the slot does not exist or it is not in the expected state.
		if _, getErr := r.GetSlotByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrSlotNotAvailable
	}
	return slot, err
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE availability_slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status <> $3
		RETURNING `+slotColumns+`
	`, id, SlotFree, SlotDayOff)

	slot, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		// Day-off slots are left alone; releasing them is a no-op.
		return r.GetSlotByID(ctx, id)
	}
	return slot, err
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]DoctorRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, specialization_id
		FROM doctors
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DoctorRef
	for rows.Next() {
		var d DoctorRef
		if err := rows.Scan(&d.ID, &d.SpecializationID); err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	return result, rows.Err()
}

// InsertSlots bulk-inserts slots, silently skipping any (doctor, date, session)
// that already has one. Returns the number actually created.
func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var created int64
	for _, s := range slots {
		tag, err := tx.Exec(ctx, `
			INSERT INTO availability_slots (id, doctor_id, specialization_id, slot_date, session, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (doctor_id, slot_date, session) DO NOTHING
		`, s.ID, s.DoctorID, s.SpecializationID, Date(s.Date), s.Session, s.Status)
		if err != nil {
			return 0, fmt.Errorf("insert slot: %w", err)
		}
		created += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return created, nil
}

func (r *PgRepository) GetGenerationMarker(ctx context.Context) (*time.Time, error) {
	var last time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT last_generated_date
		FROM slot_generation_marker
		WHERE id = true
	`).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get generation marker: %w", err)
	}
	return &last, nil
}

func (r *PgRepository) SetGenerationMarker(ctx context.Context, date time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO slot_generation_marker (id, last_generated_date, updated_at)
		VALUES (true, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET last_generated_date = GREATEST(slot_generation_marker.last_generated_date, EXCLUDED.last_generated_date),
		    updated_at = now()
	`, Date(date))
	if err != nil {
		return fmt.Errorf("set generation marker: %w", err)
	}
	return nil
}

func (r *PgRepository) ListDoctorSchedule(ctx context.Context, doctorID uuid.UUID) ([]Slot, error) {
	return r.querySlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1
		ORDER BY slot_date, session
	`, doctorID)
}

func (r *PgRepository) ListAvailableDoctors(ctx context.Context, specialization string, date time.Time, session Session) ([]Slot, error) {
	return r.querySlots(ctx, `
		SELECT s.id, s.doctor_id, s.specialization_id, s.slot_date, s.session, s.status, s.created_at, s.updated_at
		FROM availability_slots s
		JOIN specializations sp ON sp.id = s.specialization_id
		WHERE sp.name = $1 AND s.slot_date = $2 AND s.session = $3 AND s.status = $4
		ORDER BY s.doctor_id
	`, specialization, Date(date), session, SlotFree)
}

func (r *PgRepository) ListDoctorScheduleInRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Slot, error) {
	return r.querySlots(ctx, `
		SELECT `+slotColumns+`
		FROM availability_slots
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, session
	`, doctorID, Date(start), Date(end))
}

func (r *PgRepository) querySlots(ctx context.Context, sql string, args ...any) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	return result, rows.Err()
}
