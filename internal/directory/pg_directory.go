package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgDirectory reads the locally hosted directory tables. Every lookup runs
// under its own bounded timeout so a slow read cannot stall a booking.
type PgDirectory struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPgDirectory(pool *pgxpool.Pool, timeout time.Duration) *PgDirectory {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PgDirectory{pool: pool, timeout: timeout}
}

func (d *PgDirectory) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var doc Doctor
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, specialization_id
		FROM doctors
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Name, &doc.SpecializationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &doc, nil
}

func (d *PgDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var p Patient
	var email *string
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, email
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func (d *PgDirectory) GetSpecialization(ctx context.Context, id uuid.UUID) (*Specialization, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var sp Specialization
	err := d.pool.QueryRow(ctx, `
		SELECT id, name
		FROM specializations
		WHERE id = $1
	`, id).Scan(&sp.ID, &sp.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecializationNotFound
		}
		return nil, err
	}

	return &sp, nil
}
