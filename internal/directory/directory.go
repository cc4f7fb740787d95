// Package directory resolves doctor, patient, and specialization IDs to their
// human-facing attributes. The appointment coordinator only sees the Directory
// interface, so the backing lookup can be swapped for a remote service.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound         = errors.New("doctor not found")
	ErrPatientNotFound        = errors.New("patient not found")
	ErrSpecializationNotFound = errors.New("specialization not found")
)

type Doctor struct {
	ID               uuid.UUID
	Name             string
	SpecializationID uuid.UUID
}

type Patient struct {
	ID    uuid.UUID
	Name  string
	Email *string
}

type Specialization struct {
	ID   uuid.UUID
	Name string
}

type Directory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetSpecialization(ctx context.Context, id uuid.UUID) (*Specialization, error)
}
