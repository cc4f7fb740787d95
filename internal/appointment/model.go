package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthsync/appointment-scheduling/internal/availability"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment links a patient to one availability slot. Status moves one way:
// scheduled -> completed or scheduled -> cancelled, never back.
type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	SlotID    uuid.UUID
	Date      time.Time
	Session   availability.Session
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Detail is an appointment enriched with directory display names for
// responses and notifications.
type Detail struct {
	Appointment
	PatientName        string
	DoctorName         string
	SpecializationName string
}
