package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is the half-day window a slot covers. It is a closed set; anything
// else is rejected at the boundary.
type Session string

const (
	SessionMorning   Session = "morning"
	SessionAfternoon Session = "afternoon"
)

func Sessions() []Session {
	return []Session{SessionMorning, SessionAfternoon}
}

func ParseSession(s string) (Session, error) {
	switch Session(s) {
	case SessionMorning, SessionAfternoon:
		return Session(s), nil
	}
	return "", fmt.Errorf("invalid session %q", s)
}

type SlotStatus string

const (
	SlotFree   SlotStatus = "free"
	SlotBooked SlotStatus = "booked"
	// SlotDayOff marks a slot the doctor has withdrawn from the bookable pool.
	// It is never set or cleared by the booking flow.
	SlotDayOff SlotStatus = "day_off"
)

// Slot is one bookable (doctor, date, session) unit. At most one slot exists
// per (DoctorID, Date, Session); the database enforces it.
type Slot struct {
	ID               uuid.UUID
	DoctorID         uuid.UUID
	SpecializationID uuid.UUID
	Date             time.Time
	Session          Session
	Status           SlotStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DoctorRef is the minimal doctor projection the horizon generator needs.
type DoctorRef struct {
	ID               uuid.UUID
	SpecializationID uuid.UUID
}

// Date truncates t to its civil date in UTC. All slot and appointment dates
// are stored and compared at day granularity.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a yyyy-mm-dd calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want yyyy-mm-dd", s)
	}
	return t, nil
}
