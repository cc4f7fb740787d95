// Package notification carries booking lifecycle events to the notification
// service. Dispatch is fire-and-forget: the coordinator never rolls back a
// committed booking because a notification failed.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindBooked      Kind = "booked"
	KindRescheduled Kind = "rescheduled"
	KindCancelled   Kind = "cancelled"
	KindReminder    Kind = "reminder"
)

// Request is the value object handed to the dispatcher. Old* fields are only
// set for rescheduled notifications.
type Request struct {
	Kind          Kind       `json:"kind"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	PatientName   string     `json:"patient_name"`
	DoctorName    string     `json:"doctor_name"`
	Date          time.Time  `json:"date"`
	Session       string     `json:"session"`
	OldDate       *time.Time `json:"old_date,omitempty"`
	OldSession    string     `json:"old_session,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, req Request) error
}
