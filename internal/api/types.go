package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthsync/appointment-scheduling/internal/appointment"
	"github.com/healthsync/appointment-scheduling/internal/availability"
)

type BookAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid4"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid4"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Session   string `json:"session" validate:"required,oneof=morning afternoon"`
}

type RescheduleAppointmentRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid4"`
	DoctorID      string `json:"doctor_id" validate:"required,uuid4"`
	NewDate       string `json:"new_date" validate:"required,datetime=2006-01-02"`
	NewSession    string `json:"new_session" validate:"required,oneof=morning afternoon"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patient_id"`
	DoctorID           uuid.UUID `json:"doctor_id"`
	SlotID             uuid.UUID `json:"slot_id"`
	Date               string    `json:"date"`
	Session            string    `json:"session"`
	Status             string    `json:"status"`
	PatientName        string    `json:"patient_name,omitempty"`
	DoctorName         string    `json:"doctor_name,omitempty"`
	SpecializationName string    `json:"specialization_name,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func toAppointmentResponse(d *appointment.Detail) AppointmentResponse {
	return AppointmentResponse{
		ID:                 d.ID,
		PatientID:          d.PatientID,
		DoctorID:           d.DoctorID,
		SlotID:             d.SlotID,
		Date:               d.Date.Format("2006-01-02"),
		Session:            string(d.Session),
		Status:             string(d.Status),
		PatientName:        d.PatientName,
		DoctorName:         d.DoctorName,
		SpecializationName: d.SpecializationName,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func toAppointmentResponses(details []appointment.Detail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(details))
	for i := range details {
		out = append(out, toAppointmentResponse(&details[i]))
	}
	return out
}

type SlotResponse struct {
	ID               uuid.UUID `json:"id"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	SpecializationID uuid.UUID `json:"specialization_id"`
	Date             string    `json:"date"`
	Session          string    `json:"session"`
	Status           string    `json:"status"`
}

func toSlotResponse(s *availability.Slot) SlotResponse {
	return SlotResponse{
		ID:               s.ID,
		DoctorID:         s.DoctorID,
		SpecializationID: s.SpecializationID,
		Date:             s.Date.Format("2006-01-02"),
		Session:          string(s.Session),
		Status:           string(s.Status),
	}
}

func toSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, toSlotResponse(&slots[i]))
	}
	return out
}
