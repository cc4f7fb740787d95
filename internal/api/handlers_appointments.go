package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/healthsync/appointment-scheduling/internal/appointment"
	"github.com/healthsync/appointment-scheduling/internal/availability"
	"github.com/healthsync/appointment-scheduling/internal/directory"
	redisclient "github.com/healthsync/appointment-scheduling/internal/redis"
)

func bookAppointmentHandler(svc *appointment.Service, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		patientID, _ := uuid.Parse(req.PatientID)
		doctorID, _ := uuid.Parse(req.DoctorID)
		date, _ := availability.ParseDate(req.Date)
		session := availability.Session(req.Session)

		detail, err := svc.Book(r.Context(), patientID, doctorID, date, session)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, "appointment booked", toAppointmentResponse(detail))
	}
}

func rescheduleAppointmentHandler(svc *appointment.Service, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		appointmentID, _ := uuid.Parse(req.AppointmentID)
		doctorID, _ := uuid.Parse(req.DoctorID)
		newDate, _ := availability.ParseDate(req.NewDate)
		newSession := availability.Session(req.NewSession)

		detail, err := svc.Reschedule(r.Context(), appointmentID, doctorID, newDate, newSession)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "appointment rescheduled", toAppointmentResponse(detail))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "appointment cancelled", toAppointmentResponse(detail))
	}
}

func completeAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.Complete(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "appointment completed", toAppointmentResponse(detail))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "appointment retrieved", toAppointmentResponse(detail))
	}
}

type patientAppointmentsFn func(r *http.Request, id uuid.UUID) ([]appointment.Detail, error)

func listAppointmentsHandler(param, message string, list patientAppointmentsFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, param)
		if !ok {
			return
		}

		details, err := list(r, id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, message, toAppointmentResponses(details))
	}
}

func appointmentsByDateHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := availability.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		details, err := svc.AppointmentsByDate(r.Context(), date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "appointments retrieved", toAppointmentResponses(details))
	}
}

func appointmentsInRangeHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := availability.ParseDate(chi.URLParam(r, "startDate"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := availability.ParseDate(chi.URLParam(r, "endDate"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "endDate must not be before startDate")
			return
		}

		details, err := svc.AppointmentsInRange(r.Context(), start, end)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "appointments retrieved", toAppointmentResponses(details))
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, availability.ErrSlotNotFound),
		errors.Is(err, availability.ErrNoSlotsForDate),
		errors.Is(err, directory.ErrDoctorNotFound),
		errors.Is(err, directory.ErrPatientNotFound),
		errors.Is(err, directory.ErrSpecializationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, appointment.ErrDuplicateScheduled),
		errors.Is(err, availability.ErrDoctorNotAvailable),
		errors.Is(err, availability.ErrSlotNotAvailable),
		errors.Is(err, availability.ErrSlotBooked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrNotScheduled),
		errors.Is(err, appointment.ErrNotCancellable),
		errors.Is(err, appointment.ErrPastDateCancel),
		errors.Is(err, appointment.ErrNotCompletable),
		errors.Is(err, appointment.ErrNotToday):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
