package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/healthsync/appointment-scheduling/internal/availability"
)

func doctorScheduleHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		slots, err := svc.DoctorSchedule(r.Context(), doctorID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "doctor schedule retrieved", toSlotResponses(slots))
	}
}

func availableDoctorsHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialization := r.URL.Query().Get("specialization")
		if specialization == "" {
			writeError(w, http.StatusBadRequest, "specialization query parameter is required")
			return
		}

		date, err := availability.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		session, err := availability.ParseSession(r.URL.Query().Get("session"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		slots, err := svc.AvailableDoctors(r.Context(), specialization, date, session)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "available doctors retrieved", toSlotResponses(slots))
	}
}

func doctorScheduleRangeHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

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

		slots, err := svc.DoctorScheduleInRange(r.Context(), doctorID, start, end)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "doctor schedule retrieved", toSlotResponses(slots))
	}
}

func toggleDayOffHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		slot, err := svc.ToggleDayOff(r.Context(), slotID)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, "slot availability toggled", toSlotResponse(slot))
	}
}
