package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/healthsync/appointment-scheduling/internal/appointment"
	"github.com/healthsync/appointment-scheduling/internal/availability"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	validate := validator.New()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/book", bookAppointmentHandler(cfg.Appointments, validate))
		r.Post("/reschedule", rescheduleAppointmentHandler(cfg.Appointments, validate))
		r.Post("/cancel/{id}", cancelAppointmentHandler(cfg.Appointments))
		r.Post("/completeAppointment/{id}", completeAppointmentHandler(cfg.Appointments))

		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Get("/current/patient/{id}", listAppointmentsHandler("id", "current appointments retrieved",
			func(req *http.Request, id uuid.UUID) ([]appointment.Detail, error) {
				return cfg.Appointments.CurrentPatientAppointments(req.Context(), id)
			}))
		r.Get("/past/patient/{id}", listAppointmentsHandler("id", "past appointments retrieved",
			func(req *http.Request, id uuid.UUID) ([]appointment.Detail, error) {
				return cfg.Appointments.PastPatientAppointments(req.Context(), id)
			}))
		r.Get("/current/doctor/{id}", listAppointmentsHandler("id", "current appointments retrieved",
			func(req *http.Request, id uuid.UUID) ([]appointment.Detail, error) {
				return cfg.Appointments.CurrentDoctorAppointments(req.Context(), id)
			}))
		r.Get("/past/doctor/{id}", listAppointmentsHandler("id", "past appointments retrieved",
			func(req *http.Request, id uuid.UUID) ([]appointment.Detail, error) {
				return cfg.Appointments.PastDoctorAppointments(req.Context(), id)
			}))
		r.Get("/date/{date}", appointmentsByDateHandler(cfg.Appointments))
		r.Get("/filter/{startDate}/{endDate}", appointmentsInRangeHandler(cfg.Appointments))
	})

	r.Route("/availability", func(r chi.Router) {
		r.Get("/search", availableDoctorsHandler(cfg.Availability))
		r.Get("/doctor/{id}", doctorScheduleHandler(cfg.Availability))
		r.Get("/doctor/{id}/range/{startDate}/{endDate}", doctorScheduleRangeHandler(cfg.Availability))
		r.Post("/{id}/toggle", toggleDayOffHandler(cfg.Availability))
	})

	return r
}
