package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dentaflow/clinic-platform/internal/backend"
	"github.com/dentaflow/clinic-platform/internal/booking"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

// AppointmentsHandler serves booking writes and conflict checks.
type AppointmentsHandler struct {
	coordinator *booking.Coordinator
	guard       *booking.Guard
	logger      *logging.Logger
}

// NewAppointmentsHandler creates an appointments handler.
func NewAppointmentsHandler(coordinator *booking.Coordinator, guard *booking.Guard, logger *logging.Logger) *AppointmentsHandler {
	if coordinator == nil {
		panic("handlers: booking coordinator required")
	}
	if guard == nil {
		panic("handlers: conflict guard required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{coordinator: coordinator, guard: guard, logger: logger}
}

// CreateAppointment handles POST /api/v1/appointments.
// A conflict answers 409 with state "rejected" so the UI prompts for a
// different slot; other failures answer with state "failed" and a status
// that distinguishes the booking service being down from a generic error.
func (h *AppointmentsHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req backend.AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode appointment request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.coordinator.CreateAppointment(r.Context(), req)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// AutoBook handles POST /api/v1/appointments/auto-book. The outcome is
// always 200 with a structured body; Success=false carries an actionable
// message.
func (h *AppointmentsHandler) AutoBook(w http.ResponseWriter, r *http.Request) {
	var req backend.AutoBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode auto-book request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	outcome := h.coordinator.AutoBookFirstAvailable(r.Context(), req)
	writeJSON(w, http.StatusOK, outcome)
}

type conflictCheckResponse struct {
	HasConflict bool `json:"hasConflict"`
}

// CheckConflict handles GET /api/v1/appointments/check-conflict.
// Query params: date, timeSlot, clinicId, dentistId?, excludeAppointmentId?.
// A check that cannot be performed is an error response, never
// hasConflict=false.
func (h *AppointmentsHandler) CheckConflict(w http.ResponseWriter, r *http.Request) {
	q := backend.ConflictQuery{
		Date:                 r.URL.Query().Get("date"),
		TimeSlot:             r.URL.Query().Get("timeSlot"),
		ClinicID:             r.URL.Query().Get("clinicId"),
		DentistID:            r.URL.Query().Get("dentistId"),
		ExcludeAppointmentID: r.URL.Query().Get("excludeAppointmentId"),
	}

	hasConflict, err := h.guard.Check(r.Context(), q)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conflictCheckResponse{HasConflict: hasConflict})
}
