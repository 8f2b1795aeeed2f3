package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dentaflow/clinic-platform/internal/availability"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

// AvailabilityHandler serves slot availability reads for the booking UI.
type AvailabilityHandler struct {
	coordinator     *availability.Coordinator
	defaultDebounce time.Duration
	logger          *logging.Logger
}

// NewAvailabilityHandler creates an availability handler.
func NewAvailabilityHandler(coordinator *availability.Coordinator, defaultDebounce time.Duration, logger *logging.Logger) *AvailabilityHandler {
	if coordinator == nil {
		panic("handlers: availability coordinator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{
		coordinator:     coordinator,
		defaultDebounce: defaultDebounce,
		logger:          logger,
	}
}

type availabilityResponse struct {
	AvailableSlots any `json:"availableSlots"`
}

// GetAvailability handles GET /api/v1/availability.
// Query params: clinicId, date (YYYY-MM-DD), dentistId?, duration?,
// debounceMs? (0 disables the debounce window for this call).
//
// Degraded reads (backend down, stale fallback) still answer 200 with a
// slot list; only configuration errors surface as failures, since their fix
// is administrative.
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	query := availability.Query{
		ClinicID:  r.URL.Query().Get("clinicId"),
		Date:      r.URL.Query().Get("date"),
		DentistID: r.URL.Query().Get("dentistId"),
	}
	if d := r.URL.Query().Get("duration"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 {
			query.Duration = v
		}
	}

	debounce := h.defaultDebounce
	if ms := r.URL.Query().Get("debounceMs"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v >= 0 {
			debounce = time.Duration(v) * time.Millisecond
		}
	}

	slots, err := h.coordinator.RequestSlots(r.Context(), query, debounce)
	if err != nil {
		writeClassifiedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{AvailableSlots: slots})
}
