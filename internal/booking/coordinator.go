// Package booking orchestrates appointment creation against the clinic
// backend: conflict-guarded manual booking and backend-assigned auto-booking,
// with availability-cache invalidation on every successful write.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dentaflow/clinic-platform/internal/backend"
	"github.com/dentaflow/clinic-platform/internal/observability/metrics"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("dentaflow.internal.booking")

// AttemptState tracks one booking attempt through its lifecycle.
type AttemptState string

const (
	StateIdle             AttemptState = "idle"
	StateValidating       AttemptState = "validating"
	StateConflictChecking AttemptState = "conflict_checking"
	StateSubmitting       AttemptState = "submitting"
	// StateCommitted is the success terminal: the backend confirmed the
	// appointment.
	StateCommitted AttemptState = "committed"
	// StateRejected is terminal for this attempt: the slot is taken and the
	// user must pick a different one.
	StateRejected AttemptState = "rejected"
	// StateFailed is terminal for network/server errors; retrying the same
	// slot is reasonable.
	StateFailed AttemptState = "failed"
)

// BookingAPI is the backend write surface the coordinator drives.
type BookingAPI interface {
	CreateAppointment(ctx context.Context, req backend.AppointmentRequest) (*backend.Appointment, error)
	AutoBook(ctx context.Context, req backend.AutoBookRequest) (*backend.AutoBookResult, error)
}

// CacheInvalidator drops cached availability for a clinic day after a
// booking mutation. Implemented by the availability coordinator.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, date, clinicID string)
}

// Result is the outcome of a manual booking attempt.
type Result struct {
	State       AttemptState         `json:"state"`
	Appointment *backend.Appointment `json:"appointment,omitempty"`
}

// AutoBookOutcome is the structured result of an auto-book attempt. It is
// never an error: auto-booking is a best-effort UI path that must stay
// responsive.
type AutoBookOutcome struct {
	Success     bool                 `json:"success"`
	Appointment *backend.Appointment `json:"appointment,omitempty"`
	BookedSlot  *backend.TimeSlot    `json:"bookedSlot,omitempty"`
	Message     string               `json:"message"`
}

// Coordinator drives booking attempts end to end.
type Coordinator struct {
	api         BookingAPI
	guard       *Guard
	invalidator CacheInvalidator
	metrics     *metrics.SchedulingMetrics
	logger      *logging.Logger
}

// NewCoordinator constructs a booking coordinator. api, guard and
// invalidator are required; metrics may be nil.
func NewCoordinator(api BookingAPI, guard *Guard, invalidator CacheInvalidator, m *metrics.SchedulingMetrics, logger *logging.Logger) *Coordinator {
	if api == nil {
		panic("booking: backend api required")
	}
	if guard == nil {
		panic("booking: conflict guard required")
	}
	if invalidator == nil {
		panic("booking: cache invalidator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		api:         api,
		guard:       guard,
		invalidator: invalidator,
		metrics:     m,
		logger:      logger,
	}
}

// CreateAppointment runs one guarded booking attempt:
// Validating -> ConflictChecking -> Submitting -> Committed|Rejected|Failed.
// Rejected means the slot is taken (pick another); Failed means the attempt
// itself broke (retrying is sensible). Success invalidates cached
// availability for the booked clinic day.
func (c *Coordinator) CreateAppointment(ctx context.Context, req backend.AppointmentRequest) (*Result, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create_appointment")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentaflow.clinic_id", req.ClinicID),
		attribute.String("dentaflow.date", req.Date),
	)

	if err := validateAppointmentRequest(req); err != nil {
		return c.finish(span, StateFailed, nil, err)
	}

	hasConflict, err := c.guard.Check(ctx, backend.ConflictQuery{
		Date:      req.Date,
		TimeSlot:  req.TimeSlot,
		ClinicID:  req.ClinicID,
		DentistID: req.DentistID,
	})
	if err != nil {
		// A check we could not perform must abort the attempt; assuming
		// "no conflict" here risks a double booking.
		return c.finish(span, StateFailed, nil, fmt.Errorf("booking: conflict check: %w", err))
	}
	if hasConflict {
		return c.finish(span, StateRejected, nil, &backend.Error{
			Kind:    backend.KindConflict,
			Op:      "create-appointment",
			Message: "the selected slot is no longer available",
		})
	}

	appt, err := c.api.CreateAppointment(ctx, req)
	if err != nil {
		return c.finish(span, StateFailed, nil, err)
	}

	c.invalidator.Invalidate(ctx, req.Date, req.ClinicID)
	c.logger.Info("appointment committed",
		"appointment_id", appt.ID,
		"clinic_id", req.ClinicID,
		"date", req.Date,
		"time_slot", req.TimeSlot,
	)
	return c.finish(span, StateCommitted, appt, nil)
}

// AutoBookFirstAvailable asks the backend to assign and book the next open
// slot. Slot selection stays server-side so this client never races other
// clients on a locally chosen slot. Failures come back as a structured
// outcome with an actionable message, not an error.
func (c *Coordinator) AutoBookFirstAvailable(ctx context.Context, req backend.AutoBookRequest) *AutoBookOutcome {
	ctx, span := bookingTracer.Start(ctx, "booking.auto_book")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentaflow.clinic_id", req.ClinicID),
		attribute.String("dentaflow.date", req.Date),
	)

	if err := validateAutoBookRequest(req); err != nil {
		c.metrics.ObserveBooking("auto_book", string(StateFailed))
		return &AutoBookOutcome{Success: false, Message: userMessage(err)}
	}

	result, err := c.api.AutoBook(ctx, req)
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveBooking("auto_book", string(StateFailed))
		c.logger.Warn("auto-book failed",
			"clinic_id", req.ClinicID,
			"date", req.Date,
			"error", err,
		)
		return &AutoBookOutcome{Success: false, Message: userMessage(err)}
	}

	c.invalidator.Invalidate(ctx, req.Date, req.ClinicID)
	c.metrics.ObserveBooking("auto_book", string(StateCommitted))
	c.logger.Info("auto-book committed",
		"appointment_id", result.Appointment.ID,
		"clinic_id", req.ClinicID,
		"date", req.Date,
	)

	message := "Appointment booked"
	if result.BookedSlot != nil && result.BookedSlot.Time != "" {
		message = fmt.Sprintf("Appointment booked for %s at %s", req.Date, result.BookedSlot.Time)
	}
	return &AutoBookOutcome{
		Success:     true,
		Appointment: result.Appointment,
		BookedSlot:  result.BookedSlot,
		Message:     message,
	}
}

// InvalidateDay drops cached availability for a clinic day. Reschedule and
// cancel flows owned by the UI layer call this after mutating an
// appointment.
func (c *Coordinator) InvalidateDay(ctx context.Context, date, clinicID string) {
	c.invalidator.Invalidate(ctx, date, clinicID)
}

func (c *Coordinator) finish(span trace.Span, state AttemptState, appt *backend.Appointment, err error) (*Result, error) {
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("dentaflow.attempt_state", string(state)))
	c.metrics.ObserveBooking("create", string(state))
	return &Result{State: state, Appointment: appt}, err
}

func validateAppointmentRequest(req backend.AppointmentRequest) error {
	if strings.TrimSpace(req.PatientID) == "" {
		return validationError("create-appointment", "patientId is required")
	}
	if strings.TrimSpace(req.ClinicID) == "" {
		return validationError("create-appointment", "clinicId is required")
	}
	if !validDate(req.Date) {
		return validationError("create-appointment", fmt.Sprintf("date %q is not YYYY-MM-DD", req.Date))
	}
	if !validTimeSlot(req.TimeSlot) {
		return validationError("create-appointment", fmt.Sprintf("timeSlot %q is not HH:MM", req.TimeSlot))
	}
	return nil
}

func validateAutoBookRequest(req backend.AutoBookRequest) error {
	if strings.TrimSpace(req.PatientID) == "" {
		return validationError("auto-book", "patientId is required")
	}
	if strings.TrimSpace(req.ClinicID) == "" {
		return validationError("auto-book", "clinicId is required")
	}
	if !validDate(req.Date) {
		return validationError("auto-book", fmt.Sprintf("date %q is not YYYY-MM-DD", req.Date))
	}
	return nil
}

func validationError(op, message string) error {
	return &backend.Error{Kind: backend.KindValidation, Op: op, Message: message}
}

func validDate(date string) bool {
	if len(date) != 10 {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

func validTimeSlot(slot string) bool {
	if len(slot) != 5 {
		return false
	}
	_, err := time.Parse("15:04", slot)
	return err == nil
}

// userMessage maps a classified failure to the specific, actionable message
// shown to the patient or front desk.
func userMessage(err error) string {
	switch backend.KindOf(err) {
	case backend.KindConfiguration:
		return "No dentists are assigned to this clinic yet. Please contact the clinic administrator."
	case backend.KindConflict:
		return "That time was just taken. Please choose another slot."
	case backend.KindUnavailable:
		return "The booking service is currently unreachable. Please try again shortly."
	case backend.KindTimeout, backend.KindTransient:
		return "Connection problem while booking. The appointment was not created, please retry."
	case backend.KindAuth:
		return "Your session has expired. Please sign in again."
	case backend.KindValidation:
		var be *backend.Error
		if errors.As(err, &be) && be.Message != "" {
			return be.Message
		}
		return "The booking request is incomplete."
	}
	return "Something went wrong while booking. Please try again."
}
