package booking

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dentaflow/clinic-platform/internal/backend"
	"github.com/dentaflow/clinic-platform/pkg/logging"
)

// ConflictChecker is the backend operation the guard delegates to.
type ConflictChecker interface {
	CheckConflict(ctx context.Context, q backend.ConflictQuery) (bool, error)
}

// Guard confirms a specific slot is still free immediately before booking.
//
// The check is a point-in-time read: a race window remains until the
// booking write commits, and the backend stays the final authority. The
// guard fails fast for the common case and never converts a failed check
// into "no conflict": a booking must not proceed past a check it could not
// actually perform.
type Guard struct {
	checker ConflictChecker
	logger  *logging.Logger
}

// NewGuard constructs a conflict guard.
func NewGuard(checker ConflictChecker, logger *logging.Logger) *Guard {
	if checker == nil {
		panic("booking: conflict checker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{checker: checker, logger: logger}
}

// Check reports whether booking the given slot would conflict. Malformed
// date/timeSlot input fails locally before any network call. Timeouts and
// permission failures propagate unchanged.
func (g *Guard) Check(ctx context.Context, q backend.ConflictQuery) (bool, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.check_conflict")
	defer span.End()
	span.SetAttributes(
		attribute.String("dentaflow.clinic_id", q.ClinicID),
		attribute.String("dentaflow.date", q.Date),
		attribute.String("dentaflow.time_slot", q.TimeSlot),
	)

	hasConflict, err := g.checker.CheckConflict(ctx, q)
	if err != nil {
		span.RecordError(err)
		g.logger.Warn("conflict check failed",
			"clinic_id", q.ClinicID,
			"date", q.Date,
			"time_slot", q.TimeSlot,
			"error", err,
		)
		return false, err
	}
	if hasConflict {
		g.logger.Info("conflict detected",
			"clinic_id", q.ClinicID,
			"date", q.Date,
			"time_slot", q.TimeSlot,
		)
	}
	return hasConflict, nil
}
