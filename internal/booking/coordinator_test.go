package booking

import (
	"context"
	"sync"
	"testing"

	"github.com/dentaflow/clinic-platform/internal/backend"
)

type fakeBackend struct {
	mu sync.Mutex

	conflictResult bool
	conflictErr    error
	conflictCalls  int

	createResult *backend.Appointment
	createErr    error
	createCalls  int

	autoBookResult *backend.AutoBookResult
	autoBookErr    error
	autoBookCalls  int
}

func (f *fakeBackend) CheckConflict(_ context.Context, _ backend.ConflictQuery) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflictCalls++
	return f.conflictResult, f.conflictErr
}

func (f *fakeBackend) CreateAppointment(_ context.Context, _ backend.AppointmentRequest) (*backend.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.createResult, f.createErr
}

func (f *fakeBackend) AutoBook(_ context.Context, _ backend.AutoBookRequest) (*backend.AutoBookResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoBookCalls++
	return f.autoBookResult, f.autoBookErr
}

type fakeInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, date, clinicID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, date+"/"+clinicID)
}

func newTestCoordinator(fb *fakeBackend, inv *fakeInvalidator) *Coordinator {
	return NewCoordinator(fb, NewGuard(fb, nil), inv, nil, nil)
}

func validRequest() backend.AppointmentRequest {
	return backend.AppointmentRequest{
		PatientID: "p1",
		ClinicID:  "c1",
		Date:      "2025-03-10",
		TimeSlot:  "09:00",
	}
}

func TestCreateAppointmentCommitsAndInvalidates(t *testing.T) {
	fb := &fakeBackend{createResult: &backend.Appointment{ID: "appt-1", ClinicID: "c1", Date: "2025-03-10"}}
	inv := &fakeInvalidator{}
	coord := newTestCoordinator(fb, inv)

	result, err := coord.CreateAppointment(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if result.State != StateCommitted {
		t.Fatalf("expected committed, got %s", result.State)
	}
	if result.Appointment == nil || result.Appointment.ID != "appt-1" {
		t.Fatalf("unexpected appointment: %+v", result.Appointment)
	}
	if fb.conflictCalls != 1 || fb.createCalls != 1 {
		t.Fatalf("expected 1 check + 1 create, got %d/%d", fb.conflictCalls, fb.createCalls)
	}
	if len(inv.calls) != 1 || inv.calls[0] != "2025-03-10/c1" {
		t.Fatalf("expected cache invalidation for the booked day, got %v", inv.calls)
	}
}

func TestCreateAppointmentRejectedOnConflict(t *testing.T) {
	fb := &fakeBackend{conflictResult: true}
	inv := &fakeInvalidator{}
	coord := newTestCoordinator(fb, inv)

	result, err := coord.CreateAppointment(context.Background(), validRequest())
	if !backend.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if result.State != StateRejected {
		t.Fatalf("expected rejected, got %s", result.State)
	}
	if fb.createCalls != 0 {
		t.Fatalf("expected no submission after a detected conflict, got %d", fb.createCalls)
	}
	if len(inv.calls) != 0 {
		t.Fatalf("expected no invalidation on rejection, got %v", inv.calls)
	}
}

func TestCreateAppointmentFailedCheckAborts(t *testing.T) {
	fb := &fakeBackend{conflictErr: &backend.Error{Kind: backend.KindTimeout, Op: "check-conflict", Message: "request timed out"}}
	inv := &fakeInvalidator{}
	coord := newTestCoordinator(fb, inv)

	result, err := coord.CreateAppointment(context.Background(), validRequest())
	if err == nil {
		t.Fatalf("expected error when the conflict check itself failed")
	}
	if result.State != StateFailed {
		t.Fatalf("expected failed, got %s", result.State)
	}
	if fb.createCalls != 0 {
		t.Fatalf("a booking must never proceed past a check it could not perform, got %d submissions", fb.createCalls)
	}
}

func TestCreateAppointmentValidation(t *testing.T) {
	fb := &fakeBackend{}
	coord := newTestCoordinator(fb, &fakeInvalidator{})

	bad := []backend.AppointmentRequest{
		{ClinicID: "c1", Date: "2025-03-10", TimeSlot: "09:00"},
		{PatientID: "p1", Date: "2025-03-10", TimeSlot: "09:00"},
		{PatientID: "p1", ClinicID: "c1", Date: "10.03.2025", TimeSlot: "09:00"},
		{PatientID: "p1", ClinicID: "c1", Date: "2025-03-10", TimeSlot: "9am"},
	}
	for _, req := range bad {
		result, err := coord.CreateAppointment(context.Background(), req)
		if !backend.IsValidation(err) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
		if result.State != StateFailed {
			t.Fatalf("expected failed state, got %s", result.State)
		}
	}
	if fb.conflictCalls != 0 || fb.createCalls != 0 {
		t.Fatalf("expected no backend traffic for invalid requests, got %d/%d", fb.conflictCalls, fb.createCalls)
	}
}

func TestCreateAppointmentSubmitFailure(t *testing.T) {
	fb := &fakeBackend{createErr: &backend.Error{Kind: backend.KindUnavailable, Op: "create-appointment", Message: "appointment service unavailable"}}
	inv := &fakeInvalidator{}
	coord := newTestCoordinator(fb, inv)

	result, err := coord.CreateAppointment(context.Background(), validRequest())
	if !backend.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if result.State != StateFailed {
		t.Fatalf("expected failed, got %s", result.State)
	}
	if len(inv.calls) != 0 {
		t.Fatalf("expected no invalidation on failure, got %v", inv.calls)
	}
}

func TestAutoBookSuccess(t *testing.T) {
	fb := &fakeBackend{autoBookResult: &backend.AutoBookResult{
		Appointment: &backend.Appointment{ID: "appt-2", ClinicID: "c1", Date: "2025-03-10", TimeSlot: "11:00"},
		BookedSlot:  &backend.TimeSlot{Time: "11:00"},
	}}
	inv := &fakeInvalidator{}
	coord := newTestCoordinator(fb, inv)

	outcome := coord.AutoBookFirstAvailable(context.Background(), backend.AutoBookRequest{
		ClinicID: "c1", ServiceType: "cleaning", Date: "2025-03-10", PatientID: "p1",
	})
	if !outcome.Success {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Appointment == nil || outcome.Appointment.ID != "appt-2" {
		t.Fatalf("unexpected appointment: %+v", outcome.Appointment)
	}
	if outcome.Message != "Appointment booked for 2025-03-10 at 11:00" {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if len(inv.calls) != 1 {
		t.Fatalf("expected invalidation after auto-book, got %v", inv.calls)
	}
}

func TestAutoBookFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"configuration",
			&backend.Error{Kind: backend.KindConfiguration, Op: "auto-book", Message: "no dentists"},
			"No dentists are assigned to this clinic yet. Please contact the clinic administrator.",
		},
		{
			"conflict",
			&backend.Error{Kind: backend.KindConflict, Op: "auto-book", Message: "taken"},
			"That time was just taken. Please choose another slot.",
		},
		{
			"unavailable",
			&backend.Error{Kind: backend.KindUnavailable, Op: "auto-book", Message: "down"},
			"The booking service is currently unreachable. Please try again shortly.",
		},
		{
			"timeout",
			&backend.Error{Kind: backend.KindTimeout, Op: "auto-book", Message: "request timed out"},
			"Connection problem while booking. The appointment was not created, please retry.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{autoBookErr: tt.err}
			inv := &fakeInvalidator{}
			coord := newTestCoordinator(fb, inv)

			outcome := coord.AutoBookFirstAvailable(context.Background(), backend.AutoBookRequest{
				ClinicID: "c1", ServiceType: "cleaning", Date: "2025-03-10", PatientID: "p1",
			})
			if outcome.Success {
				t.Fatalf("expected failure outcome")
			}
			if outcome.Message != tt.want {
				t.Fatalf("message = %q, want %q", outcome.Message, tt.want)
			}
			if len(inv.calls) != 0 {
				t.Fatalf("expected no invalidation on failure, got %v", inv.calls)
			}
		})
	}
}

func TestAutoBookValidation(t *testing.T) {
	fb := &fakeBackend{}
	coord := newTestCoordinator(fb, &fakeInvalidator{})

	outcome := coord.AutoBookFirstAvailable(context.Background(), backend.AutoBookRequest{
		ClinicID: "c1", Date: "bad-date", PatientID: "p1",
	})
	if outcome.Success {
		t.Fatalf("expected failure for invalid request")
	}
	if fb.autoBookCalls != 0 {
		t.Fatalf("expected no backend call for invalid request, got %d", fb.autoBookCalls)
	}
}

func TestInvalidateDay(t *testing.T) {
	inv := &fakeInvalidator{}
	coord := newTestCoordinator(&fakeBackend{}, inv)

	coord.InvalidateDay(context.Background(), "2025-03-12", "c9")
	if len(inv.calls) != 1 || inv.calls[0] != "2025-03-12/c9" {
		t.Fatalf("unexpected invalidations %v", inv.calls)
	}
}
