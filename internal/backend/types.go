package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TimeSlot is one bookable (or taken) slot for a clinic day.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	DentistID string `json:"dentistId,omitempty"`
	IsPeak    bool   `json:"isPeak"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// Appointment is the backend-owned booking entity. The client never holds
// authoritative state for it.
type Appointment struct {
	ID          string `json:"id"`
	PatientID   string `json:"patientId"`
	ClinicID    string `json:"clinicId"`
	DentistID   string `json:"dentistId,omitempty"`
	Date        string `json:"date"`
	TimeSlot    string `json:"timeSlot"`
	Duration    int    `json:"duration,omitempty"`
	ServiceType string `json:"serviceType,omitempty"`
	Status      string `json:"status,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// SlotQuery identifies one availability lookup.
type SlotQuery struct {
	ClinicID  string
	Date      string // YYYY-MM-DD
	DentistID string // empty means any dentist
	Duration  int    // minutes, 0 means backend default
}

// ConflictQuery identifies one point-in-time conflict check.
type ConflictQuery struct {
	Date                 string // YYYY-MM-DD
	TimeSlot             string // HH:MM
	ClinicID             string
	DentistID            string
	ExcludeAppointmentID string
}

// AppointmentRequest is the payload for creating a booking.
type AppointmentRequest struct {
	PatientID   string `json:"patientId"`
	ClinicID    string `json:"clinicId"`
	DentistID   string `json:"dentistId,omitempty"`
	Date        string `json:"date"`
	TimeSlot    string `json:"timeSlot"`
	Duration    int    `json:"duration,omitempty"`
	ServiceType string `json:"serviceType,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Emergency   bool   `json:"emergency,omitempty"`
}

// AutoBookRequest asks the backend to pick and book the next open slot.
// Slot selection stays server-side so concurrent clients cannot race on a
// client-picked "first" slot.
type AutoBookRequest struct {
	ClinicID    string `json:"clinicId"`
	ServiceType string `json:"serviceType"`
	Date        string `json:"date"`
	Duration    int    `json:"duration,omitempty"`
	PatientID   string `json:"patientId"`
	Notes       string `json:"notes,omitempty"`
	Emergency   bool   `json:"emergency,omitempty"`
}

// AutoBookResult is the backend's auto-book outcome.
type AutoBookResult struct {
	Appointment *Appointment `json:"appointment"`
	BookedSlot  *TimeSlot    `json:"bookedSlot"`
}

// rawSlot decodes a slot with optional fields kept as pointers so defaults
// can be applied in exactly one place.
type rawSlot struct {
	Time      string `json:"time"`
	Available *bool  `json:"available"`
	DentistID string `json:"dentistId"`
	IsPeak    *bool  `json:"isPeak"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type slotEnvelope struct {
	Data *struct {
		AvailableSlots []rawSlot `json:"availableSlots"`
		Message        string    `json:"message"`
	} `json:"data"`
	AvailableSlots []rawSlot `json:"availableSlots"`
	Message        string    `json:"message"`
}

// parseSlotsResponse normalizes the three payload shapes the backend has
// shipped over time: {data:{availableSlots}}, {availableSlots}, and a bare
// array. A message naming missing providers is classified as a
// configuration error rather than an empty day.
func parseSlotsResponse(body []byte) ([]TimeSlot, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return []TimeSlot{}, nil
	}

	var raw []rawSlot
	var message string
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode slot array: %w", err)
		}
	} else {
		var env slotEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode slot envelope: %w", err)
		}
		switch {
		case env.Data != nil:
			raw = env.Data.AvailableSlots
			message = env.Data.Message
		default:
			raw = env.AvailableSlots
			message = env.Message
		}
		if message == "" {
			message = env.Message
		}
	}

	if len(raw) == 0 && providerMissing(message) {
		return nil, &Error{
			Kind:    KindConfiguration,
			Op:      "available-slots",
			Message: message,
		}
	}

	slots := make([]TimeSlot, 0, len(raw))
	for _, r := range raw {
		slots = append(slots, normalizeSlot(r))
	}
	return slots, nil
}

func normalizeSlot(r rawSlot) TimeSlot {
	s := TimeSlot{
		Time:      r.Time,
		Available: true,
		DentistID: r.DentistID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
	}
	if r.Available != nil {
		s.Available = *r.Available
	}
	if r.IsPeak != nil {
		s.IsPeak = *r.IsPeak
	}
	return s
}

// providerMissing detects backend messages that mean "this clinic has no
// dentist assigned", which is an administrative problem, not a full day.
func providerMissing(message string) bool {
	if message == "" {
		return false
	}
	m := strings.ToLower(message)
	if !strings.Contains(m, "no ") && !strings.Contains(m, "not ") {
		return false
	}
	for _, marker := range []string{"dentist", "provider", "practitioner"} {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}
