package availability

import (
	"fmt"
	"strings"
)

// AnyDentist is the fingerprint placeholder when no dentist is requested.
const AnyDentist = "any"

// Fingerprint is the derived identity of one slot query. Two requests with
// the same fingerprint are the same logical query regardless of call order.
type Fingerprint struct {
	Date      string
	DentistID string
	ClinicID  string
	Duration  int
}

// NewFingerprint builds the canonical fingerprint for a query, mapping an
// absent dentist to AnyDentist so "unset" and "any" collide.
func NewFingerprint(date, clinicID, dentistID string, duration int) Fingerprint {
	dentistID = strings.TrimSpace(dentistID)
	if dentistID == "" {
		dentistID = AnyDentist
	}
	return Fingerprint{
		Date:      strings.TrimSpace(date),
		DentistID: dentistID,
		ClinicID:  strings.TrimSpace(clinicID),
		Duration:  duration,
	}
}

// Key renders the cache/dedup key for this fingerprint.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("slots:%s:%s:%s:%d", f.Date, f.ClinicID, f.DentistID, f.Duration)
}
