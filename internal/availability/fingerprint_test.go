package availability

import "testing"

func TestFingerprintKey(t *testing.T) {
	fp := NewFingerprint("2025-03-10", "c1", "d1", 30)
	if got, want := fp.Key(), "slots:2025-03-10:c1:d1:30"; got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestFingerprintEmptyDentistIsAny(t *testing.T) {
	a := NewFingerprint("2025-03-10", "c1", "", 30)
	b := NewFingerprint("2025-03-10", "c1", AnyDentist, 30)
	if a != b {
		t.Fatalf("expected %v and %v to be equal", a, b)
	}
}
