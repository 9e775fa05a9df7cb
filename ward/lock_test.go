package ward

import "testing"

func TestLockConfig_Window(t *testing.T) {
	lock := DefaultLockConfig() // 21 inpatient days
	today := mustDate(t, "2026-05-01")

	cases := []struct {
		date   string
		locked bool
	}{
		{"2026-05-01", true},  // today, 0 days out
		{"2026-05-21", true},  // 20 days out, inside window
		{"2026-05-22", false}, // 21 days out, exactly at the boundary
		{"2026-06-30", false}, // far out
		{"2026-04-30", true},  // past
		{"2025-12-31", true},  // distant past
	}
	for _, tc := range cases {
		// GIVEN today = 2026-05-01 and 21 lock days
		// WHEN checking the candidate date
		got := lock.Locked(today, mustDate(t, tc.date), CategoryInpatient)

		// THEN dates under 21 days out (and all past dates) are locked
		if got != tc.locked {
			t.Errorf("Locked(%s) = %t, want %t", tc.date, got, tc.locked)
		}
	}
}

func TestLockConfig_OutpatientZeroDays(t *testing.T) {
	lock := DefaultLockConfig()
	today := mustDate(t, "2026-05-01")

	// GIVEN zero outpatient lock days
	// THEN today is bookable but yesterday is not
	if lock.Locked(today, today, CategoryOutpatient) {
		t.Error("expected today open for outpatient with zero lock days")
	}
	if !lock.Locked(today, mustDate(t, "2026-04-30"), CategoryOutpatient) {
		t.Error("expected past date locked even with zero lock days")
	}
}

func TestLockConfig_Validate(t *testing.T) {
	if err := (LockConfig{InpatientDays: 0, OutpatientDays: 90}).Validate(); err != nil {
		t.Errorf("expected bounds to be inclusive, got %v", err)
	}
	if err := (LockConfig{InpatientDays: 91}).Validate(); err == nil {
		t.Error("expected rejection above 90 days")
	}
	if err := (LockConfig{OutpatientDays: -1}).Validate(); err == nil {
		t.Error("expected rejection of negative days")
	}
}

func TestLockConfig_LockError(t *testing.T) {
	lock := DefaultLockConfig()
	today := mustDate(t, "2026-05-01")

	err := lock.LockError(today, mustDate(t, "2026-05-10"), CategoryInpatient)
	if err.LockDays != 21 {
		t.Errorf("LockDays = %d, want 21", err.LockDays)
	}
	if err.Distance != 9 {
		t.Errorf("Distance = %d, want 9", err.Distance)
	}
	if !IsClientError(err) {
		t.Error("expected lock error classified as client error")
	}
}
