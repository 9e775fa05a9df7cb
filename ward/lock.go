/*
lock.go - Lead-time lock windows

PURPOSE:
  Clinical scheduling requires a minimum lead time for drug procurement:
  inside the trailing window before a date, only administrators may
  create, modify, or delete bookings on it. The window length differs by
  booking category and is administrator-configurable at runtime.

SEMANTICS:
  A date is locked when its calendar-day distance from "today" is
  strictly below the configured lock days for the category, or when it is
  strictly in the past (past dates are always locked for
  non-administrators, even with lock days set to zero). Distance is
  computed on normalized calendar dates with ceiling rounding, never on
  wall-clock durations, so midnight and DST cannot produce off-by-one
  results.

EXAMPLE (lock days = 21, today = 2026-05-01):
  2026-05-21 -> locked   (20 days out)
  2026-05-22 -> open     (21 days out)
  2026-04-30 -> locked   (past)
*/
package ward

// MaxLockDays bounds the configurable window.
const MaxLockDays = 90

// LockConfig holds the per-category lock-day counts. Process-wide,
// mutable only through the engine's administrator-only SetLockDays.
type LockConfig struct {
	InpatientDays  int
	OutpatientDays int
}

// DefaultLockConfig mirrors the reference deployment: 21 days of lead
// time for admissions, none for low-dose outpatient visits.
func DefaultLockConfig() LockConfig {
	return LockConfig{InpatientDays: 21, OutpatientDays: 0}
}

// Days returns the lock-day count for the category.
func (lc LockConfig) Days(category Category) int {
	if category == CategoryOutpatient {
		return lc.OutpatientDays
	}
	return lc.InpatientDays
}

// Validate rejects counts outside [0, MaxLockDays].
func (lc LockConfig) Validate() error {
	for _, n := range []int{lc.InpatientDays, lc.OutpatientDays} {
		if n < 0 || n > MaxLockDays {
			return &InvalidInputError{Field: "lock_days", Message: "must be between 0 and 90"}
		}
	}
	return nil
}

// Locked reports whether the date falls inside the lock window for the
// category, as seen from today. Past dates are always locked.
func (lc LockConfig) Locked(today, date Date, category Category) bool {
	distance := today.DaysUntil(date)
	if distance < 0 {
		return true
	}
	return distance < lc.Days(category)
}

// LockError builds the structured rejection for a locked date.
func (lc LockConfig) LockError(today, date Date, category Category) *LockedWindowError {
	return &LockedWindowError{
		Date:     date,
		Category: category,
		LockDays: lc.Days(category),
		Distance: today.DaysUntil(date),
	}
}
