/*
errors.go - Centralized error taxonomy for the ward engine

PURPOSE:
  All rejection kinds in one place for consistency and discoverability.
  Every engine operation returns one of these as a discriminated result;
  nothing is thrown across the engine boundary and every rejection is
  side-effect-free.

ERROR CATEGORIES:
  1. Slot errors      - Structural closure or double-assignment
  2. Policy errors    - Dose ceiling, lock window
  3. Authorization    - Role/ownership/lock denials
  4. Input errors     - Missing fields, malformed dates

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, ward.ErrSlotTaken) {
        // surface "bed already booked" and leave state untouched
    }

SEE ALSO:
  - engine.go: The operations returning these errors
  - api/handlers.go: Maps these onto HTTP status codes
*/
package ward

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrSlotClosed is returned when the target (date, bed) pair is not
	// structurally open: weekday rule, holiday, or administrative override.
	ErrSlotClosed = errors.New("slot closed")

	// ErrSlotTaken is returned when the target slot already holds an
	// inpatient booking. This enforces the one-booking-per-slot invariant.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrDoseExceedsLimit is returned when an outpatient dose is at or
	// above the outpatient ceiling.
	ErrDoseExceedsLimit = errors.New("dose exceeds outpatient limit")

	// ErrLockedWindow is returned when the target date is inside the
	// lead-time lock window (or in the past) and the actor is not an
	// administrator.
	ErrLockedWindow = errors.New("date inside lock window")

	// ErrNotFound is returned when a referenced booking doesn't exist.
	ErrNotFound = errors.New("booking not found")

	// ErrForbidden is returned when the actor may not perform the
	// operation on the target booking.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidInput is returned for missing required fields or
	// malformed values.
	ErrInvalidInput = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SlotTakenError reports which booking occupies the contested slot.
type SlotTakenError struct {
	Date       Date
	Bed        Bed
	ExistingID BookingID
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("slot %s %s already booked (booking %d)", e.Date, e.Bed, e.ExistingID)
}

func (e *SlotTakenError) Unwrap() error { return ErrSlotTaken }

// LockedWindowError reports how far inside the lock window the date falls.
type LockedWindowError struct {
	Date     Date
	Category Category
	LockDays int
	Distance int // calendar days from today; negative for past dates
}

func (e *LockedWindowError) Error() string {
	if e.Distance < 0 {
		return fmt.Sprintf("date %s is in the past", e.Date)
	}
	return fmt.Sprintf("date %s is %d days out, %s bookings require %d days lead time",
		e.Date, e.Distance, e.Category, e.LockDays)
}

func (e *LockedWindowError) Unwrap() error { return ErrLockedWindow }

// ForbiddenError explains which gate denied the operation. Past/locked
// denials are reported before ownership so the caller can surface the
// clearer message first; the net result is the conjunction of all checks.
type ForbiddenError struct {
	Reason string // "inactive", "read_only_role", "past_date", "locked_window", "not_owner", "admin_only"
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Message)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a recoverable rejection the
// caller should surface to the user.
func IsClientError(err error) bool {
	return errors.Is(err, ErrSlotClosed) ||
		errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrDoseExceedsLimit) ||
		errors.Is(err, ErrLockedWindow) ||
		errors.Is(err, ErrInvalidInput)
}

// IsNotFound returns true if the error indicates a missing booking.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden returns true if the error is an authorization denial.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }
