/*
authz.go - Authorization gate

PURPOSE:
  The single decision point for who may do what. Role-based branching
  must not be duplicated at call sites: the UI asks the same predicates
  the engine enforces, so there is exactly one copy of each rule.

ROLE MATRIX:
  Administrator:  everything, including locked and past records — the
                  escalation path for exceptions.
  Pharmacist:     read-only access to scheduling; may toggle medication
                  orders (a separate, narrower permission).
  Standard user:  may mutate a booking iff its date is not in the past,
                  its category's lock window is not active, and the user
                  is the recorded owner.

EVALUATION ORDER:
  Past and lock denials are evaluated before ownership so the caller can
  surface the clearer "locked" message first; the net boolean result is
  the conjunction of all three regardless of order.
*/
package ward

// CanModify decides whether the actor may create, modify, delete, or
// relocate the booking. A nil result means allowed; otherwise the error
// unwraps to ErrForbidden or ErrLockedWindow with the denial reason.
func CanModify(actor Actor, booking Booking, today Date, lock LockConfig) error {
	if !actor.IsActive {
		return &ForbiddenError{Reason: "inactive"}
	}
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == RolePharmacist {
		return &ForbiddenError{Reason: "read_only_role"}
	}
	if booking.Date.Before(today) {
		return &ForbiddenError{Reason: "past_date"}
	}
	if lock.Locked(today, booking.Date, booking.Category) {
		return lock.LockError(today, booking.Date, booking.Category)
	}
	if booking.CreatedBy != actor.Username {
		return &ForbiddenError{Reason: "not_owner"}
	}
	return nil
}

// CanToggleOverride decides whether the actor may change day overrides,
// lock configuration, or the holiday set. Administrator-only.
func CanToggleOverride(actor Actor) error {
	if !actor.IsActive {
		return &ForbiddenError{Reason: "inactive"}
	}
	if !actor.IsAdmin() {
		return &ForbiddenError{Reason: "admin_only"}
	}
	return nil
}

// CanOrderMedication decides whether the actor may toggle the
// medication-ordered flag. Administrators and the pharmacist role only;
// this is deliberately narrower than CanModify and does not grant any
// scheduling mutation.
func CanOrderMedication(actor Actor) error {
	if !actor.IsActive {
		return &ForbiddenError{Reason: "inactive"}
	}
	if actor.IsAdmin() || actor.Role == RolePharmacist {
		return nil
	}
	return &ForbiddenError{Reason: "medication_role_required"}
}
