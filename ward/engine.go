/*
engine.go - Booking transaction engine

PURPOSE:
  Orchestrates every mutation of the schedule: create, update, delete,
  relocate, day overrides, medication orders, and lock/holiday
  configuration. Each operation is atomic — fully applied or fully
  rejected with no partial mutation — and every accepted mutation emits
  exactly one audit entry.

OPERATION FLOW:
  1. Authorize the actor (authz.go)
  2. Validate against Calendar Policy + Lock Window Policy + Schedule Index
  3. Apply the mutation to the Schedule Index
  4. Append one audit entry

  Steps 1-2 are computed fully before step 3 begins, so every rejected
  path leaves the Schedule Index and Audit Trail untouched, and
  re-evaluating a rejection with the same inputs yields the same result.

CONCURRENCY:
  The engine assumes one logical actor at a time. A single mutex
  serializes every operation end to end, so the slot-occupancy check and
  the subsequent insert can never interleave with another mutation —
  the serializable-transaction guarantee a network deployment needs.

SEE ALSO:
  - store.go: The interfaces the engine writes
  - calendar.go, lock.go, authz.go: The policies the engine consults
*/
package ward

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine owns the Schedule Index, the Day Override table, and the Lock
// Configuration. All three are mutated exclusively through its operations.
type Engine struct {
	mu sync.Mutex

	index  ScheduleIndex
	audit  AuditLog
	config ConfigStore // optional write-through durability; may be nil

	cal  *Calendar
	lock LockConfig

	// Today is injectable for deterministic tests.
	Today func() Date
}

// NewEngine creates an engine over the given index and audit log with the
// reference calendar and lock configuration.
func NewEngine(index ScheduleIndex, audit AuditLog) *Engine {
	return &Engine{
		index: index,
		audit: audit,
		cal:   NewCalendar(),
		lock:  DefaultLockConfig(),
		Today: Today,
	}
}

// WithConfigStore attaches optional durability for overrides, holidays,
// and lock configuration, and restores any persisted state.
func (e *Engine) WithConfigStore(ctx context.Context, cs ConfigStore) error {
	e.config = cs
	if cs == nil {
		return nil
	}
	if overrides, err := cs.LoadOverrides(ctx); err != nil {
		return err
	} else if overrides != nil {
		e.cal.Overrides = overrides
	}
	if holidays, err := cs.LoadHolidays(ctx); err != nil {
		return err
	} else if len(holidays) > 0 {
		e.cal.Holidays = holidays
	}
	cfg, err := cs.LoadLockConfig(ctx)
	if err != nil {
		return err
	}
	if cfg != nil {
		e.lock = *cfg
	}
	return nil
}

// Calendar returns a snapshot of the structural openness policy for
// read-only callers (the rendering layer asks the same predicates the
// engine enforces).
func (e *Engine) Calendar() *Calendar {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := *e.cal
	snap.Beds = append([]Bed(nil), e.cal.Beds...)
	snap.Holidays = e.cal.Holidays.Clone()
	snap.Overrides = e.cal.Overrides.Clone()
	return &snap
}

// LockConfig returns the current lock configuration.
func (e *Engine) LockConfig() LockConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lock
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the candidate booking fields.
type CreateInput struct {
	Date        Date
	Bed         Bed
	Category    Category
	ChartNo     string
	PatientName string
	Dose        decimal.Decimal
	Doctor      string
	MedForm     MedForm
	AdjunctPrep bool
}

func (in CreateInput) validate(cal *Calendar) error {
	if in.Date.IsZero() {
		return &InvalidInputError{Field: "date", Message: "is required"}
	}
	if !in.Category.Valid() {
		return &InvalidInputError{Field: "category", Message: "must be inpatient or outpatient"}
	}
	if in.ChartNo == "" {
		return &InvalidInputError{Field: "chart_no", Message: "is required"}
	}
	if in.PatientName == "" {
		return &InvalidInputError{Field: "patient_name", Message: "is required"}
	}
	if in.Doctor == "" {
		return &InvalidInputError{Field: "doctor", Message: "is required"}
	}
	if !in.Dose.IsPositive() {
		return &InvalidInputError{Field: "dose", Message: "must be positive"}
	}
	if in.Category.RequiresBed() && !cal.HasBed(in.Bed) {
		return &InvalidInputError{Field: "bed", Message: "is not a ward bed"}
	}
	if !in.Category.RequiresBed() && in.Bed != BedNone {
		return &InvalidInputError{Field: "bed", Message: "must be empty for outpatient bookings"}
	}
	return nil
}

// Create validates and applies a new booking.
//
// Rejection order: invalid input, slot closed, slot taken, dose ceiling,
// lock window. All checks complete before any write.
func (e *Engine) Create(ctx context.Context, in CreateInput, actor Actor) (*Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorizeWrite(actor); err != nil {
		return nil, err
	}
	if err := in.validate(e.cal); err != nil {
		return nil, err
	}
	if err := e.validateSlot(ctx, in.Date, in.Bed, in.Category, in.Dose, 0); err != nil {
		return nil, err
	}

	today := e.Today()
	if !actor.IsAdmin() && e.lock.Locked(today, in.Date, in.Category) {
		return nil, e.lock.LockError(today, in.Date, in.Category)
	}

	id, err := e.index.NextID(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	booking := Booking{
		ID:          id,
		Date:        in.Date,
		Bed:         in.Bed,
		Category:    in.Category,
		ChartNo:     strings.ToUpper(in.ChartNo),
		PatientName: in.PatientName,
		Dose:        in.Dose,
		Doctor:      in.Doctor,
		MedForm:     in.MedForm,
		AdjunctPrep: in.AdjunctPrep,
		MedOrdered:  false,
		CreatedBy:   actor.Username,
		CreatedAt:   now,
		UpdatedBy:   actor.Username,
		UpdatedAt:   now,
	}
	if booking.MedForm == "" {
		booking.MedForm = MedFormTablet
	}

	if err := e.index.Insert(ctx, booking); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("created booking: %s %s %s", booking.PatientName, booking.Bed, booking.Date)
	if booking.Category == CategoryOutpatient {
		detail = fmt.Sprintf("created outpatient booking: %s (%s mCi) %s",
			booking.PatientName, booking.Dose, booking.Date)
	}
	if err := e.appendAudit(ctx, actor, AuditCreate, "Booking", fmt.Sprint(id), detail); err != nil {
		// An unaudited mutation must not survive.
		_ = e.index.Remove(ctx, id)
		return nil, err
	}
	return &booking, nil
}

// validateSlot checks structural openness, occupancy, and the dose
// ceiling for the candidate (date, bed, category). selfID excludes a
// booking's own occupancy during update/relocate.
func (e *Engine) validateSlot(ctx context.Context, date Date, bed Bed, category Category, dose decimal.Decimal, selfID BookingID) error {
	if category.RequiresBed() {
		if !e.cal.IsBedOpen(date, bed) {
			return fmt.Errorf("%s %s: %w", date, bed, ErrSlotClosed)
		}
		occupant, err := e.index.FindByDateBed(ctx, date, bed)
		if err != nil {
			return err
		}
		if occupant != nil && occupant.ID != selfID {
			return &SlotTakenError{Date: date, Bed: bed, ExistingID: occupant.ID}
		}
		return nil
	}

	if !e.cal.IsOutpatientDay(date) {
		return fmt.Errorf("%s: outpatient visits closed: %w", date, ErrSlotClosed)
	}
	if dose.GreaterThanOrEqual(OutpatientDoseCeiling) {
		return fmt.Errorf("dose %s mCi at or above %s mCi ceiling: %w",
			dose, OutpatientDoseCeiling, ErrDoseExceedsLimit)
	}
	return nil
}

// authorizeWrite rejects actors who may never mutate the schedule.
// Per-booking checks (ownership, lock, past date) live in CanModify.
func (e *Engine) authorizeWrite(actor Actor) error {
	if !actor.IsActive {
		return &ForbiddenError{Reason: "inactive"}
	}
	if actor.Role == RolePharmacist {
		return &ForbiddenError{Reason: "read_only_role"}
	}
	return nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateInput carries the fields to merge; nil fields are left unchanged.
// Category is immutable after creation — converting between inpatient and
// outpatient is a delete plus create so both audit entries exist.
type UpdateInput struct {
	Date        *Date
	Bed         *Bed
	ChartNo     *string
	PatientName *string
	Dose        *decimal.Decimal
	Doctor      *string
	MedForm     *MedForm
	AdjunctPrep *bool
}

// Update merges fields into an existing booking. A date or bed change is
// re-validated exactly as Create at the new slot, excluding the booking's
// own current occupancy.
func (e *Engine) Update(ctx context.Context, id BookingID, in UpdateInput, actor Actor) (*Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.index.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err := CanModify(actor, *existing, e.Today(), e.lock); err != nil {
		return nil, err
	}

	updated := *existing
	var changes []string
	if in.Date != nil && !in.Date.Equal(existing.Date) {
		changes = append(changes, fmt.Sprintf("date %s→%s", existing.Date, *in.Date))
		updated.Date = *in.Date
	}
	if in.Bed != nil && *in.Bed != existing.Bed {
		changes = append(changes, fmt.Sprintf("bed %s→%s", existing.Bed, *in.Bed))
		updated.Bed = *in.Bed
	}
	if in.ChartNo != nil && strings.ToUpper(*in.ChartNo) != existing.ChartNo {
		changes = append(changes, fmt.Sprintf("chart %s→%s", existing.ChartNo, strings.ToUpper(*in.ChartNo)))
		updated.ChartNo = strings.ToUpper(*in.ChartNo)
	}
	if in.PatientName != nil && *in.PatientName != existing.PatientName {
		changes = append(changes, fmt.Sprintf("patient %s→%s", existing.PatientName, *in.PatientName))
		updated.PatientName = *in.PatientName
	}
	if in.Dose != nil && !in.Dose.Equal(existing.Dose) {
		changes = append(changes, fmt.Sprintf("dose %s→%s mCi", existing.Dose, *in.Dose))
		updated.Dose = *in.Dose
	}
	if in.Doctor != nil && *in.Doctor != existing.Doctor {
		changes = append(changes, fmt.Sprintf("doctor %s→%s", existing.Doctor, *in.Doctor))
		updated.Doctor = *in.Doctor
	}
	if in.MedForm != nil && *in.MedForm != existing.MedForm {
		changes = append(changes, fmt.Sprintf("form %s→%s", existing.MedForm, *in.MedForm))
		updated.MedForm = *in.MedForm
	}
	if in.AdjunctPrep != nil && *in.AdjunctPrep != existing.AdjunctPrep {
		changes = append(changes, fmt.Sprintf("adjunct prep %t→%t", existing.AdjunctPrep, *in.AdjunctPrep))
		updated.AdjunctPrep = *in.AdjunctPrep
	}

	slotChanged := !updated.Date.Equal(existing.Date) || updated.Bed != existing.Bed
	if slotChanged || in.Dose != nil {
		if updated.Category.RequiresBed() && !e.cal.HasBed(updated.Bed) {
			return nil, &InvalidInputError{Field: "bed", Message: "is not a ward bed"}
		}
		if !updated.Category.RequiresBed() && updated.Bed != BedNone {
			return nil, &InvalidInputError{Field: "bed", Message: "must be empty for outpatient bookings"}
		}
		if err := e.validateSlot(ctx, updated.Date, updated.Bed, updated.Category, updated.Dose, id); err != nil {
			return nil, err
		}
	}
	if slotChanged && !actor.IsAdmin() {
		today := e.Today()
		if e.lock.Locked(today, updated.Date, updated.Category) {
			return nil, e.lock.LockError(today, updated.Date, updated.Category)
		}
	}

	updated.UpdatedBy = actor.Username
	updated.UpdatedAt = time.Now()

	if err := e.index.Replace(ctx, updated); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("updated booking: %s (no key changes)", existing.PatientName)
	if len(changes) > 0 {
		detail = fmt.Sprintf("updated booking: %s (%s)", existing.PatientName, strings.Join(changes, ", "))
	}
	if err := e.appendAudit(ctx, actor, AuditUpdate, "Booking", fmt.Sprint(id), detail); err != nil {
		_ = e.index.Replace(ctx, *existing)
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a booking. A second call with the same id returns
// ErrNotFound and appends nothing.
func (e *Engine) Delete(ctx context.Context, id BookingID, actor Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.index.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err := CanModify(actor, *existing, e.Today(), e.lock); err != nil {
		return err
	}

	if err := e.index.Remove(ctx, id); err != nil {
		return err
	}

	detail := fmt.Sprintf("deleted booking: %s %s %s", existing.PatientName, existing.Bed, existing.Date)
	if existing.Category == CategoryOutpatient {
		detail = fmt.Sprintf("deleted outpatient booking: %s %s", existing.PatientName, existing.Date)
	}
	if err := e.appendAudit(ctx, actor, AuditDelete, "Booking", fmt.Sprint(id), detail); err != nil {
		_ = e.index.Insert(ctx, *existing)
		return err
	}
	return nil
}

// =============================================================================
// RELOCATE
// =============================================================================

// Relocate moves a booking to a new slot, used for drag-style moves. The
// medication-ordered flag follows the booking: the order tracks the
// patient, not the slot, and the audit detail names both slots so
// pharmacy can spot the move.
func (e *Engine) Relocate(ctx context.Context, id BookingID, newDate Date, newBed Bed, actor Actor) (*Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.index.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err := CanModify(actor, *existing, e.Today(), e.lock); err != nil {
		return nil, err
	}
	if existing.Category.RequiresBed() && !e.cal.HasBed(newBed) {
		return nil, &InvalidInputError{Field: "bed", Message: "is not a ward bed"}
	}
	if !existing.Category.RequiresBed() && newBed != BedNone {
		return nil, &InvalidInputError{Field: "bed", Message: "must be empty for outpatient bookings"}
	}
	if err := e.validateSlot(ctx, newDate, newBed, existing.Category, existing.Dose, id); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		today := e.Today()
		if e.lock.Locked(today, newDate, existing.Category) {
			return nil, e.lock.LockError(today, newDate, existing.Category)
		}
	}

	moved := *existing
	moved.Date = newDate
	moved.Bed = newBed
	moved.UpdatedBy = actor.Username
	moved.UpdatedAt = time.Now()

	if err := e.index.Replace(ctx, moved); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("relocated booking: %s from %s %s to %s %s",
		existing.PatientName, existing.Date, existing.Bed, newDate, newBed)
	if err := e.appendAudit(ctx, actor, AuditRelocate, "Booking", fmt.Sprint(id), detail); err != nil {
		_ = e.index.Replace(ctx, *existing)
		return nil, err
	}
	return &moved, nil
}

// =============================================================================
// DAY OVERRIDES
// =============================================================================

// ToggleDayOverride force-opens or force-closes a bed (or every bed) on a
// date. Administrator-only. Closing is rejected while the target slot
// holds a booking — enforced here, independent of any UI control state.
func (e *Engine) ToggleDayOverride(ctx context.Context, date Date, scope string, open bool, actor Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := CanToggleOverride(actor); err != nil {
		return err
	}
	if date.IsZero() {
		return &InvalidInputError{Field: "date", Message: "is required"}
	}
	if scope != OverrideScopeAll && !e.cal.HasBed(Bed(scope)) {
		return &InvalidInputError{Field: "scope", Message: "must be a ward bed or \"all\""}
	}

	if !open {
		beds := e.cal.Beds
		if scope != OverrideScopeAll {
			beds = []Bed{Bed(scope)}
		}
		for _, bed := range beds {
			occupant, err := e.index.FindByDateBed(ctx, date, bed)
			if err != nil {
				return err
			}
			if occupant != nil {
				return &SlotTakenError{Date: date, Bed: bed, ExistingID: occupant.ID}
			}
		}
	}

	// Persist before mutating so a failed write leaves the table untouched.
	if e.config != nil {
		if err := e.config.SaveOverride(ctx, date, scope, open); err != nil {
			return err
		}
	}
	e.cal.Overrides.Set(date, scope, open)

	verb := "closed"
	if open {
		verb = "opened"
	}
	detail := fmt.Sprintf("%s bed %s on %s", verb, scope, date)
	if scope == OverrideScopeAll {
		detail = fmt.Sprintf("%s all beds on %s", verb, date)
	}
	return e.appendAudit(ctx, actor, AuditOverride, "Bed", fmt.Sprintf("%s-%s", date, scope), detail)
}

// =============================================================================
// MEDICATION ORDERS
// =============================================================================

// ToggleMedicationOrder flips the medication-ordered flag on an inpatient
// booking. Available to administrators and the pharmacist role — a
// narrower permission than scheduling mutation.
func (e *Engine) ToggleMedicationOrder(ctx context.Context, id BookingID, actor Actor) (*Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := CanOrderMedication(actor); err != nil {
		return nil, err
	}
	existing, err := e.index.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if existing.Category != CategoryInpatient {
		return nil, &InvalidInputError{Field: "id", Message: "medication orders apply to inpatient bookings only"}
	}

	updated := *existing
	updated.MedOrdered = !existing.MedOrdered
	updated.UpdatedBy = actor.Username
	updated.UpdatedAt = time.Now()

	if err := e.index.Replace(ctx, updated); err != nil {
		return nil, err
	}

	status := "cancelled"
	if updated.MedOrdered {
		status = "confirmed"
	}
	detail := fmt.Sprintf("medication order %s: %s", status, existing.PatientName)
	if err := e.appendAudit(ctx, actor, AuditMedOrder, "Booking", fmt.Sprint(id), detail); err != nil {
		_ = e.index.Replace(ctx, *existing)
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// SetLockDays replaces the lock configuration. Administrator-only,
// audited like any other mutation.
func (e *Engine) SetLockDays(ctx context.Context, cfg LockConfig, actor Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := CanToggleOverride(actor); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	old := e.lock
	e.lock = cfg
	if e.config != nil {
		if err := e.config.SaveLockConfig(ctx, cfg); err != nil {
			e.lock = old
			return err
		}
	}

	detail := fmt.Sprintf("lock days: inpatient %d→%d, outpatient %d→%d",
		old.InpatientDays, cfg.InpatientDays, old.OutpatientDays, cfg.OutpatientDays)
	return e.appendAudit(ctx, actor, AuditConfig, "Config", "lock_days", detail)
}

// AddHoliday designates a date as a holiday. Administrator-only.
func (e *Engine) AddHoliday(ctx context.Context, date Date, actor Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := CanToggleOverride(actor); err != nil {
		return err
	}
	if date.IsZero() {
		return &InvalidInputError{Field: "date", Message: "is required"}
	}

	if e.config != nil {
		if err := e.config.SaveHoliday(ctx, date); err != nil {
			return err
		}
	}
	e.cal.Holidays.Add(date)
	return e.appendAudit(ctx, actor, AuditConfig, "Holiday", date.String(),
		fmt.Sprintf("added holiday %s", date))
}

// RemoveHoliday removes a holiday designation. Administrator-only.
func (e *Engine) RemoveHoliday(ctx context.Context, date Date, actor Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := CanToggleOverride(actor); err != nil {
		return err
	}

	if e.config != nil {
		if err := e.config.RemoveHoliday(ctx, date); err != nil {
			return err
		}
	}
	e.cal.Holidays.Remove(date)
	return e.appendAudit(ctx, actor, AuditConfig, "Holiday", date.String(),
		fmt.Sprintf("removed holiday %s", date))
}

// RecordExport audits a report export so the trail shows who pulled
// which date range. The export itself is a read-only consumer of the
// Schedule Index; only the audit flows through the engine.
func (e *Engine) RecordExport(ctx context.Context, targetID, detail string, actor Actor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !actor.IsActive {
		return &ForbiddenError{Reason: "inactive"}
	}
	return e.appendAudit(ctx, actor, AuditExport, "Report", targetID, detail)
}

// =============================================================================
// AUDIT
// =============================================================================

func (e *Engine) appendAudit(ctx context.Context, actor Actor, action AuditAction, kind, targetID, detail string) error {
	return e.audit.Append(ctx, AuditEntry{
		ActorID:    actor.Username,
		Action:     action,
		TargetKind: kind,
		TargetID:   targetID,
		Detail:     detail,
		Timestamp:  time.Now(),
	})
}
