/*
Package ward provides the core scheduling engine for a radioisotope
treatment ward.

PURPOSE:
  This package contains the types and decision logic for managing a small
  fixed set of treatment beds and a restricted set of openable calendar
  days. It decides, deterministically, whether a booking is permitted for
  any (date, bed) pair, prevents double-assignment, enforces lead-time
  lock windows, and records every accepted mutation as an immutable
  audit entry.

KEY CONCEPTS IN THIS FILE (types.go):
  - Booking: One scheduled occupancy of a bed (inpatient) or a low-dose
    administration event (outpatient)
  - Bed: A physical treatment slot, bookable at most once per day
  - Category: Inpatient vs. outpatient, which changes the validation rules
  - Actor: The acting identity consumed by every authorization decision

DESIGN PRINCIPLES:
  1. Determinism: identical inputs and state always yield identical results
  2. Precision: doses use decimal.Decimal so the outpatient ceiling check
     is exact (29.9 is accepted, 30 is not)
  3. Atomicity: validation is fully evaluated before any write
  4. Auditability: every accepted mutation emits exactly one audit entry

SEE ALSO:
  - calendar.go: Structural openness rules (weekday/holiday/override)
  - lock.go: Lead-time lock windows
  - authz.go: Role/ownership/lock authorization gate
  - engine.go: The transaction engine orchestrating all mutations
*/
package ward

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BEDS AND CATEGORIES
// =============================================================================

// Bed identifies a physical treatment slot. The ward has a small fixed set;
// outpatient bookings are bed-independent and carry BedNone.
type Bed string

const BedNone Bed = ""

// DefaultBeds is the reference ward layout.
var DefaultBeds = []Bed{"5B", "6B"}

// Category distinguishes bed-occupying admissions from low-dose
// outpatient administration events.
type Category string

const (
	CategoryInpatient  Category = "inpatient"
	CategoryOutpatient Category = "outpatient"
)

func (c Category) Valid() bool {
	return c == CategoryInpatient || c == CategoryOutpatient
}

// RequiresBed reports whether bookings of this category occupy a bed and
// are therefore subject to slot exclusivity.
func (c Category) RequiresBed() bool { return c == CategoryInpatient }

// MedForm is the prescribed medication form.
type MedForm string

const (
	MedFormTablet MedForm = "tablet"
	MedFormLiquid MedForm = "liquid"
)

// OutpatientDoseCeiling is the exclusive upper bound for outpatient doses,
// in mCi. Doses at or above it require an inpatient admission.
var OutpatientDoseCeiling = decimal.NewFromInt(30)

// =============================================================================
// BOOKING
// =============================================================================

// BookingID is a monotonically assigned integer identifier, unique across
// the whole schedule for its lifetime.
type BookingID int64

// Booking represents one scheduled occupancy of a bed (inpatient) or a
// low-dose administration event (outpatient).
type Booking struct {
	ID       BookingID
	Date     Date
	Bed      Bed // BedNone for outpatient
	Category Category

	ChartNo     string
	PatientName string
	Dose        decimal.Decimal // mCi
	Doctor      string
	MedForm     MedForm
	AdjunctPrep bool // requires adjunct hormone preparation (Thyrogen)
	MedOrdered  bool // medication ordered (inpatient only)

	// Audit fields
	CreatedBy string // owner: username of the creator
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

// Occupies reports whether the booking holds the given slot.
func (b Booking) Occupies(date Date, bed Bed) bool {
	return b.Category.RequiresBed() && b.Date.Equal(date) && b.Bed == bed
}

// =============================================================================
// ACTOR - The acting identity (owned by an external identity store)
// =============================================================================

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RolePharmacist Role = "med_admin" // medication-ordering role
)

// Actor is the identity performing an operation. The engine never stores
// actors; it consumes them on every authorization decision. An inactive
// actor is treated as unauthenticated.
type Actor struct {
	Username string
	Name     string
	Role     Role
	IsActive bool
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// =============================================================================
// SLOT - The unit of exclusivity for inpatient bookings
// =============================================================================

type Slot struct {
	Date Date
	Bed  Bed
}
