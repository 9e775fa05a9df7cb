/*
store.go - Persistence interfaces for the schedule, audit trail, and config

PURPOSE:
  Defines the boundary between the engine and storage. The Schedule Index
  is a dumb authoritative store: it enforces no business invariants — the
  engine calls FindByDateBed before any insert or relocate, inside its own
  critical section. Different implementations can use memory or SQLite.

KEY INTERFACES:
  ScheduleIndex: Authoritative booking collection (lookup + mutation)
  AuditLog:      Append-only mutation record, newest-first reads
  ConfigStore:   Optional durability for overrides/lock config/holidays

AUDIT CONTRACT:
  The AuditLog is APPEND-ONLY. No Update, no Delete, ever. Exactly one
  entry is appended per accepted engine mutation, and none on any
  rejected path.

IMPLEMENTATIONS:
  - ward/store/memory.go:  In-memory authoritative store
  - store/sqlite/sqlite.go: SQLite-backed durability

SEE ALSO:
  - engine.go: Sole writer of all three interfaces
*/
package ward

import (
	"context"
	"time"
)

// =============================================================================
// SCHEDULE INDEX - The authoritative booking collection
// =============================================================================

// ScheduleIndex stores bookings. It is deliberately dumb: uniqueness and
// openness invariants are the engine's responsibility.
type ScheduleIndex interface {
	// FindByID returns the booking, or nil when absent.
	FindByID(ctx context.Context, id BookingID) (*Booking, error)

	// FindByDateBed returns the inpatient booking occupying the slot,
	// or nil when the slot is free.
	FindByDateBed(ctx context.Context, date Date, bed Bed) (*Booking, error)

	// FindByDate returns all bookings on the date, both categories.
	FindByDate(ctx context.Context, date Date) ([]Booking, error)

	// List returns all bookings, date-descending.
	List(ctx context.Context) ([]Booking, error)

	// ListRange returns bookings with from <= date <= to, ordered by
	// date then bed. An empty category matches both categories.
	ListRange(ctx context.Context, from, to Date, category Category) ([]Booking, error)

	// NextID returns max existing id + 1, or 1 when empty.
	NextID(ctx context.Context) (BookingID, error)

	Insert(ctx context.Context, b Booking) error
	Replace(ctx context.Context, b Booking) error
	Remove(ctx context.Context, id BookingID) error
}

// =============================================================================
// AUDIT TRAIL - Append-only record of accepted mutations
// =============================================================================

type AuditAction string

const (
	AuditCreate   AuditAction = "CREATE"
	AuditUpdate   AuditAction = "UPDATE"
	AuditDelete   AuditAction = "DELETE"
	AuditRelocate AuditAction = "RELOCATE"
	AuditOverride AuditAction = "OVERRIDE"
	AuditMedOrder AuditAction = "MED_ORDER"
	AuditConfig   AuditAction = "CONFIG"
	AuditExport   AuditAction = "EXPORT"
)

// AuditEntry records who did what when. Immutable once appended.
type AuditEntry struct {
	Seq        int64 // assigned by the log, monotonically
	ActorID    string
	Action     AuditAction
	TargetKind string // "Booking", "Bed", "Config", "User", "Report"
	TargetID   string
	Detail     string
	Timestamp  time.Time
}

// AuditLog stores audit entries. Append-only; reads are newest-first.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error

	// Recent returns the latest n entries, newest first.
	Recent(ctx context.Context, n int) ([]AuditEntry, error)

	// FilterByRange returns entries with start <= timestamp <= end,
	// newest first.
	FilterByRange(ctx context.Context, start, end time.Time) ([]AuditEntry, error)
}

// =============================================================================
// CONFIG STORE - Optional durability for runtime configuration
// =============================================================================

// ConfigStore persists the mutable calendar and lock configuration across
// restarts. The engine treats it as a write-through journal: the
// in-memory tables stay authoritative, and a nil ConfigStore is valid.
type ConfigStore interface {
	SaveOverride(ctx context.Context, date Date, scope string, open bool) error
	LoadOverrides(ctx context.Context) (Overrides, error)

	SaveLockConfig(ctx context.Context, cfg LockConfig) error
	LoadLockConfig(ctx context.Context) (*LockConfig, error)

	SaveHoliday(ctx context.Context, date Date) error
	RemoveHoliday(ctx context.Context, date Date) error
	LoadHolidays(ctx context.Context) (HolidaySet, error)
}
