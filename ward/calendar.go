/*
calendar.go - Structural openness rules for dates and beds

PURPOSE:
  Pure functions deciding whether a (date, bed) slot is structurally open
  for booking. The decision layers, highest precedence first:

    1. Per-bed administrative override for the date
    2. "All beds" administrative override for the date
    3. Holiday: closed by default
    4. Weekday rule: open iff the weekday is a configured booking day

  Overrides win over holidays and weekdays in BOTH directions: an
  administrator can force-open a holiday or force-close a normally-open
  weekday.

PURITY:
  Every function here is a pure function of (date, bed, override table,
  holiday set, weekday set). No clock access, no side effects. The engine
  owns the mutable tables and hands them in.

SEE ALSO:
  - engine.go: ToggleDayOverride / AddHoliday mutate the tables held here
  - lock.go: Time-distance rules, orthogonal to structural openness
*/
package ward

import (
	"sort"
	"time"
)

// =============================================================================
// OVERRIDES - Administrative exceptions keyed by date
// =============================================================================

// OverrideScopeAll marks an override applying to every bed on the date.
const OverrideScopeAll = "all"

// Overrides maps ISO date -> scope -> open. Scope is a bed identifier or
// OverrideScopeAll. Entries persist until overwritten.
type Overrides map[string]map[string]bool

// Get returns (open, true) when an override applies to the bed on the
// date, checking the per-bed entry before the all-beds entry.
func (o Overrides) Get(date Date, bed Bed) (bool, bool) {
	day, ok := o[date.String()]
	if !ok {
		return false, false
	}
	if open, ok := day[string(bed)]; ok {
		return open, true
	}
	if open, ok := day[OverrideScopeAll]; ok {
		return open, true
	}
	return false, false
}

// Set records an override for the date and scope.
func (o Overrides) Set(date Date, scope string, open bool) {
	key := date.String()
	if o[key] == nil {
		o[key] = make(map[string]bool)
	}
	o[key][scope] = open
}

// Clone returns a deep copy, used for rollback-free snapshots.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for date, scopes := range o {
		m := make(map[string]bool, len(scopes))
		for k, v := range scopes {
			m[k] = v
		}
		out[date] = m
	}
	return out
}

// =============================================================================
// HOLIDAY SET
// =============================================================================

// HolidaySet holds designated holidays keyed by ISO date.
type HolidaySet map[string]bool

func (h HolidaySet) Contains(date Date) bool { return h[date.String()] }
func (h HolidaySet) Add(date Date)           { h[date.String()] = true }
func (h HolidaySet) Remove(date Date)        { delete(h, date.String()) }

func (h HolidaySet) Clone() HolidaySet {
	out := make(HolidaySet, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Sorted returns the holiday dates in calendar order.
func (h HolidaySet) Sorted() []string {
	out := make([]string, 0, len(h))
	for k := range h {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultHolidays returns the reference holiday calendar for 2026
// (Taiwanese national holidays).
func DefaultHolidays() HolidaySet {
	dates := []string{
		"2026-01-01", "2026-01-29", "2026-01-30", "2026-01-31",
		"2026-02-01", "2026-02-02", "2026-02-03",
		"2026-02-28",
		"2026-04-04", "2026-04-05", "2026-04-06",
		"2026-05-31",
		"2026-10-01", "2026-10-02",
		"2026-10-10",
	}
	set := make(HolidaySet, len(dates))
	for _, d := range dates {
		set[d] = true
	}
	return set
}

// =============================================================================
// CALENDAR POLICY
// =============================================================================

// WeekdaySet is the set of weekdays on which a booking category is open.
type WeekdaySet map[time.Weekday]bool

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	set := make(WeekdaySet, len(days))
	for _, d := range days {
		set[d] = true
	}
	return set
}

// Calendar bundles the structural openness configuration: the bed list,
// the booking weekday sets, the holiday set, and the override table.
type Calendar struct {
	Beds []Bed

	// Inpatient admissions default to Tuesday and Friday.
	InpatientWeekdays WeekdaySet

	// Outpatient low-dose administrations run Monday, Wednesday, Thursday.
	OutpatientWeekdays WeekdaySet

	Holidays  HolidaySet
	Overrides Overrides
}

// NewCalendar returns the reference ward calendar.
func NewCalendar() *Calendar {
	return &Calendar{
		Beds:               append([]Bed(nil), DefaultBeds...),
		InpatientWeekdays:  NewWeekdaySet(time.Tuesday, time.Friday),
		OutpatientWeekdays: NewWeekdaySet(time.Monday, time.Wednesday, time.Thursday),
		Holidays:           DefaultHolidays(),
		Overrides:          make(Overrides),
	}
}

// IsBedOpen reports whether the (date, bed) slot is structurally open.
func (c *Calendar) IsBedOpen(date Date, bed Bed) bool {
	if open, ok := c.Overrides.Get(date, bed); ok {
		return open
	}
	if c.Holidays.Contains(date) {
		return false
	}
	return c.InpatientWeekdays[date.Weekday()]
}

// IsDayFullyClosed reports whether every bed is closed on the date.
func (c *Calendar) IsDayFullyClosed(date Date) bool {
	for _, bed := range c.Beds {
		if c.IsBedOpen(date, bed) {
			return false
		}
	}
	return true
}

// IsOutpatientDay reports whether outpatient administrations run on the
// date. Outpatient slots are bed-independent, so bed overrides do not
// apply; holidays still close them.
func (c *Calendar) IsOutpatientDay(date Date) bool {
	if c.Holidays.Contains(date) {
		return false
	}
	return c.OutpatientWeekdays[date.Weekday()]
}

// HasBed reports whether the bed belongs to the ward.
func (c *Calendar) HasBed(bed Bed) bool {
	for _, b := range c.Beds {
		if b == bed {
			return true
		}
	}
	return false
}
