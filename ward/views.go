/*
views.go - Read-only projections of the schedule

PURPOSE:
  Derived views for the rendering layer: the month grid, next-available
  slot suggestions, and occupancy statistics. Views consult the same
  Calendar and LockConfig the engine enforces, so what renders as open is
  exactly what an operation would accept.
*/
package ward

import (
	"context"
	"time"
)

// =============================================================================
// NEXT AVAILABLE SLOTS
// =============================================================================

// SlotSuggestionHorizon bounds the forward scan for free slots.
const SlotSuggestionHorizon = 90

// SlotSuggestion is a bookable inpatient slot: structurally open,
// unoccupied, and outside the lock window as seen from today.
type SlotSuggestion struct {
	Date Date
	Bed  Bed
}

// NextAvailableSlots scans forward from today and returns up to limit
// inpatient slots a standard user could book right now. Days inside the
// lock window are skipped entirely: suggesting a slot only an
// administrator could take would mislead the caller.
func (e *Engine) NextAvailableSlots(ctx context.Context, limit int) ([]SlotSuggestion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	today := e.Today()

	out := make([]SlotSuggestion, 0, limit)
	for i := 0; i < SlotSuggestionHorizon; i++ {
		date := today.AddDays(i)
		if e.lock.Locked(today, date, CategoryInpatient) {
			continue
		}
		for _, bed := range e.cal.Beds {
			if !e.cal.IsBedOpen(date, bed) {
				continue
			}
			occupant, err := e.index.FindByDateBed(ctx, date, bed)
			if err != nil {
				return nil, err
			}
			if occupant != nil {
				continue
			}
			out = append(out, SlotSuggestion{Date: date, Bed: bed})
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// =============================================================================
// MONTH VIEW
// =============================================================================

// BedCell is one bed on one day of the month grid.
type BedCell struct {
	Bed     Bed
	Open    bool
	Booking *Booking // nil when the slot is free
}

// DayView is one day of the month grid.
type DayView struct {
	Date          Date
	Holiday       bool
	FullyClosed   bool
	Locked        bool // inpatient lock window, as seen from today
	Beds          []BedCell
	OutpatientDay bool
	Outpatients   []Booking
}

// MonthView renders the grid the calendar UI consumes: one DayView per
// day of the month with bed occupancy and outpatient lists resolved.
func (e *Engine) MonthView(ctx context.Context, year int, month int) ([]DayView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if month < 1 || month > 12 {
		return nil, &InvalidInputError{Field: "month", Message: "must be between 1 and 12"}
	}

	first := NewDate(year, time.Month(month), 1)
	last := first.EndOfMonth()
	today := e.Today()

	bookings, err := e.index.ListRange(ctx, first, last, Category(""))
	if err != nil {
		return nil, err
	}
	byDate := make(map[string][]Booking)
	for _, b := range bookings {
		key := b.Date.String()
		byDate[key] = append(byDate[key], b)
	}

	days := make([]DayView, 0, last.Day())
	for d := first; d.BeforeOrEqual(last); d = d.AddDays(1) {
		day := DayView{
			Date:          d,
			Holiday:       e.cal.Holidays.Contains(d),
			FullyClosed:   e.cal.IsDayFullyClosed(d),
			Locked:        e.lock.Locked(today, d, CategoryInpatient),
			OutpatientDay: e.cal.IsOutpatientDay(d),
		}
		for _, bed := range e.cal.Beds {
			cell := BedCell{Bed: bed, Open: e.cal.IsBedOpen(d, bed)}
			for _, b := range byDate[d.String()] {
				if b.Category == CategoryInpatient && b.Bed == bed {
					occupant := b
					cell.Booking = &occupant
					break
				}
			}
			day.Beds = append(day.Beds, cell)
		}
		for _, b := range byDate[d.String()] {
			if b.Category == CategoryOutpatient {
				day.Outpatients = append(day.Outpatients, b)
			}
		}
		days = append(days, day)
	}
	return days, nil
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats summarizes current occupancy for the dashboard header.
type Stats struct {
	TodayInpatients  int
	TodayOutpatients int
	MonthInpatients  int
	MonthOutpatients int
	MedPending       int // inpatient bookings today or later without a medication order
}

// Stats computes the dashboard counters as of today.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := e.Today()
	monthStart := today.StartOfMonth()
	monthEnd := today.EndOfMonth()

	all, err := e.index.List(ctx)
	if err != nil {
		return nil, err
	}

	var s Stats
	for _, b := range all {
		inMonth := b.Date.AfterOrEqual(monthStart) && b.Date.BeforeOrEqual(monthEnd)
		switch b.Category {
		case CategoryInpatient:
			if b.Date.Equal(today) {
				s.TodayInpatients++
			}
			if inMonth {
				s.MonthInpatients++
			}
			if b.Date.AfterOrEqual(today) && !b.MedOrdered {
				s.MedPending++
			}
		case CategoryOutpatient:
			if b.Date.Equal(today) {
				s.TodayOutpatients++
			}
			if inMonth {
				s.MonthOutpatients++
			}
		}
	}
	return &s, nil
}
