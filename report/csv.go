/*
csv.go - Monthly schedule export

PURPOSE:
  Renders a date range of bookings as CSV for the monthly treatment
  report. The output starts with a UTF-8 byte-order mark so spreadsheet
  applications decode patient names correctly, and rows are ordered by
  date then bed so the file reads like the calendar.
*/
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/warp/ward-engine/ward"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var header = []string{
	"Date", "Bed", "Category", "Chart No", "Patient", "Dose (mCi)",
	"Physician", "Form", "Adjunct Prep", "Med Ordered", "Booked By",
}

// WriteCSV renders the bookings of one category in [from, to] to w. The
// monthly treatment report is a per-category slice, not a merged file.
func WriteCSV(ctx context.Context, w io.Writer, index ward.ScheduleIndex, from, to ward.Date, category ward.Category) error {
	if to.Before(from) {
		return &ward.InvalidInputError{Field: "to", Message: "must not precede from"}
	}
	if !category.Valid() {
		return &ward.InvalidInputError{Field: "category", Message: "must be inpatient or outpatient"}
	}
	bookings, err := index.ListRange(ctx, from, to, category)
	if err != nil {
		return err
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range bookings {
		if err := cw.Write(row(b)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(b ward.Booking) []string {
	bed := string(b.Bed)
	if b.Category == ward.CategoryOutpatient {
		bed = "-"
	}
	return []string{
		b.Date.String(),
		bed,
		string(b.Category),
		b.ChartNo,
		b.PatientName,
		b.Dose.String(),
		b.Doctor,
		string(b.MedForm),
		yesNo(b.AdjunctPrep),
		yesNo(b.MedOrdered),
		b.CreatedBy,
	}
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

// MonthRange returns the first and last day of the given month.
func MonthRange(year, month int) (ward.Date, ward.Date, error) {
	if month < 1 || month > 12 {
		return ward.Date{}, ward.Date{}, &ward.InvalidInputError{Field: "month", Message: "must be between 1 and 12"}
	}
	first := ward.NewDate(year, time.Month(month), 1)
	return first, first.EndOfMonth(), nil
}

// Filename returns the suggested attachment name for a monthly export.
func Filename(year, month int, category ward.Category) string {
	return fmt.Sprintf("ward-schedule-%04d-%02d-%s.csv", year, month, category)
}
