package ward

import (
	"testing"
	"time"
)

func TestDate_DaysUntil(t *testing.T) {
	today := mustDate(t, "2026-05-01")

	cases := []struct {
		target string
		want   int
	}{
		{"2026-05-01", 0},
		{"2026-05-02", 1},
		{"2026-05-22", 21},
		{"2026-04-30", -1},
		{"2026-06-01", 31},
	}
	for _, tc := range cases {
		if got := today.DaysUntil(mustDate(t, tc.target)); got != tc.want {
			t.Errorf("DaysUntil(%s) = %d, want %d", tc.target, got, tc.want)
		}
	}
}

func TestDate_Comparisons(t *testing.T) {
	a := mustDate(t, "2026-05-01")
	b := mustDate(t, "2026-05-02")

	if !a.Before(b) || b.Before(a) {
		t.Error("Before is wrong")
	}
	if !a.BeforeOrEqual(a) || !a.AfterOrEqual(a) {
		t.Error("expected equal dates to satisfy OrEqual comparisons")
	}

	// Wall-clock components must not affect day comparisons.
	noon := Date{Time: time.Date(2026, 5, 1, 12, 30, 0, 0, time.Local)}
	if !noon.Equal(a) {
		t.Error("expected time-of-day to be normalized away")
	}
}

func TestDate_MonthBounds(t *testing.T) {
	d := mustDate(t, "2026-02-14")
	if got := d.StartOfMonth().String(); got != "2026-02-01" {
		t.Errorf("StartOfMonth = %s", got)
	}
	if got := d.EndOfMonth().String(); got != "2026-02-28" {
		t.Errorf("EndOfMonth = %s", got)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2026/05/01", "05-01-2026", "2026-13-01"} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("ParseDate(%q): expected error", s)
		}
	}
}
