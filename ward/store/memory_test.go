package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ward-engine/ward"
)

func day(t *testing.T, s string) ward.Date {
	t.Helper()
	d, err := ward.ParseDate(s)
	require.NoError(t, err)
	return d
}

func booking(t *testing.T, id int64, date string, bed ward.Bed) ward.Booking {
	t.Helper()
	return ward.Booking{
		ID:          ward.BookingID(id),
		Date:        day(t, date),
		Bed:         bed,
		Category:    ward.CategoryInpatient,
		ChartNo:     "A123456",
		PatientName: "Wang",
		Dose:        decimal.NewFromInt(100),
		Doctor:      "Dr. Chen",
		MedForm:     ward.MedFormTablet,
		CreatedBy:   "admin",
	}
}

func TestMemory_FindByDateBed(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, booking(t, 1, "2026-06-02", "5B")))

	occupant, err := m.FindByDateBed(ctx, day(t, "2026-06-02"), "5B")
	require.NoError(t, err)
	require.NotNil(t, occupant)
	assert.Equal(t, ward.BookingID(1), occupant.ID)

	free, err := m.FindByDateBed(ctx, day(t, "2026-06-02"), "6B")
	require.NoError(t, err)
	assert.Nil(t, free)

	// Outpatient rows never occupy a bed slot.
	out := booking(t, 2, "2026-06-02", "")
	out.Category = ward.CategoryOutpatient
	require.NoError(t, m.Insert(ctx, out))
	occupant, err = m.FindByDateBed(ctx, day(t, "2026-06-02"), "")
	require.NoError(t, err)
	assert.Nil(t, occupant)
}

func TestMemory_NextID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, ward.BookingID(1), id, "empty store starts at 1")

	require.NoError(t, m.Insert(ctx, booking(t, 7, "2026-06-02", "5B")))
	id, err = m.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, ward.BookingID(8), id, "max existing id + 1")

	// Removal must not cause id reuse while higher ids exist.
	require.NoError(t, m.Insert(ctx, booking(t, 3, "2026-06-05", "5B")))
	require.NoError(t, m.Remove(ctx, 3))
	id, err = m.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, ward.BookingID(8), id)
}

func TestMemory_ListRange(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, booking(t, 1, "2026-06-05", "6B")))
	require.NoError(t, m.Insert(ctx, booking(t, 2, "2026-06-02", "5B")))
	require.NoError(t, m.Insert(ctx, booking(t, 3, "2026-06-05", "5B")))
	require.NoError(t, m.Insert(ctx, booking(t, 4, "2026-07-03", "5B")))

	got, err := m.ListRange(ctx, day(t, "2026-06-01"), day(t, "2026-06-30"), ward.CategoryInpatient)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Ordered by date then bed.
	assert.Equal(t, ward.BookingID(2), got[0].ID)
	assert.Equal(t, ward.BookingID(3), got[1].ID)
	assert.Equal(t, ward.BookingID(1), got[2].ID)
}

func TestMemory_CopyOut(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Insert(ctx, booking(t, 1, "2026-06-02", "5B")))

	// Mutating a returned booking must not leak into the store.
	b, err := m.FindByID(ctx, 1)
	require.NoError(t, err)
	b.PatientName = "tampered"

	again, err := m.FindByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Wang", again.PatientName)
}

func TestMemoryAudit_NewestFirst(t *testing.T) {
	a := NewMemoryAudit()
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, action := range []ward.AuditAction{ward.AuditCreate, ward.AuditUpdate, ward.AuditDelete} {
		require.NoError(t, a.Append(ctx, ward.AuditEntry{
			ActorID:   "admin",
			Action:    action,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := a.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ward.AuditDelete, recent[0].Action)
	assert.Equal(t, ward.AuditUpdate, recent[1].Action)
	assert.Equal(t, int64(3), recent[0].Seq, "sequence numbers are monotonic")

	filtered, err := a.FilterByRange(ctx, base, base.Add(90*time.Second))
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, ward.AuditUpdate, filtered[0].Action, "range results are newest first")
}

func TestMemoryConfig_RoundTrip(t *testing.T) {
	c := NewMemoryConfig()
	ctx := context.Background()

	// Empty config loads as nil, not as zero values.
	overrides, err := c.LoadOverrides(ctx)
	require.NoError(t, err)
	assert.Nil(t, overrides)
	cfg, err := c.LoadLockConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, c.SaveOverride(ctx, day(t, "2026-06-03"), "5B", true))
	require.NoError(t, c.SaveLockConfig(ctx, ward.LockConfig{InpatientDays: 14}))
	require.NoError(t, c.SaveHoliday(ctx, day(t, "2026-12-25")))

	overrides, err = c.LoadOverrides(ctx)
	require.NoError(t, err)
	open, ok := overrides.Get(day(t, "2026-06-03"), "5B")
	assert.True(t, ok)
	assert.True(t, open)

	cfg, err = c.LoadLockConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 14, cfg.InpatientDays)

	holidays, err := c.LoadHolidays(ctx)
	require.NoError(t, err)
	assert.True(t, holidays.Contains(day(t, "2026-12-25")))

	require.NoError(t, c.RemoveHoliday(ctx, day(t, "2026-12-25")))
	holidays, err = c.LoadHolidays(ctx)
	require.NoError(t, err)
	assert.Nil(t, holidays)
}
