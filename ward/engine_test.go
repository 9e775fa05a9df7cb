package ward_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/ward-engine/ward"
	"github.com/warp/ward-engine/ward/store"
)

var (
	admin      = ward.Actor{Username: "admin", Name: "Administrator", Role: ward.RoleAdmin, IsActive: true}
	scheduler  = ward.Actor{Username: "user", Name: "Scheduler", Role: ward.RoleUser, IsActive: true}
	nurse      = ward.Actor{Username: "nurse01", Name: "Ward Nurse", Role: ward.RoleUser, IsActive: true}
	pharmacist = ward.Actor{Username: "med_admin", Name: "Pharmacy", Role: ward.RolePharmacist, IsActive: true}
)

// newEngine pins today to Friday 2026-05-01 so lock-window arithmetic is
// deterministic.
func newEngine(t *testing.T) (*ward.Engine, *store.MemoryAudit) {
	t.Helper()
	audit := store.NewMemoryAudit()
	engine := ward.NewEngine(store.NewMemory(), audit)
	engine.Today = func() ward.Date { return date(t, "2026-05-01") }
	return engine, audit
}

func date(t *testing.T, s string) ward.Date {
	t.Helper()
	d, err := ward.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func inpatientInput(t *testing.T, day string, bed ward.Bed) ward.CreateInput {
	t.Helper()
	return ward.CreateInput{
		Date:        date(t, day),
		Bed:         bed,
		Category:    ward.CategoryInpatient,
		ChartNo:     "a123456",
		PatientName: "Wang",
		Dose:        decimal.NewFromInt(100),
		Doctor:      "Dr. Chen",
		MedForm:     ward.MedFormTablet,
	}
}

func outpatientInput(t *testing.T, day string, dose string) ward.CreateInput {
	t.Helper()
	d, err := decimal.NewFromString(dose)
	if err != nil {
		t.Fatal(err)
	}
	return ward.CreateInput{
		Date:        date(t, day),
		Category:    ward.CategoryOutpatient,
		ChartNo:     "b234567",
		PatientName: "Lin",
		Dose:        d,
		Doctor:      "Dr. Chen",
	}
}

func auditCount(t *testing.T, audit *store.MemoryAudit) int {
	t.Helper()
	entries, err := audit.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

// =============================================================================
// CREATE
// =============================================================================

func TestEngine_Create(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	// GIVEN an open Tuesday outside the lock window
	// WHEN creating an inpatient booking
	b, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)

	// THEN the booking is stored with a fresh id and normalized chart number
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.ID != 1 {
		t.Errorf("ID = %d, want 1", b.ID)
	}
	if b.ChartNo != "A123456" {
		t.Errorf("ChartNo = %q, want uppercased", b.ChartNo)
	}
	if b.CreatedBy != "admin" || b.UpdatedBy != "admin" {
		t.Error("expected owner stamped from the actor")
	}

	// AND exactly one audit entry exists
	entries, _ := audit.Recent(ctx, 10)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	if entries[0].Action != ward.AuditCreate || entries[0].ActorID != "admin" {
		t.Errorf("unexpected audit entry %+v", entries[0])
	}
}

func TestEngine_Create_SlotTaken(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	// GIVEN a booked slot
	first, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)
	if err != nil {
		t.Fatal(err)
	}

	// WHEN a second booking targets the same slot
	in := inpatientInput(t, "2026-06-02", "5B")
	in.PatientName = "Chen"
	_, err = engine.Create(ctx, in, admin)

	// THEN it is rejected naming the occupant, with no side effects
	var taken *ward.SlotTakenError
	if !errors.As(err, &taken) {
		t.Fatalf("expected SlotTakenError, got %v", err)
	}
	if taken.ExistingID != first.ID {
		t.Errorf("ExistingID = %d, want %d", taken.ExistingID, first.ID)
	}
	if n := auditCount(t, audit); n != 1 {
		t.Errorf("audit entries = %d, want 1 (rejections append nothing)", n)
	}

	// AND the other bed on the same day is still bookable
	in.Bed = "6B"
	if _, err := engine.Create(ctx, in, admin); err != nil {
		t.Errorf("expected 6B free, got %v", err)
	}
}

func TestEngine_Create_SlotClosed(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	// Wednesday is not an admission day.
	_, err := engine.Create(ctx, inpatientInput(t, "2026-06-03", "5B"), admin)
	if !errors.Is(err, ward.ErrSlotClosed) {
		t.Errorf("weekday: expected ErrSlotClosed, got %v", err)
	}

	// 2026-10-02 is a Friday but also a holiday.
	_, err = engine.Create(ctx, inpatientInput(t, "2026-10-02", "5B"), admin)
	if !errors.Is(err, ward.ErrSlotClosed) {
		t.Errorf("holiday: expected ErrSlotClosed, got %v", err)
	}
}

func TestEngine_Create_LockWindow(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	// GIVEN an open Friday only 7 days out
	in := inpatientInput(t, "2026-05-08", "5B")

	// THEN a standard user is rejected
	_, err := engine.Create(ctx, in, scheduler)
	if !errors.Is(err, ward.ErrLockedWindow) {
		t.Fatalf("expected ErrLockedWindow, got %v", err)
	}

	// AND an administrator is not
	if _, err := engine.Create(ctx, in, admin); err != nil {
		t.Errorf("expected admin exempt from the lock window, got %v", err)
	}
}

func TestEngine_Create_OutpatientDoseCeiling(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	// GIVEN an outpatient Monday
	// WHEN the dose is exactly the 30 mCi ceiling
	_, err := engine.Create(ctx, outpatientInput(t, "2026-06-01", "30"), admin)

	// THEN it is rejected (the bound is exclusive)
	if !errors.Is(err, ward.ErrDoseExceedsLimit) {
		t.Fatalf("expected ErrDoseExceedsLimit, got %v", err)
	}
	if n := auditCount(t, audit); n != 0 {
		t.Errorf("audit entries = %d, want 0", n)
	}

	// AND 29.9 mCi is accepted
	if _, err := engine.Create(ctx, outpatientInput(t, "2026-06-01", "29.9"), admin); err != nil {
		t.Errorf("expected 29.9 mCi accepted, got %v", err)
	}

	// AND outpatient visits don't run on admission-only days
	_, err = engine.Create(ctx, outpatientInput(t, "2026-06-02", "10"), admin)
	if !errors.Is(err, ward.ErrSlotClosed) {
		t.Errorf("expected ErrSlotClosed on a Tuesday, got %v", err)
	}
}

func TestEngine_Create_PharmacistReadOnly(t *testing.T) {
	engine, _ := newEngine(t)

	_, err := engine.Create(context.Background(), inpatientInput(t, "2026-06-02", "5B"), pharmacist)
	if !ward.IsForbidden(err) {
		t.Errorf("expected pharmacist denied, got %v", err)
	}
}

// =============================================================================
// UPDATE / DELETE / RELOCATE
// =============================================================================

func TestEngine_Update(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	b, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), scheduler)
	if err != nil {
		t.Fatal(err)
	}

	// WHEN the owner changes the dose
	newDose := decimal.NewFromInt(150)
	updated, err := engine.Update(ctx, b.ID, ward.UpdateInput{Dose: &newDose}, scheduler)

	// THEN the change lands and is audited with before and after
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Dose.Equal(newDose) {
		t.Errorf("Dose = %s, want 150", updated.Dose)
	}
	entries, _ := audit.Recent(ctx, 1)
	if entries[0].Action != ward.AuditUpdate {
		t.Errorf("Action = %s, want UPDATE", entries[0].Action)
	}
	if want := "dose 100→150 mCi"; !contains(entries[0].Detail, want) {
		t.Errorf("Detail %q missing %q", entries[0].Detail, want)
	}

	// AND a non-owner standard user cannot touch it
	_, err = engine.Update(ctx, b.ID, ward.UpdateInput{Dose: &newDose}, nurse)
	if !ward.IsForbidden(err) {
		t.Errorf("expected non-owner denied, got %v", err)
	}
}

func TestEngine_Update_SlotChangeRevalidates(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	a, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)
	if err != nil {
		t.Fatal(err)
	}
	in := inpatientInput(t, "2026-06-05", "5B")
	in.PatientName = "Chen"
	if _, err := engine.Create(ctx, in, admin); err != nil {
		t.Fatal(err)
	}

	// Moving onto the occupied Friday slot is rejected.
	newDate := date(t, "2026-06-05")
	_, err = engine.Update(ctx, a.ID, ward.UpdateInput{Date: &newDate}, admin)
	if !errors.Is(err, ward.ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}

	// Keeping the booking's own slot is not a conflict with itself.
	sameDate := date(t, "2026-06-02")
	bed := ward.Bed("5B")
	if _, err := engine.Update(ctx, a.ID, ward.UpdateInput{Date: &sameDate, Bed: &bed}, admin); err != nil {
		t.Errorf("expected no self-conflict, got %v", err)
	}
}

func TestEngine_Delete_Idempotence(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	b, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)
	if err != nil {
		t.Fatal(err)
	}

	// WHEN deleting twice
	if err := engine.Delete(ctx, b.ID, admin); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	err = engine.Delete(ctx, b.ID, admin)

	// THEN the second call reports not found and appends nothing
	if !ward.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if n := auditCount(t, audit); n != 2 { // CREATE + DELETE
		t.Errorf("audit entries = %d, want 2", n)
	}

	// AND the slot is free again
	if _, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin); err != nil {
		t.Errorf("expected freed slot bookable, got %v", err)
	}
}

func TestEngine_Relocate(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	b, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)
	if err != nil {
		t.Fatal(err)
	}
	// Order medication before the move.
	if _, err := engine.ToggleMedicationOrder(ctx, b.ID, pharmacist); err != nil {
		t.Fatal(err)
	}

	// WHEN relocating to the other bed on the next admission day
	moved, err := engine.Relocate(ctx, b.ID, date(t, "2026-06-05"), "6B", admin)
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}

	// THEN the slot moves and the medication order follows the patient
	if moved.Date.String() != "2026-06-05" || moved.Bed != "6B" {
		t.Errorf("moved to %s %s", moved.Date, moved.Bed)
	}
	if !moved.MedOrdered {
		t.Error("expected medication order preserved across relocation")
	}

	// AND the audit names both slots
	entries, _ := audit.Recent(ctx, 1)
	if entries[0].Action != ward.AuditRelocate {
		t.Errorf("Action = %s, want RELOCATE", entries[0].Action)
	}
	if !contains(entries[0].Detail, "2026-06-02") || !contains(entries[0].Detail, "2026-06-05") {
		t.Errorf("Detail %q missing source or destination", entries[0].Detail)
	}

	// AND the vacated slot is free
	if _, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin); err != nil {
		t.Errorf("expected vacated slot bookable, got %v", err)
	}
}

func TestEngine_Relocate_RoundTrip(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	b, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)
	if err != nil {
		t.Fatal(err)
	}

	// WHEN moving out and back while the original slot stays free
	if _, err := engine.Relocate(ctx, b.ID, date(t, "2026-06-05"), "6B", admin); err != nil {
		t.Fatalf("first Relocate: %v", err)
	}
	back, err := engine.Relocate(ctx, b.ID, date(t, "2026-06-02"), "5B", admin)

	// THEN the original slot is restored
	if err != nil {
		t.Fatalf("second Relocate: %v", err)
	}
	if back.Date.String() != "2026-06-02" || back.Bed != "5B" {
		t.Errorf("restored to %s %s, want 2026-06-02 5B", back.Date, back.Bed)
	}

	// AND each move produced its own audit entry
	entries, _ := audit.Recent(ctx, 2)
	if entries[0].Action != ward.AuditRelocate || entries[1].Action != ward.AuditRelocate {
		t.Fatalf("expected two RELOCATE entries, got %s and %s", entries[0].Action, entries[1].Action)
	}
	if entries[0].Detail == entries[1].Detail {
		t.Errorf("expected distinct move details, both %q", entries[0].Detail)
	}

	// BUT the return trip conflicts once someone takes the vacated slot
	if _, err := engine.Relocate(ctx, b.ID, date(t, "2026-06-05"), "6B", admin); err != nil {
		t.Fatal(err)
	}
	in := inpatientInput(t, "2026-06-02", "5B")
	in.PatientName = "Chen"
	if _, err := engine.Create(ctx, in, admin); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Relocate(ctx, b.ID, date(t, "2026-06-02"), "5B", admin); !errors.Is(err, ward.ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken on the occupied return slot, got %v", err)
	}
}

func TestEngine_Relocate_OutpatientKeepsNoBed(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	out, err := engine.Create(ctx, outpatientInput(t, "2026-06-01", "10"), admin)
	if err != nil {
		t.Fatal(err)
	}

	// Outpatient bookings never acquire a bed, by relocation or update.
	if _, err := engine.Relocate(ctx, out.ID, date(t, "2026-06-03"), "5B", admin); !errors.Is(err, ward.ErrInvalidInput) {
		t.Errorf("relocate: expected ErrInvalidInput, got %v", err)
	}
	bed := ward.Bed("5B")
	if _, err := engine.Update(ctx, out.ID, ward.UpdateInput{Bed: &bed}, admin); !errors.Is(err, ward.ErrInvalidInput) {
		t.Errorf("update: expected ErrInvalidInput, got %v", err)
	}

	// Moving to another outpatient day without a bed still works.
	moved, err := engine.Relocate(ctx, out.ID, date(t, "2026-06-03"), ward.BedNone, admin)
	if err != nil {
		t.Fatalf("Relocate: %v", err)
	}
	if moved.Bed != ward.BedNone {
		t.Errorf("Bed = %q, want none", moved.Bed)
	}
}

// =============================================================================
// OVERRIDES AND MEDICATION
// =============================================================================

func TestEngine_ToggleDayOverride(t *testing.T) {
	engine, audit := newEngine(t)
	ctx := context.Background()

	// Standard users may not toggle overrides.
	err := engine.ToggleDayOverride(ctx, date(t, "2026-06-03"), "5B", true, scheduler)
	if !ward.IsForbidden(err) {
		t.Fatalf("expected denial, got %v", err)
	}

	// GIVEN a force-opened Wednesday
	if err := engine.ToggleDayOverride(ctx, date(t, "2026-06-03"), "5B", true, admin); err != nil {
		t.Fatalf("ToggleDayOverride: %v", err)
	}
	cal := engine.Calendar()
	if !cal.IsBedOpen(date(t, "2026-06-03"), "5B") || cal.IsBedOpen(date(t, "2026-06-03"), "6B") {
		t.Error("expected the override scoped to 5B only")
	}

	// THEN a standard user can book the opened bed: the override, not any
	// administrator privilege, is what opened the slot
	if _, err := engine.Create(ctx, inpatientInput(t, "2026-06-03", "5B"), scheduler); err != nil {
		t.Errorf("expected force-opened slot bookable by a standard user, got %v", err)
	}
	in := inpatientInput(t, "2026-06-03", "6B")
	if _, err := engine.Create(ctx, in, scheduler); !errors.Is(err, ward.ErrSlotClosed) {
		t.Errorf("expected 6B still closed, got %v", err)
	}

	// AND the trail reads OVERRIDE then CREATE
	entries, _ := audit.Recent(ctx, 2)
	if entries[0].Action != ward.AuditCreate || entries[0].ActorID != "user" {
		t.Errorf("newest entry = %s by %s, want CREATE by user", entries[0].Action, entries[0].ActorID)
	}
	if entries[1].Action != ward.AuditOverride || entries[1].ActorID != "admin" {
		t.Errorf("prior entry = %s by %s, want OVERRIDE by admin", entries[1].Action, entries[1].ActorID)
	}
}

func TestEngine_ToggleDayOverride_OccupiedSlot(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if _, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin); err != nil {
		t.Fatal(err)
	}

	// Closing an occupied bed must fail, whatever the caller's UI shows.
	err := engine.ToggleDayOverride(ctx, date(t, "2026-06-02"), "5B", false, admin)
	if !errors.Is(err, ward.ErrSlotTaken) {
		t.Errorf("per-bed: expected ErrSlotTaken, got %v", err)
	}
	err = engine.ToggleDayOverride(ctx, date(t, "2026-06-02"), ward.OverrideScopeAll, false, admin)
	if !errors.Is(err, ward.ErrSlotTaken) {
		t.Errorf("all-beds: expected ErrSlotTaken, got %v", err)
	}

	// The free bed can still be closed individually.
	if err := engine.ToggleDayOverride(ctx, date(t, "2026-06-02"), "6B", false, admin); err != nil {
		t.Errorf("expected free bed closable, got %v", err)
	}
}

func TestEngine_ToggleMedicationOrder(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	b, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)
	if err != nil {
		t.Fatal(err)
	}

	// Standard users lack the medication permission.
	if _, err := engine.ToggleMedicationOrder(ctx, b.ID, scheduler); !ward.IsForbidden(err) {
		t.Errorf("expected standard user denied, got %v", err)
	}

	// The pharmacist can order and cancel.
	on, err := engine.ToggleMedicationOrder(ctx, b.ID, pharmacist)
	if err != nil || !on.MedOrdered {
		t.Fatalf("expected order confirmed, got %v (%+v)", err, on)
	}
	off, err := engine.ToggleMedicationOrder(ctx, b.ID, pharmacist)
	if err != nil || off.MedOrdered {
		t.Fatalf("expected order cancelled, got %v (%+v)", err, off)
	}

	// Outpatient bookings carry no medication order.
	out, err := engine.Create(ctx, outpatientInput(t, "2026-06-01", "10"), admin)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.ToggleMedicationOrder(ctx, out.ID, pharmacist); !errors.Is(err, ward.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for outpatient, got %v", err)
	}
}

// =============================================================================
// CONFIGURATION AND VIEWS
// =============================================================================

func TestEngine_SetLockDays(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if err := engine.SetLockDays(ctx, ward.LockConfig{InpatientDays: 7}, scheduler); !ward.IsForbidden(err) {
		t.Fatalf("expected denial, got %v", err)
	}
	if err := engine.SetLockDays(ctx, ward.LockConfig{InpatientDays: 91}, admin); !errors.Is(err, ward.ErrInvalidInput) {
		t.Fatalf("expected range rejection, got %v", err)
	}

	// GIVEN the window shortened to 7 days
	if err := engine.SetLockDays(ctx, ward.LockConfig{InpatientDays: 7}, admin); err != nil {
		t.Fatal(err)
	}

	// THEN a standard user can book the Friday 7 days out
	if _, err := engine.Create(ctx, inpatientInput(t, "2026-05-08", "5B"), scheduler); err != nil {
		t.Errorf("expected create allowed after shortening, got %v", err)
	}
}

// faultyConfig fails durable writes on demand, standing in for a full
// disk or locked database file.
type faultyConfig struct {
	*store.MemoryConfig
	fail bool
}

func (c *faultyConfig) SaveOverride(ctx context.Context, date ward.Date, scope string, open bool) error {
	if c.fail {
		return errors.New("disk full")
	}
	return c.MemoryConfig.SaveOverride(ctx, date, scope, open)
}

func (c *faultyConfig) SaveHoliday(ctx context.Context, date ward.Date) error {
	if c.fail {
		return errors.New("disk full")
	}
	return c.MemoryConfig.SaveHoliday(ctx, date)
}

func (c *faultyConfig) RemoveHoliday(ctx context.Context, date ward.Date) error {
	if c.fail {
		return errors.New("disk full")
	}
	return c.MemoryConfig.RemoveHoliday(ctx, date)
}

func TestEngine_ConfigPersistFailureLeavesCalendarUnchanged(t *testing.T) {
	audit := store.NewMemoryAudit()
	engine := ward.NewEngine(store.NewMemory(), audit)
	engine.Today = func() ward.Date { return date(t, "2026-05-01") }
	cfg := &faultyConfig{MemoryConfig: store.NewMemoryConfig(), fail: true}
	if err := engine.WithConfigStore(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// WHEN force-closing a bed fails to persist
	if err := engine.ToggleDayOverride(ctx, date(t, "2026-06-02"), "5B", false, admin); err == nil {
		t.Fatal("expected persistence error")
	}

	// THEN the slot is still open and nothing was audited
	if _, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin); err != nil {
		t.Errorf("expected slot untouched by the failed override, got %v", err)
	}
	if n := auditCount(t, audit); n != 1 { // the CREATE only
		t.Errorf("audit entries = %d, want 1", n)
	}

	// AND a failed holiday write leaves the holiday table unchanged
	if err := engine.AddHoliday(ctx, date(t, "2026-06-05"), admin); err == nil {
		t.Fatal("expected persistence error")
	}
	if engine.Calendar().Holidays.Contains(date(t, "2026-06-05")) {
		t.Error("expected failed holiday write not to stick")
	}
	if err := engine.RemoveHoliday(ctx, date(t, "2026-10-02"), admin); err == nil {
		t.Fatal("expected persistence error")
	}
	if !engine.Calendar().Holidays.Contains(date(t, "2026-10-02")) {
		t.Error("expected failed holiday removal not to stick")
	}
}

// faultyAudit fails appends on demand.
type faultyAudit struct {
	*store.MemoryAudit
	fail bool
}

func (a *faultyAudit) Append(ctx context.Context, entry ward.AuditEntry) error {
	if a.fail {
		return errors.New("audit log unavailable")
	}
	return a.MemoryAudit.Append(ctx, entry)
}

func TestEngine_AuditFailureRollsBackTheWrite(t *testing.T) {
	index := store.NewMemory()
	audit := &faultyAudit{MemoryAudit: store.NewMemoryAudit()}
	engine := ward.NewEngine(index, audit)
	engine.Today = func() ward.Date { return date(t, "2026-05-01") }
	ctx := context.Background()

	// A create that cannot be audited does not land.
	audit.fail = true
	if _, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin); err == nil {
		t.Fatal("expected audit failure surfaced")
	}
	if occupant, _ := index.FindByDateBed(ctx, date(t, "2026-06-02"), "5B"); occupant != nil {
		t.Error("expected the unaudited create rolled back")
	}

	audit.fail = false
	b, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin)
	if err != nil {
		t.Fatal(err)
	}

	// A delete that cannot be audited restores the booking.
	audit.fail = true
	if err := engine.Delete(ctx, b.ID, admin); err == nil {
		t.Fatal("expected audit failure surfaced")
	}
	if got, _ := index.FindByID(ctx, b.ID); got == nil {
		t.Error("expected the unaudited delete restored")
	}

	// A relocate that cannot be audited keeps the original slot.
	if _, err := engine.Relocate(ctx, b.ID, date(t, "2026-06-05"), "6B", admin); err == nil {
		t.Fatal("expected audit failure surfaced")
	}
	got, _ := index.FindByID(ctx, b.ID)
	if got == nil || got.Date.String() != "2026-06-02" || got.Bed != "5B" {
		t.Errorf("expected the unaudited relocate unwound, got %+v", got)
	}
}

func TestEngine_NextAvailableSlots(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	slots, err := engine.NextAvailableSlots(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 4 {
		t.Fatalf("slots = %d, want 4", len(slots))
	}

	// Days inside the 21-day window are skipped entirely: the first
	// admission day at or past 2026-05-22 is Friday 2026-05-22.
	if slots[0].Date.String() != "2026-05-22" || slots[0].Bed != "5B" {
		t.Errorf("first slot = %s %s, want 2026-05-22 5B", slots[0].Date, slots[0].Bed)
	}
	if slots[1].Date.String() != "2026-05-22" || slots[1].Bed != "6B" {
		t.Errorf("second slot = %s %s, want 2026-05-22 6B", slots[1].Date, slots[1].Bed)
	}
	if slots[2].Date.String() != "2026-05-26" {
		t.Errorf("third slot = %s, want Tuesday 2026-05-26", slots[2].Date)
	}

	// Booked slots disappear from the suggestions.
	if _, err := engine.Create(ctx, inpatientInput(t, "2026-05-22", "5B"), admin); err != nil {
		t.Fatal(err)
	}
	slots, err = engine.NextAvailableSlots(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if slots[0].Date.String() != "2026-05-22" || slots[0].Bed != "6B" {
		t.Errorf("first slot after booking = %s %s, want 2026-05-22 6B", slots[0].Date, slots[0].Bed)
	}
}

func TestEngine_MonthViewAndStats(t *testing.T) {
	engine, _ := newEngine(t)
	ctx := context.Background()

	if _, err := engine.Create(ctx, inpatientInput(t, "2026-06-02", "5B"), admin); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Create(ctx, outpatientInput(t, "2026-06-01", "15"), admin); err != nil {
		t.Fatal(err)
	}

	days, err := engine.MonthView(ctx, 2026, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 30 {
		t.Fatalf("days = %d, want 30", len(days))
	}
	tue := days[1] // 2026-06-02
	if tue.Beds[0].Booking == nil || tue.Beds[0].Booking.PatientName != "Wang" {
		t.Error("expected booking rendered in the 5B cell")
	}
	mon := days[0]
	if !mon.OutpatientDay || len(mon.Outpatients) != 1 {
		t.Error("expected outpatient booking rendered on Monday")
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.MedPending != 1 {
		t.Errorf("MedPending = %d, want 1", stats.MedPending)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
