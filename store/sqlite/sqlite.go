/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Optional durability for deployments that must survive a restart. The
  in-memory store remains the reference implementation; this one persists
  the same data with identical ordering semantics.

INTERFACES IMPLEMENTED:
  ward.ScheduleIndex:  Booking collection
  ward.AuditLog:       Append-only mutation record
  ward.ConfigStore:    Overrides, holidays, lock configuration
  identity.Directory:  User accounts

APPEND-ONLY ENFORCEMENT:
  The audit_log table is written with INSERT only. No UPDATE statements,
  no DELETE statements, ever.

KEY TABLES:
  bookings:   Current schedule, one row per booking
  audit_log:  Immutable record of accepted mutations
  overrides:  Per-date/per-bed open-close exceptions
  holidays:   Designated closed dates
  config:     Lock-day settings, key-value
  users:      Accounts and roles

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ward.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ward/store.go: Interface definitions
  - ward/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/ward-engine/identity"
	"github.com/warp/ward-engine/ward"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY,
		date TEXT NOT NULL,
		bed TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		chart_no TEXT NOT NULL,
		patient_name TEXT NOT NULL,
		dose TEXT NOT NULL,
		doctor TEXT NOT NULL,
		med_form TEXT NOT NULL,
		adjunct_prep BOOLEAN NOT NULL DEFAULT FALSE,
		med_ordered BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_by TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date);

	-- One inpatient booking per (date, bed). Outpatient rows carry an
	-- empty bed and stay outside the constraint.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_slot
		ON bookings(date, bed) WHERE bed != '';

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		target_kind TEXT NOT NULL,
		target_id TEXT NOT NULL,
		detail TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);

	CREATE TABLE IF NOT EXISTS overrides (
		date TEXT NOT NULL,
		scope TEXT NOT NULL,
		open BOOLEAN NOT NULL,
		PRIMARY KEY (date, scope)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		date TEXT PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEDULE INDEX (ward.ScheduleIndex interface)
// =============================================================================

const bookingColumns = `id, date, bed, category, chart_no, patient_name, dose,
	doctor, med_form, adjunct_prep, med_ordered, created_by, created_at, updated_by, updated_at`

func (s *Store) FindByID(ctx context.Context, id ward.BookingID) (*ward.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ?", int64(id))
	return scanOneBooking(row)
}

func (s *Store) FindByDateBed(ctx context.Context, date ward.Date, bed ward.Bed) (*ward.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE date = ? AND bed = ? AND category = ?",
		date.String(), string(bed), string(ward.CategoryInpatient))
	return scanOneBooking(row)
}

func (s *Store) FindByDate(ctx context.Context, date ward.Date) ([]ward.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE date = ? ORDER BY bed, id",
		date.String())
}

func (s *Store) List(ctx context.Context) ([]ward.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings ORDER BY date DESC, id")
}

func (s *Store) ListRange(ctx context.Context, from, to ward.Date, category ward.Category) ([]ward.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if category == "" {
		return s.queryBookings(ctx,
			"SELECT "+bookingColumns+" FROM bookings WHERE date >= ? AND date <= ? ORDER BY date, bed, id",
			from.String(), to.String())
	}
	return s.queryBookings(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE date >= ? AND date <= ? AND category = ? ORDER BY date, bed, id",
		from.String(), to.String(), string(category))
}

func (s *Store) NextID(ctx context.Context) (ward.BookingID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM bookings").Scan(&max)
	if err != nil {
		return 0, err
	}
	return ward.BookingID(max.Int64) + 1, nil
}

func (s *Store) Insert(ctx context.Context, b ward.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO bookings
		(id, date, bed, category, chart_no, patient_name, dose, doctor, med_form,
		 adjunct_prep, med_ordered, created_by, created_at, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		int64(b.ID), b.Date.String(), string(b.Bed), string(b.Category),
		b.ChartNo, b.PatientName, b.Dose.String(), b.Doctor, string(b.MedForm),
		b.AdjunctPrep, b.MedOrdered,
		b.CreatedBy, b.CreatedAt.UTC().Format(time.RFC3339),
		b.UpdatedBy, b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, b ward.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE bookings SET
			date = ?, bed = ?, category = ?, chart_no = ?, patient_name = ?,
			dose = ?, doctor = ?, med_form = ?, adjunct_prep = ?, med_ordered = ?,
			updated_by = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		b.Date.String(), string(b.Bed), string(b.Category), b.ChartNo, b.PatientName,
		b.Dose.String(), b.Doctor, string(b.MedForm), b.AdjunctPrep, b.MedOrdered,
		b.UpdatedBy, b.UpdatedAt.UTC().Format(time.RFC3339),
		int64(b.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id ward.BookingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM bookings WHERE id = ?", int64(id))
	return err
}

func (s *Store) queryBookings(ctx context.Context, query string, args ...any) ([]ward.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []ward.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (ward.Booking, error) {
	var (
		b                    ward.Booking
		id                   int64
		dateStr, doseStr     string
		createdAt, updatedAt string
	)
	err := r.Scan(
		&id, &dateStr, (*string)(&b.Bed), (*string)(&b.Category),
		&b.ChartNo, &b.PatientName, &doseStr, &b.Doctor, (*string)(&b.MedForm),
		&b.AdjunctPrep, &b.MedOrdered,
		&b.CreatedBy, &createdAt, &b.UpdatedBy, &updatedAt,
	)
	if err != nil {
		return b, err
	}

	b.ID = ward.BookingID(id)
	b.Date, err = ward.ParseDate(dateStr)
	if err != nil {
		return b, fmt.Errorf("failed to scan booking date: %w", err)
	}
	b.Dose, err = decimal.NewFromString(doseStr)
	if err != nil {
		return b, fmt.Errorf("failed to scan booking dose: %w", err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return b, nil
}

func scanOneBooking(row *sql.Row) (*ward.Booking, error) {
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// =============================================================================
// AUDIT LOG (ward.AuditLog interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, entry ward.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (actor_id, action, target_kind, target_id, detail, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ActorID, string(entry.Action), entry.TargetKind, entry.TargetID,
		entry.Detail, entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, n int) ([]ward.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		n = -1 // no LIMIT
	}
	return s.queryAudit(ctx,
		`SELECT seq, actor_id, action, target_kind, target_id, detail, timestamp
		 FROM audit_log ORDER BY seq DESC LIMIT ?`, n)
}

func (s *Store) FilterByRange(ctx context.Context, start, end time.Time) ([]ward.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAudit(ctx,
		`SELECT seq, actor_id, action, target_kind, target_id, detail, timestamp
		 FROM audit_log WHERE timestamp >= ? AND timestamp <= ? ORDER BY seq DESC`,
		start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
}

func (s *Store) queryAudit(ctx context.Context, query string, args ...any) ([]ward.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []ward.AuditEntry
	for rows.Next() {
		var e ward.AuditEntry
		var ts string
		if err := rows.Scan(&e.Seq, &e.ActorID, (*string)(&e.Action),
			&e.TargetKind, &e.TargetID, &e.Detail, &ts); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// CONFIG STORE (ward.ConfigStore interface)
// =============================================================================

func (s *Store) SaveOverride(ctx context.Context, date ward.Date, scope string, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO overrides (date, scope, open) VALUES (?, ?, ?)
		 ON CONFLICT(date, scope) DO UPDATE SET open = excluded.open`,
		date.String(), scope, open)
	return err
}

func (s *Store) LoadOverrides(ctx context.Context) (ward.Overrides, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT date, scope, open FROM overrides")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make(ward.Overrides)
	for rows.Next() {
		var dateStr, scope string
		var open bool
		if err := rows.Scan(&dateStr, &scope, &open); err != nil {
			return nil, err
		}
		date, err := ward.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		overrides.Set(date, scope, open)
	}
	if len(overrides) == 0 {
		return nil, rows.Err()
	}
	return overrides, rows.Err()
}

func (s *Store) SaveLockConfig(ctx context.Context, cfg ward.LockConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range map[string]int{
		"lock_days_inpatient":  cfg.InpatientDays,
		"lock_days_outpatient": cfg.OutpatientDays,
	} {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO config (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LoadLockConfig(ctx context.Context) (*ward.LockConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM config WHERE key IN ('lock_days_inpatient', 'lock_days_outpatient')")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cfg ward.LockConfig
	found := false
	for rows.Next() {
		var key string
		var value int
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		found = true
		switch key {
		case "lock_days_inpatient":
			cfg.InpatientDays = value
		case "lock_days_outpatient":
			cfg.OutpatientDays = value
		}
	}
	if !found {
		return nil, rows.Err()
	}
	return &cfg, rows.Err()
}

func (s *Store) SaveHoliday(ctx context.Context, date ward.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO holidays (date) VALUES (?) ON CONFLICT(date) DO NOTHING",
		date.String())
	return err
}

func (s *Store) RemoveHoliday(ctx context.Context, date ward.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE date = ?", date.String())
	return err
}

func (s *Store) LoadHolidays(ctx context.Context) (ward.HolidaySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT date FROM holidays")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(ward.HolidaySet)
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, err
		}
		set[dateStr] = true
	}
	if len(set) == 0 {
		return nil, rows.Err()
	}
	return set, rows.Err()
}

// =============================================================================
// USER DIRECTORY (identity.Directory interface)
// =============================================================================

// Users adapts the store to identity.Directory. List is already taken by
// the schedule index, so the directory view renames it.
type Users struct{ *Store }

func (u Users) List(ctx context.Context) ([]ward.Actor, error) {
	return u.ListUsers(ctx)
}

func (s *Store) Get(ctx context.Context, username string) (*ward.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a ward.Actor
	err := s.db.QueryRowContext(ctx,
		"SELECT username, name, role, is_active FROM users WHERE username = ?",
		username,
	).Scan(&a.Username, &a.Name, (*string)(&a.Role), &a.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]ward.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT username, name, role, is_active FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []ward.Actor
	for rows.Next() {
		var a ward.Actor
		if err := rows.Scan(&a.Username, &a.Name, (*string)(&a.Role), &a.IsActive); err != nil {
			return nil, err
		}
		users = append(users, a)
	}
	return users, rows.Err()
}

func (s *Store) Create(ctx context.Context, actor ward.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, name, role, is_active) VALUES (?, ?, ?, ?)",
		actor.Username, actor.Name, string(actor.Role), actor.IsActive)
	if err != nil && isUniqueConstraintError(err) {
		return identity.ErrDuplicateUsername
	}
	return err
}

func (s *Store) Update(ctx context.Context, actor ward.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET name = ?, role = ?, is_active = ? WHERE username = ?",
		actor.Name, string(actor.Role), actor.IsActive, actor.Username)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", actor.Username, ward.ErrNotFound)
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = ? WHERE username = ?", active, username)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", username, ward.ErrNotFound)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"bookings", "audit_log", "overrides", "holidays", "config", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && contains(err.Error(), "UNIQUE constraint failed")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
