// Package store provides in-memory implementations of the ward storage
// interfaces. The memory store is the authoritative deployment target;
// SQLite (store/sqlite) is optional durability.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/ward-engine/ward"
)

// =============================================================================
// MEMORY SCHEDULE INDEX
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	bookings map[ward.BookingID]ward.Booking
}

func NewMemory() *Memory {
	return &Memory{bookings: make(map[ward.BookingID]ward.Booking)}
}

func (m *Memory) FindByID(_ context.Context, id ward.BookingID) (*ward.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) FindByDateBed(_ context.Context, date ward.Date, bed ward.Bed) (*ward.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.bookings {
		if b.Occupies(date, bed) {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindByDate(_ context.Context, date ward.Date) ([]ward.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ward.Booking
	for _, b := range m.bookings {
		if b.Date.Equal(date) {
			result = append(result, b)
		}
	}
	sortByBed(result)
	return result, nil
}

func (m *Memory) List(_ context.Context) ([]ward.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ward.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		result = append(result, b)
	}
	// Date-descending, newest schedule first.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[j].Date.Before(result[i].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) ListRange(_ context.Context, from, to ward.Date, category ward.Category) ([]ward.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ward.Booking
	for _, b := range m.bookings {
		if category != "" && b.Category != category {
			continue
		}
		if from.BeforeOrEqual(b.Date) && b.Date.BeforeOrEqual(to) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if result[i].Bed != result[j].Bed {
			return result[i].Bed < result[j].Bed
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) NextID(_ context.Context) (ward.BookingID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var max ward.BookingID
	for id := range m.bookings {
		if id > max {
			max = id
		}
	}
	return max + 1, nil
}

func (m *Memory) Insert(_ context.Context, b ward.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *Memory) Replace(_ context.Context, b ward.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *Memory) Remove(_ context.Context, id ward.BookingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookings, id)
	return nil
}

func sortByBed(bs []ward.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Bed != bs[j].Bed {
			return bs[i].Bed < bs[j].Bed
		}
		return bs[i].ID < bs[j].ID
	})
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

// MemoryAudit stores audit entries newest-first. Append-only.
type MemoryAudit struct {
	mu      sync.RWMutex
	entries []ward.AuditEntry // index 0 is the newest entry
	nextSeq int64
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{nextSeq: 1}
}

func (a *MemoryAudit) Append(_ context.Context, entry ward.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry.Seq = a.nextSeq
	a.nextSeq++
	a.entries = append([]ward.AuditEntry{entry}, a.entries...)
	return nil
}

func (a *MemoryAudit) Recent(_ context.Context, n int) ([]ward.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if n <= 0 || n > len(a.entries) {
		n = len(a.entries)
	}
	result := make([]ward.AuditEntry, n)
	copy(result, a.entries[:n])
	return result, nil
}

func (a *MemoryAudit) FilterByRange(_ context.Context, start, end time.Time) ([]ward.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []ward.AuditEntry
	for _, e := range a.entries {
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			result = append(result, e)
		}
	}
	return result, nil
}

// =============================================================================
// MEMORY CONFIG STORE
// =============================================================================

// MemoryConfig keeps runtime configuration in process memory. Useful in
// tests that exercise the write-through path without a database.
type MemoryConfig struct {
	mu        sync.RWMutex
	overrides ward.Overrides
	holidays  ward.HolidaySet
	lock      *ward.LockConfig
}

func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		overrides: make(ward.Overrides),
		holidays:  make(ward.HolidaySet),
	}
}

func (c *MemoryConfig) SaveOverride(_ context.Context, date ward.Date, scope string, open bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides.Set(date, scope, open)
	return nil
}

func (c *MemoryConfig) LoadOverrides(_ context.Context) (ward.Overrides, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.overrides) == 0 {
		return nil, nil
	}
	return c.overrides.Clone(), nil
}

func (c *MemoryConfig) SaveLockConfig(_ context.Context, cfg ward.LockConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lock = &cfg
	return nil
}

func (c *MemoryConfig) LoadLockConfig(_ context.Context) (*ward.LockConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lock == nil {
		return nil, nil
	}
	cfg := *c.lock
	return &cfg, nil
}

func (c *MemoryConfig) SaveHoliday(_ context.Context, date ward.Date) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays.Add(date)
	return nil
}

func (c *MemoryConfig) RemoveHoliday(_ context.Context, date ward.Date) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holidays.Remove(date)
	return nil
}

func (c *MemoryConfig) LoadHolidays(_ context.Context) (ward.HolidaySet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.holidays) == 0 {
		return nil, nil
	}
	out := make(ward.HolidaySet, len(c.holidays))
	for k, v := range c.holidays {
		out[k] = v
	}
	return out, nil
}
