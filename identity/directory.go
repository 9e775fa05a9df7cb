/*
directory.go - User directory

PURPOSE:
  Holds the known actors and their roles. The engine never reads the
  directory; callers resolve an actor here and pass it into engine
  operations. Account management is administrator-only and enforced at
  the API layer, including the rule that administrators cannot
  deactivate their own account.

SEE ALSO:
  - ward/types.go: Actor and Role
  - api/handlers.go: actor resolution per request
*/
package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/ward-engine/ward"
)

// ErrDuplicateUsername rejects a second account with the same username.
var ErrDuplicateUsername = fmt.Errorf("username already exists: %w", ward.ErrInvalidInput)

// Directory stores user accounts.
type Directory interface {
	// Get returns the account, or nil when unknown.
	Get(ctx context.Context, username string) (*ward.Actor, error)

	// List returns all accounts, sorted by username.
	List(ctx context.Context) ([]ward.Actor, error)

	// Create adds an account. Duplicate usernames are rejected.
	Create(ctx context.Context, actor ward.Actor) error

	// Update replaces an existing account's name, role, and active flag.
	Update(ctx context.Context, actor ward.Actor) error

	// SetActive flips an account's active flag.
	SetActive(ctx context.Context, username string, active bool) error
}

// =============================================================================
// MEMORY DIRECTORY
// =============================================================================

type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]ward.Actor
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]ward.Actor)}
}

// NewSeededDirectory returns a directory preloaded with the reference
// account set, used for development and tests.
func NewSeededDirectory() *MemoryDirectory {
	d := NewMemoryDirectory()
	for _, u := range []ward.Actor{
		{Username: "admin", Name: "Administrator", Role: ward.RoleAdmin, IsActive: true},
		{Username: "user", Name: "Scheduler", Role: ward.RoleUser, IsActive: true},
		{Username: "nurse01", Name: "Ward Nurse", Role: ward.RoleUser, IsActive: true},
		{Username: "doc01", Name: "Attending Physician", Role: ward.RoleUser, IsActive: true},
		{Username: "med_admin", Name: "Pharmacy", Role: ward.RolePharmacist, IsActive: true},
	} {
		d.users[u.Username] = u
	}
	return d
}

func (d *MemoryDirectory) Get(_ context.Context, username string) (*ward.Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]ward.Actor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]ward.Actor, 0, len(d.users))
	for _, u := range d.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (d *MemoryDirectory) Create(_ context.Context, actor ward.Actor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if actor.Username == "" {
		return &ward.InvalidInputError{Field: "username", Message: "is required"}
	}
	if !validRole(actor.Role) {
		return &ward.InvalidInputError{Field: "role", Message: "unknown role"}
	}
	if _, exists := d.users[actor.Username]; exists {
		return ErrDuplicateUsername
	}
	d.users[actor.Username] = actor
	return nil
}

func (d *MemoryDirectory) Update(_ context.Context, actor ward.Actor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.users[actor.Username]; !exists {
		return fmt.Errorf("user %s: %w", actor.Username, ward.ErrNotFound)
	}
	if !validRole(actor.Role) {
		return &ward.InvalidInputError{Field: "role", Message: "unknown role"}
	}
	d.users[actor.Username] = actor
	return nil
}

func (d *MemoryDirectory) SetActive(_ context.Context, username string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, exists := d.users[username]
	if !exists {
		return fmt.Errorf("user %s: %w", username, ward.ErrNotFound)
	}
	u.IsActive = active
	d.users[username] = u
	return nil
}

func validRole(r ward.Role) bool {
	switch r {
	case ward.RoleAdmin, ward.RoleUser, ward.RolePharmacist:
		return true
	}
	return false
}
