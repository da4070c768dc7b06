package authz

import (
	"fmt"
	"sync"
)

// GrantsAll is the sentinel marking a role that resolves to every permission
// currently in the catalog. It is evaluated lazily, never snapshotted.
const GrantsAll = "all"

// Role is one node of the inheritance chain. A role optionally inherits a
// single parent role and unions the parent's resolved set with its own.
type Role struct {
	Name        string
	Inherits    string // empty for base roles
	GrantsAll   bool
	Permissions []string
}

// RoleGraph resolves effective permission sets over the inheritance chain.
// Resolution is memoized per role until the configuration changes.
type RoleGraph struct {
	mu      sync.RWMutex
	catalog *Catalog
	roles   map[string]*Role
	memo    map[string]PermissionSet
}

// NewRoleGraph builds an empty graph over the given catalog.
func NewRoleGraph(catalog *Catalog) *RoleGraph {
	return &RoleGraph{
		catalog: catalog,
		roles:   make(map[string]*Role),
		memo:    make(map[string]PermissionSet),
	}
}

// AddRole registers a role definition. Permission names must exist in the
// catalog unless the role grants all.
func (g *RoleGraph) AddRole(role Role) error {
	if role.Name == "" {
		return fmt.Errorf("authz: role name required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.roles[role.Name]; ok {
		return fmt.Errorf("authz: role %s already defined", role.Name)
	}
	if !role.GrantsAll {
		for _, perm := range role.Permissions {
			if !g.catalog.Has(perm) {
				return fmt.Errorf("%w: %s (role %s)", ErrUnknownPermission, perm, role.Name)
			}
		}
	}
	r := role
	g.roles[role.Name] = &r
	return nil
}

// SetRolePermissions replaces a role's declared permissions and invalidates
// the memoized sets of the role and every role inheriting from it.
func (g *RoleGraph) SetRolePermissions(name string, grantsAll bool, permissions []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	role, ok := g.roles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	if !grantsAll {
		for _, perm := range permissions {
			if !g.catalog.Has(perm) {
				return fmt.Errorf("%w: %s (role %s)", ErrUnknownPermission, perm, name)
			}
		}
	}
	role.GrantsAll = grantsAll
	role.Permissions = append([]string(nil), permissions...)
	g.invalidateLocked(name)
	return nil
}

// SetRoleParent changes a role's inheritance and invalidates dependents.
// The change is rejected if it would introduce a cycle.
func (g *RoleGraph) SetRoleParent(name, parent string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	role, ok := g.roles[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	if parent != "" {
		if _, ok := g.roles[parent]; !ok {
			return fmt.Errorf("%w: %s (parent of %s)", ErrUnknownRole, parent, name)
		}
		for cursor := parent; cursor != ""; {
			if cursor == name {
				return fmt.Errorf("%w: %s", ErrCycleDetected, name)
			}
			next, ok := g.roles[cursor]
			if !ok {
				break
			}
			cursor = next.Inherits
		}
	}
	role.Inherits = parent
	g.invalidateLocked(name)
	return nil
}

// Role returns the declared definition of a role.
func (g *RoleGraph) Role(name string) (Role, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	role, ok := g.roles[name]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	return *role, nil
}

// RoleNames lists every defined role.
func (g *RoleGraph) RoleNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.roles))
	for name := range g.roles {
		names = append(names, name)
	}
	return names
}

// Resolve returns the effective permission set for a role: the union of the
// role's own permissions and its transitively inherited ones. Callers must
// treat the returned set as read-only.
func (g *RoleGraph) Resolve(name string) (PermissionSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveLocked(name, nil)
}

// Validate resolves every role once, surfacing cycles and unknown parents at
// configuration load time rather than on first use.
func (g *RoleGraph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name := range g.roles {
		if _, err := g.resolveLocked(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func (g *RoleGraph) resolveLocked(name string, chain []string) (PermissionSet, error) {
	set, _, err := g.resolveChainLocked(name, chain)
	return set, err
}

// resolveChainLocked reports, alongside the set, whether the role or any
// ancestor grants all. Such sets track the live catalog and must never be
// memoized, or a later Register would grow the parent but not the child.
func (g *RoleGraph) resolveChainLocked(name string, chain []string) (PermissionSet, bool, error) {
	for _, seen := range chain {
		if seen == name {
			return nil, false, fmt.Errorf("%w: %s", ErrCycleDetected, name)
		}
	}
	role, ok := g.roles[name]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}

	if role.GrantsAll {
		set := make(PermissionSet, g.catalog.Len())
		set.add(g.catalog.Names()...)
		return set, true, nil
	}

	if cached, ok := g.memo[name]; ok {
		return cached, false, nil
	}

	set := make(PermissionSet, len(role.Permissions))
	set.add(role.Permissions...)
	live := false
	if role.Inherits != "" {
		parent, parentLive, err := g.resolveChainLocked(role.Inherits, append(chain, name))
		if err != nil {
			return nil, false, err
		}
		live = parentLive
		for perm := range parent {
			set[perm] = struct{}{}
		}
	}
	if !live {
		g.memo[name] = set
	}
	return set, live, nil
}

// invalidateLocked drops the memo for a role and all transitive inheritors.
func (g *RoleGraph) invalidateLocked(name string) {
	stale := map[string]struct{}{name: {}}
	for changed := true; changed; {
		changed = false
		for candidate, role := range g.roles {
			if _, done := stale[candidate]; done {
				continue
			}
			if _, ok := stale[role.Inherits]; ok {
				stale[candidate] = struct{}{}
				changed = true
			}
		}
	}
	for role := range stale {
		delete(g.memo, role)
	}
}
