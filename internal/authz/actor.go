package authz

import "sort"

// Well-known role names seeded from the role map configuration.
const (
	RoleStaff          = "staff"
	RoleSecretary      = "secretary"
	RoleDeputyDeptHead = "deputy_dept_head"
	RoleDeptHead       = "dept_head"
	RoleAdmin          = "admin"
	RoleSuperAdmin     = "super_admin"
)

// Role tiers for privilege comparison. Lead and deputy share a tier.
const (
	TierNone       = 0
	TierStaff      = 1
	TierSecretary  = 2
	TierDeptLead   = 3
	TierAdmin      = 4
	TierSuperAdmin = 5
)

var roleTiers = map[string]int{
	RoleStaff:          TierStaff,
	RoleSecretary:      TierSecretary,
	RoleDeputyDeptHead: TierDeptLead,
	RoleDeptHead:       TierDeptLead,
	RoleAdmin:          TierAdmin,
	RoleSuperAdmin:     TierSuperAdmin,
}

// RoleTier returns the privilege tier for a role name, TierNone when unknown.
func RoleTier(role string) int {
	return roleTiers[role]
}

// Actor is the acting user as seen by the authorization engine. The engine
// reads actor identity but never mutates it.
type Actor struct {
	ID           int64
	DepartmentID int64
	Roles        []string
	IsActive     bool
}

// HasRole reports whether the actor holds any of the given roles.
func (a Actor) HasRole(names ...string) bool {
	for _, held := range a.Roles {
		for _, want := range names {
			if held == want {
				return true
			}
		}
	}
	return false
}

// Tier returns the highest tier across the actor's roles.
func (a Actor) Tier() int {
	return maxTier(a.Roles)
}

func maxTier(roles []string) int {
	tier := TierNone
	for _, r := range roles {
		if t := roleTiers[r]; t > tier {
			tier = t
		}
	}
	return tier
}

// PermissionSet is a resolved set of permission names.
type PermissionSet map[string]struct{}

// Has reports membership.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// HasAny reports whether any of the names is present.
func (s PermissionSet) HasAny(names ...string) bool {
	for _, n := range names {
		if _, ok := s[n]; ok {
			return true
		}
	}
	return false
}

func (s PermissionSet) add(names ...string) {
	for _, n := range names {
		s[n] = struct{}{}
	}
}

// Names returns the members sorted, for stable comparison in tests and logs.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
