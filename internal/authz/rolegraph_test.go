package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T, names ...string) *Catalog {
	t.Helper()
	c := NewCatalog()
	for _, name := range names {
		require.NoError(t, c.Register(Permission{Name: name}))
	}
	return c
}

func testChainGraph(t *testing.T) *RoleGraph {
	t.Helper()
	c := testCatalog(t,
		PermDocumentsRoute, PermDocumentsDelete,
		PermIncidentsCreate, PermIncidentsAssign, PermIncidentsResolve,
	)
	g := NewRoleGraph(c)
	require.NoError(t, g.AddRole(Role{Name: "staff", Permissions: []string{PermDocumentsRoute, PermIncidentsCreate}}))
	require.NoError(t, g.AddRole(Role{Name: "secretary", Inherits: "staff", Permissions: []string{PermDocumentsDelete}}))
	require.NoError(t, g.AddRole(Role{Name: "deputy", Inherits: "secretary", Permissions: []string{PermIncidentsAssign}}))
	require.NoError(t, g.AddRole(Role{Name: "lead", Inherits: "deputy", Permissions: []string{PermIncidentsResolve}}))
	return g
}

func TestResolveUnionsInheritanceChain(t *testing.T) {
	g := testChainGraph(t)

	set, err := g.Resolve("lead")
	require.NoError(t, err)
	require.True(t, set.Has(PermDocumentsRoute), "lead must inherit documents.route from staff")
	require.True(t, set.Has(PermDocumentsDelete))
	require.True(t, set.Has(PermIncidentsAssign))
	require.True(t, set.Has(PermIncidentsResolve))
}

func TestResolveChildIsSupersetOfParent(t *testing.T) {
	g := testChainGraph(t)
	chain := []string{"staff", "secretary", "deputy", "lead"}
	for i := 1; i < len(chain); i++ {
		parent, err := g.Resolve(chain[i-1])
		require.NoError(t, err)
		child, err := g.Resolve(chain[i])
		require.NoError(t, err)
		for perm := range parent {
			require.True(t, child.Has(perm), "%s should carry %s from %s", chain[i], perm, chain[i-1])
		}
	}
}

func TestResolveIsOrderIndependent(t *testing.T) {
	// Resolving siblings in different orders must give identical sets.
	forward := testChainGraph(t)
	var forwardSets []PermissionSet
	for _, role := range []string{"staff", "secretary", "deputy", "lead"} {
		set, err := forward.Resolve(role)
		require.NoError(t, err)
		forwardSets = append(forwardSets, set)
	}

	backward := testChainGraph(t)
	var backwardSets []PermissionSet
	for _, role := range []string{"lead", "deputy", "secretary", "staff"} {
		set, err := backward.Resolve(role)
		require.NoError(t, err)
		backwardSets = append(backwardSets, set)
	}

	for i := range forwardSets {
		require.Equal(t, forwardSets[i].Names(), backwardSets[len(backwardSets)-1-i].Names())
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	g := testChainGraph(t)
	first, err := g.Resolve("deputy")
	require.NoError(t, err)
	second, err := g.Resolve("deputy")
	require.NoError(t, err)
	require.Equal(t, first.Names(), second.Names())
}

func TestGrantsAllTracksLiveCatalog(t *testing.T) {
	c := testCatalog(t, PermDocumentsRoute)
	g := NewRoleGraph(c)
	require.NoError(t, g.AddRole(Role{Name: "super_admin", GrantsAll: true}))

	set, err := g.Resolve("super_admin")
	require.NoError(t, err)
	require.Equal(t, []string{PermDocumentsRoute}, set.Names())

	// A permission registered after the first resolve must appear: grants-all
	// is lazy, never a snapshot.
	require.NoError(t, c.Register(Permission{Name: PermSystemAdmin}))
	set, err = g.Resolve("super_admin")
	require.NoError(t, err)
	require.True(t, set.Has(PermSystemAdmin))
	require.Equal(t, c.Len(), len(set))
}

func TestGrantsAllInheritorsTrackLiveCatalog(t *testing.T) {
	c := testCatalog(t, PermDocumentsRoute)
	g := NewRoleGraph(c)
	require.NoError(t, g.AddRole(Role{Name: "super_admin", GrantsAll: true}))
	require.NoError(t, g.AddRole(Role{Name: "admin", Inherits: "super_admin"}))
	require.NoError(t, g.AddRole(Role{Name: "auditor", Inherits: "admin", Permissions: []string{PermDocumentsRoute}}))

	set, err := g.Resolve("auditor")
	require.NoError(t, err)
	require.Equal(t, []string{PermDocumentsRoute}, set.Names())

	// Registering a permission after the first resolve must reach every role
	// inheriting the grants-all role, not just the grants-all role itself.
	require.NoError(t, c.Register(Permission{Name: PermSystemAdmin}))
	for _, role := range []string{"super_admin", "admin", "auditor"} {
		set, err = g.Resolve(role)
		require.NoError(t, err)
		require.True(t, set.Has(PermSystemAdmin), "%s must see the new permission", role)
		require.Equal(t, c.Len(), len(set))
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	c := testCatalog(t, PermDocumentsRoute)
	g := NewRoleGraph(c)
	require.NoError(t, g.AddRole(Role{Name: "a", Inherits: "b"}))
	require.NoError(t, g.AddRole(Role{Name: "b", Inherits: "a"}))

	_, err := g.Resolve("a")
	require.ErrorIs(t, err, ErrCycleDetected)
	require.ErrorIs(t, g.Validate(), ErrCycleDetected)
}

func TestSetRoleParentRejectsCycle(t *testing.T) {
	g := testChainGraph(t)
	err := g.SetRoleParent("staff", "lead")
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestResolveUnknownRole(t *testing.T) {
	g := testChainGraph(t)
	_, err := g.Resolve("contractor")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestMutationInvalidatesDependents(t *testing.T) {
	g := testChainGraph(t)

	lead, err := g.Resolve("lead")
	require.NoError(t, err)
	require.True(t, lead.Has(PermDocumentsRoute))

	// Dropping a permission from the base role must propagate to every role
	// that transitively inherits it.
	require.NoError(t, g.SetRolePermissions("staff", false, []string{PermIncidentsCreate}))

	lead, err = g.Resolve("lead")
	require.NoError(t, err)
	require.False(t, lead.Has(PermDocumentsRoute))
	require.True(t, lead.Has(PermIncidentsCreate))
}

func TestSetRolePermissionsRejectsUnknownPermission(t *testing.T) {
	g := testChainGraph(t)
	err := g.SetRolePermissions("staff", false, []string{"documents.teleport"})
	require.ErrorIs(t, err, ErrUnknownPermission)
}
