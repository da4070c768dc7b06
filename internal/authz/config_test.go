package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const configFixture = `
permissions:
  - name: documents.route
    category: documents
    display_name: Route Documents
  - name: incidents.create
    category: incidents
  - name: system.admin
    category: system
roles:
  staff:
    permissions:
      - documents.route
      - incidents.create
  secretary:
    inherits: staff
    permissions: []
  super_admin:
    permissions: all
`

func TestParseConfigBuildsGraph(t *testing.T) {
	cfg, err := ParseConfig([]byte(configFixture))
	require.NoError(t, err)

	catalog, graph, err := cfg.Build()
	require.NoError(t, err)
	require.Equal(t, 3, catalog.Len())

	set, err := graph.Resolve("secretary")
	require.NoError(t, err)
	require.True(t, set.Has("documents.route"))

	super, err := graph.Resolve("super_admin")
	require.NoError(t, err)
	require.Equal(t, catalog.Len(), len(super))
}

func TestShippedConfigCarriesFullCatalog(t *testing.T) {
	cfg, err := LoadConfig("../../config/authz.yaml")
	require.NoError(t, err)

	catalog, graph, err := cfg.Build()
	require.NoError(t, err)

	// The catalog is declarative data and carries every permission family,
	// including ones no policy consumes yet.
	for _, name := range []string{
		PermAnnouncementsCreate,
		PermMessagesSendDept, PermMessagesSendAll, PermMessagesSendDirect, PermMessagesView,
		PermSchedulesManageOwn, PermSchedulesManageDept, PermSchedulesView,
		PermAnalyticsView,
		PermExportDeptData,
	} {
		_, err := catalog.Get(name)
		require.NoError(t, err, "catalog must carry %s", name)
	}

	staff, err := graph.Resolve(RoleStaff)
	require.NoError(t, err)
	require.True(t, staff.Has(PermMessagesSendDept))
	require.True(t, staff.Has(PermSchedulesManageOwn))
	require.False(t, staff.Has(PermMessagesSendAll))

	secretary, err := graph.Resolve(RoleSecretary)
	require.NoError(t, err)
	require.True(t, secretary.Has(PermAnnouncementsCreate))
	require.True(t, secretary.Has(PermAnalyticsView))
	require.True(t, secretary.Has(PermExportDeptData))

	deputy, err := graph.Resolve(RoleDeputyDeptHead)
	require.NoError(t, err)
	require.True(t, deputy.Has(PermMessagesSendAll))

	admin, err := graph.Resolve(RoleAdmin)
	require.NoError(t, err)
	require.False(t, admin.Has(PermSystemAdmin))
	require.Equal(t, catalog.Len()-1, len(admin))

	super, err := graph.Resolve(RoleSuperAdmin)
	require.NoError(t, err)
	require.Equal(t, catalog.Len(), len(super))
}

func TestParseConfigRejectsBadPermissionsValue(t *testing.T) {
	_, err := ParseConfig([]byte(`
permissions:
  - name: documents.route
roles:
  staff:
    permissions: everything
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "all")
}

func TestBuildFailsOnUnknownPermission(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
permissions:
  - name: documents.route
roles:
  staff:
    permissions:
      - documents.vanish
`))
	require.NoError(t, err)
	_, _, err = cfg.Build()
	require.ErrorIs(t, err, ErrUnknownPermission)
}

func TestBuildFailsOnInheritanceCycle(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
permissions:
  - name: documents.route
roles:
  a:
    inherits: b
    permissions: []
  b:
    inherits: a
    permissions: []
`))
	require.NoError(t, err)
	_, _, err = cfg.Build()
	require.ErrorIs(t, err, ErrCycleDetected)
}

func TestBuildFailsOnUnknownParent(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
permissions:
  - name: documents.route
roles:
  staff:
    inherits: ghost
    permissions: []
`))
	require.NoError(t, err)
	_, _, err = cfg.Build()
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseConfigRequiresPermissions(t *testing.T) {
	_, err := ParseConfig([]byte(`
roles:
  staff:
    permissions: []
`))
	require.Error(t, err)
}
