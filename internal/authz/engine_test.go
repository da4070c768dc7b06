package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	c := NewCatalog()
	for _, name := range []string{
		PermDocumentsRoute, PermDocumentsViewRouted, PermDocumentsForward,
		PermDocumentsDownload, PermDocumentsDelete,
		PermStorageUpload, PermStorageView, PermStorageDownload,
		PermStorageEdit, PermStorageDelete,
		PermIncidentsCreate, PermIncidentsView, PermIncidentsAssign, PermIncidentsResolve,
		PermVisitorsCheckIn, PermVisitorsView,
		PermRolesView, PermRolesAssign,
		PermUsersCreate, PermUsersView, PermUsersUpdate, PermUsersDeactivate, PermUsersDelete,
		PermAuditLogsView, PermSystemAdmin,
	} {
		require.NoError(t, c.Register(Permission{Name: name}))
	}

	g := NewRoleGraph(c)
	require.NoError(t, g.AddRole(Role{Name: RoleStaff, Permissions: []string{
		PermDocumentsRoute, PermDocumentsViewRouted, PermDocumentsForward, PermDocumentsDownload,
		PermStorageUpload, PermStorageView, PermStorageDownload,
		PermIncidentsCreate, PermVisitorsCheckIn,
	}}))
	require.NoError(t, g.AddRole(Role{Name: RoleSecretary, Inherits: RoleStaff, Permissions: []string{
		PermDocumentsDelete, PermStorageEdit, PermStorageDelete,
		PermIncidentsView, PermVisitorsView, PermAuditLogsView,
	}}))
	require.NoError(t, g.AddRole(Role{Name: RoleDeputyDeptHead, Inherits: RoleSecretary, Permissions: []string{
		PermIncidentsAssign, PermIncidentsResolve,
		PermRolesView, PermRolesAssign,
		PermUsersView, PermUsersUpdate, PermUsersDeactivate,
	}}))
	require.NoError(t, g.AddRole(Role{Name: RoleDeptHead, Inherits: RoleDeputyDeptHead}))
	require.NoError(t, g.AddRole(Role{Name: RoleAdmin, Permissions: []string{
		PermDocumentsRoute, PermDocumentsViewRouted, PermDocumentsForward,
		PermDocumentsDownload, PermDocumentsDelete,
		PermStorageUpload, PermStorageView, PermStorageDownload,
		PermStorageEdit, PermStorageDelete,
		PermIncidentsCreate, PermIncidentsView, PermIncidentsAssign, PermIncidentsResolve,
		PermVisitorsCheckIn, PermVisitorsView,
		PermRolesView, PermRolesAssign,
		PermUsersCreate, PermUsersView, PermUsersUpdate, PermUsersDeactivate, PermUsersDelete,
		PermAuditLogsView,
	}}))
	require.NoError(t, g.AddRole(Role{Name: RoleSuperAdmin, GrantsAll: true}))
	require.NoError(t, g.Validate())
	return NewEngine(g)
}

func actorWith(id, dept int64, roles ...string) Actor {
	return Actor{ID: id, DepartmentID: dept, Roles: roles, IsActive: true}
}

func TestCheckDeniesInactiveActor(t *testing.T) {
	e := testEngine(t)
	actor := actorWith(1, 1, RoleAdmin)
	actor.IsActive = false
	d := e.Check(context.Background(), actor, AbilityView, IncidentRef{ID: 9})
	require.False(t, d.Allowed)
	require.Equal(t, ReasonAccountInactive, d.Reason)
}

func TestCheckMissingPermission(t *testing.T) {
	e := testEngine(t)
	secretary := actorWith(7, 2, RoleSecretary)
	d := e.Check(context.Background(), secretary, AbilityAssign, IncidentRef{ID: 1, AssignedDepartmentID: 2})
	require.False(t, d.Allowed)
	require.Equal(t, ReasonMissingPermission, d.Reason)
}

func TestSuperAdminBypassesRelationshipRules(t *testing.T) {
	e := testEngine(t)
	super := actorWith(1, 1, RoleSuperAdmin)
	d := e.Check(context.Background(), super, AbilityView, DocumentRef{ID: 5, DepartmentID: 9, CreatedBy: 42, Context: ContextRouting})
	require.True(t, d.Allowed)
}

func TestSelfDeleteAlwaysDenied(t *testing.T) {
	e := testEngine(t)
	for _, roles := range [][]string{
		{RoleSuperAdmin},
		{RoleAdmin},
		{RoleDeptHead},
	} {
		actor := actorWith(10, 1, roles...)
		for _, ability := range []Ability{AbilityDelete, AbilityForceDelete} {
			d := e.Check(context.Background(), actor, ability, UserRef{ID: 10, DepartmentID: 1, Roles: roles})
			require.False(t, d.Allowed, "roles %v ability %s", roles, ability)
			require.Equal(t, ReasonOwnAccount, d.Reason)
		}
	}
}

func TestSelfDeactivateAndRoleChangeDenied(t *testing.T) {
	e := testEngine(t)
	super := actorWith(3, 1, RoleSuperAdmin)

	d := e.Check(context.Background(), super, AbilityDeactivate, UserRef{ID: 3, Roles: []string{RoleSuperAdmin}})
	require.False(t, d.Allowed)
	require.Equal(t, ReasonOwnAccount, d.Reason)

	d = e.Check(context.Background(), super, AbilityAssignRole, RoleAssignmentRef{
		Target:   UserRef{ID: 3, Roles: []string{RoleSuperAdmin}},
		RoleName: RoleStaff,
	})
	require.False(t, d.Allowed)
	require.Equal(t, ReasonOwnAccount, d.Reason)
}

func TestIncidentDeleteVetoForResolvedAndClosed(t *testing.T) {
	e := testEngine(t)
	admin := actorWith(2, 1, RoleAdmin)
	super := actorWith(3, 1, RoleSuperAdmin)

	for _, status := range []string{IncidentStatusResolved, IncidentStatusClosed} {
		for _, actor := range []Actor{admin, super} {
			d := e.Check(context.Background(), actor, AbilityDelete, IncidentRef{ID: 4, Status: status})
			require.False(t, d.Allowed, "status %s roles %v", status, actor.Roles)
			require.Contains(t, d.Reason, "resolved or closed")
		}
	}

	// Open incidents remain deletable by admins.
	d := e.Check(context.Background(), admin, AbilityDelete, IncidentRef{ID: 4, Status: IncidentStatusOpen})
	require.True(t, d.Allowed)
	d = e.Check(context.Background(), super, AbilityDelete, IncidentRef{ID: 4, Status: IncidentStatusOpen})
	require.True(t, d.Allowed)
}

func TestIncidentDeleteDeniedBelowAdmin(t *testing.T) {
	e := testEngine(t)
	lead := actorWith(5, 2, RoleDeptHead)
	d := e.Check(context.Background(), lead, AbilityDelete, IncidentRef{ID: 4, Status: IncidentStatusOpen, AssignedDepartmentID: 2})
	require.False(t, d.Allowed)
}

func TestIncidentViewRules(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	incident := IncidentRef{ID: 1, ReportedBy: 50, AssignedDepartmentID: 3, AssignedTo: 60, Status: IncidentStatusOpen, ReporterDepartmentID: 4}

	// Reporter sees their own incident even without department visibility.
	reporter := actorWith(50, 9, RoleStaff)
	require.True(t, e.Check(ctx, reporter, AbilityView, incident).Allowed)

	// Assignee sees it through the department permission path.
	assignee := actorWith(60, 8, RoleSecretary)
	require.True(t, e.Check(ctx, assignee, AbilityView, incident).Allowed)

	// Department lead of the reporter's department sees it too.
	lead := actorWith(70, 4, RoleDeptHead)
	require.True(t, e.Check(ctx, lead, AbilityView, incident).Allowed)

	// Unrelated staff from another department does not.
	outsider := actorWith(80, 9, RoleSecretary)
	require.False(t, e.Check(ctx, outsider, AbilityView, incident).Allowed)
}

func TestIncidentAssignRequiresDepartmentOrAdmin(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	incident := IncidentRef{ID: 1, AssignedDepartmentID: 3, Status: IncidentStatusOpen}

	deputy := actorWith(5, 3, RoleDeputyDeptHead)
	require.True(t, e.Check(ctx, deputy, AbilityAssign, incident).Allowed)

	otherDeputy := actorWith(6, 4, RoleDeputyDeptHead)
	require.False(t, e.Check(ctx, otherDeputy, AbilityAssign, incident).Allowed)

	admin := actorWith(7, 9, RoleAdmin)
	require.True(t, e.Check(ctx, admin, AbilityAssign, incident).Allowed)
}

func TestDocumentRoutingViewRules(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	doc := DocumentRef{ID: 1, DepartmentID: 2, CreatedBy: 30, Context: ContextRouting}

	creator := actorWith(30, 5, RoleStaff)
	require.True(t, e.Check(ctx, creator, AbilityView, doc).Allowed)

	recipient := actorWith(31, 5, RoleStaff)
	routed := doc
	routed.RoutedToActor = true
	require.True(t, e.Check(ctx, recipient, AbilityView, routed).Allowed)

	lead := actorWith(32, 2, RoleDeputyDeptHead)
	require.True(t, e.Check(ctx, lead, AbilityView, doc).Allowed)

	bystander := actorWith(33, 5, RoleStaff)
	require.False(t, e.Check(ctx, bystander, AbilityView, doc).Allowed)
}

func TestDocumentForwardOnlyForRecipient(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	doc := DocumentRef{ID: 1, DepartmentID: 2, CreatedBy: 30, Context: ContextRouting}

	creator := actorWith(30, 2, RoleStaff)
	d := e.Check(ctx, creator, AbilityForward, doc)
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "not routed")

	doc.RoutedToActor = true
	recipient := actorWith(31, 5, RoleStaff)
	require.True(t, e.Check(ctx, recipient, AbilityForward, doc).Allowed)
}

func TestDocumentDeleteNeedsTierAndDepartment(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	doc := DocumentRef{ID: 1, DepartmentID: 2, Context: ContextRouting}

	// Staff never has documents.delete.
	staff := actorWith(1, 2, RoleStaff)
	d := e.Check(ctx, staff, AbilityDelete, doc)
	require.False(t, d.Allowed)
	require.Equal(t, ReasonMissingPermission, d.Reason)

	secretary := actorWith(2, 2, RoleSecretary)
	require.True(t, e.Check(ctx, secretary, AbilityDelete, doc).Allowed)

	otherDeptSecretary := actorWith(3, 9, RoleSecretary)
	require.False(t, e.Check(ctx, otherDeptSecretary, AbilityDelete, doc).Allowed)

	admin := actorWith(4, 9, RoleAdmin)
	require.True(t, e.Check(ctx, admin, AbilityDelete, doc).Allowed)
}

func TestStorageContextIgnoresOwnership(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	// The creator from another department cannot see their own upload in the
	// storage context; visibility there is purely department-scoped.
	doc := DocumentRef{ID: 1, DepartmentID: 2, CreatedBy: 40, Context: ContextStorage}
	creator := actorWith(40, 9, RoleStaff)
	require.False(t, e.Check(ctx, creator, AbilityView, doc).Allowed)

	colleague := actorWith(41, 2, RoleStaff)
	require.True(t, e.Check(ctx, colleague, AbilityView, doc).Allowed)

	// Storage edit needs secretary tier on top of the department match.
	require.False(t, e.Check(ctx, colleague, AbilityUpdate, doc).Allowed)
	secretary := actorWith(42, 2, RoleSecretary)
	require.True(t, e.Check(ctx, secretary, AbilityUpdate, doc).Allowed)
}

func TestVisitorCheckOutRules(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	visit := VisitRef{ID: 1, HostUserID: 10, DepartmentID: 2, CheckedIn: true}
	host := actorWith(10, 2, RoleStaff)
	require.True(t, e.Check(ctx, host, AbilityCheckOut, visit).Allowed)

	colleague := actorWith(11, 2, RoleStaff)
	require.True(t, e.Check(ctx, colleague, AbilityCheckOut, visit).Allowed)

	outsider := actorWith(12, 9, RoleStaff)
	require.False(t, e.Check(ctx, outsider, AbilityCheckOut, visit).Allowed)

	visit.CheckedOut = true
	d := e.Check(ctx, host, AbilityCheckOut, visit)
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "already been checked out")

	// The veto holds for the top role as well.
	super := actorWith(13, 1, RoleSuperAdmin)
	d = e.Check(ctx, super, AbilityCheckOut, visit)
	require.False(t, d.Allowed)
}

func TestVisitorDeleteVetoesActiveVisits(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	admin := actorWith(1, 1, RoleAdmin)

	active := VisitRef{ID: 2, CheckedIn: true}
	d := e.Check(ctx, admin, AbilityDelete, active)
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "active visit")

	done := VisitRef{ID: 2, CheckedIn: true, CheckedOut: true}
	require.True(t, e.Check(ctx, admin, AbilityDelete, done).Allowed)

	host := actorWith(3, 1, RoleStaff)
	require.False(t, e.Check(ctx, host, AbilityDelete, done).Allowed)
}

func TestUserUpdateRequiresStrictlyLowerTier(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	lead := actorWith(1, 2, RoleDeptHead)
	staff := UserRef{ID: 2, DepartmentID: 2, Roles: []string{RoleStaff}}
	require.True(t, e.Check(ctx, lead, AbilityUpdate, staff).Allowed)

	// Deputy and head share a tier: neither may update the other.
	deputy := UserRef{ID: 3, DepartmentID: 2, Roles: []string{RoleDeputyDeptHead}}
	require.False(t, e.Check(ctx, lead, AbilityUpdate, deputy).Allowed)

	otherDept := UserRef{ID: 4, DepartmentID: 9, Roles: []string{RoleStaff}}
	require.False(t, e.Check(ctx, lead, AbilityUpdate, otherDept).Allowed)

	// Admin reaches across departments but still only strictly lower tiers.
	admin := actorWith(5, 1, RoleAdmin)
	require.True(t, e.Check(ctx, admin, AbilityUpdate, otherDept).Allowed)
	peerAdmin := UserRef{ID: 6, DepartmentID: 3, Roles: []string{RoleAdmin}}
	require.False(t, e.Check(ctx, admin, AbilityUpdate, peerAdmin).Allowed)
}

func TestUserDeleteReasonNamesPrivileges(t *testing.T) {
	e := testEngine(t)
	admin := actorWith(1, 1, RoleAdmin)
	peer := UserRef{ID: 2, DepartmentID: 1, Roles: []string{RoleAdmin}}
	d := e.Check(context.Background(), admin, AbilityDelete, peer)
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "equal or higher privileges")
}

func TestRoleAssignmentTierRules(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	deputy := actorWith(1, 2, RoleDeputyDeptHead)
	target := UserRef{ID: 2, DepartmentID: 2, Roles: []string{RoleStaff}}

	require.True(t, e.Check(ctx, deputy, AbilityAssignRole, RoleAssignmentRef{Target: target, RoleName: RoleSecretary}).Allowed)

	// Leads may not mint other leads or admins, even in their department.
	for _, role := range []string{RoleDeptHead, RoleDeputyDeptHead, RoleAdmin, RoleSuperAdmin} {
		d := e.Check(ctx, deputy, AbilityAssignRole, RoleAssignmentRef{Target: target, RoleName: role})
		require.False(t, d.Allowed, "role %s", role)
	}

	// Cross-department assignment is out of reach for leads.
	foreign := UserRef{ID: 3, DepartmentID: 9, Roles: []string{RoleStaff}}
	require.False(t, e.Check(ctx, deputy, AbilityAssignRole, RoleAssignmentRef{Target: foreign, RoleName: RoleSecretary}).Allowed)

	// Admins may not grant their own tier or above.
	admin := actorWith(4, 1, RoleAdmin)
	d := e.Check(ctx, admin, AbilityAssignRole, RoleAssignmentRef{Target: target, RoleName: RoleAdmin})
	require.False(t, d.Allowed)
	require.Contains(t, d.Reason, "tier")
	require.True(t, e.Check(ctx, admin, AbilityAssignRole, RoleAssignmentRef{Target: target, RoleName: RoleDeptHead}).Allowed)
}

func TestDecisionObserverSeesEveryCheck(t *testing.T) {
	e := testEngine(t)
	var kinds []string
	var outcomes []bool
	e.SetObserver(func(kind string, _ Ability, allowed bool) {
		kinds = append(kinds, kind)
		outcomes = append(outcomes, allowed)
	})

	staff := actorWith(1, 1, RoleStaff)
	e.Check(context.Background(), staff, AbilityCreate, IncidentRef{})
	e.Check(context.Background(), staff, AbilityAssign, IncidentRef{AssignedDepartmentID: 1})

	require.Equal(t, []string{"incident", "incident"}, kinds)
	require.Equal(t, []bool{true, false}, outcomes)
}
