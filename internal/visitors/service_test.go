package visitors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/authz"
	"github.com/atrium-ops/atrium/internal/notify"
)

type memoryRepo struct {
	visits map[int64]VisitorVisit
	audits []audit.Log
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{visits: make(map[int64]VisitorVisit), nextID: 1}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (VisitorVisit, error) {
	visit, ok := m.visits[id]
	if !ok {
		return VisitorVisit{}, ErrNotFound
	}
	return visit, nil
}

func (m *memoryRepo) List(_ context.Context, filters ListFilters) ([]VisitorVisit, error) {
	var out []VisitorVisit
	for _, visit := range m.visits {
		if filters.DepartmentID != 0 && visit.DepartmentID != filters.DepartmentID {
			continue
		}
		if filters.HostUserID != 0 && visit.HostUserID != filters.HostUserID {
			continue
		}
		if filters.ActiveOnly && (!visit.CheckedIn() || visit.CheckedOut()) {
			continue
		}
		out = append(out, visit)
	}
	return out, nil
}

func (m *memoryRepo) Insert(_ context.Context, visit VisitorVisit) (int64, error) {
	visit.ID = m.nextID
	m.nextID++
	m.visits[visit.ID] = visit
	return visit.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, visit VisitorVisit) error {
	stored, ok := m.visits[visit.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != visit.Version {
		return ErrConcurrentModification
	}
	visit.Version++
	m.visits[visit.ID] = visit
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.visits[id]; !ok {
		return ErrNotFound
	}
	delete(m.visits, id)
	return nil
}

func (m *memoryRepo) AppendAudit(_ context.Context, log audit.Log) error {
	m.audits = append(m.audits, log)
	return nil
}

type stubNotifier struct {
	sent []notify.Notification
}

func (s *stubNotifier) Dispatch(_ context.Context, n notify.Notification) error {
	s.sent = append(s.sent, n)
	return nil
}

func newTestEngine(t *testing.T) *authz.Engine {
	t.Helper()
	c := authz.NewCatalog()
	for _, name := range []string{authz.PermVisitorsCheckIn, authz.PermVisitorsView} {
		require.NoError(t, c.Register(authz.Permission{Name: name}))
	}
	g := authz.NewRoleGraph(c)
	require.NoError(t, g.AddRole(authz.Role{Name: authz.RoleStaff, Permissions: []string{
		authz.PermVisitorsCheckIn,
	}}))
	require.NoError(t, g.AddRole(authz.Role{Name: authz.RoleSecretary, Inherits: authz.RoleStaff, Permissions: []string{
		authz.PermVisitorsView,
	}}))
	require.NoError(t, g.AddRole(authz.Role{Name: authz.RoleAdmin, GrantsAll: true}))
	require.NoError(t, g.AddRole(authz.Role{Name: authz.RoleSuperAdmin, GrantsAll: true}))
	require.NoError(t, g.Validate())
	return authz.NewEngine(g)
}

func actorWith(id, dept int64, roles ...string) authz.Actor {
	return authz.Actor{ID: id, DepartmentID: dept, Roles: roles, IsActive: true}
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *stubNotifier) {
	t.Helper()
	repo := newMemoryRepo()
	notifier := &stubNotifier{}
	svc := NewService(repo, newTestEngine(t), notifier, nil)
	return svc, repo, notifier
}

func TestRegisterNormalizesName(t *testing.T) {
	svc, _, _ := newTestService(t)
	reception := actorWith(10, 2, authz.RoleStaff)

	visit, err := svc.Register(context.Background(), reception, RegisterInput{
		VisitorName: "  aDA   lovELACE ",
		HostUserID:  20,
	})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", visit.VisitorName)
	require.False(t, visit.CheckedIn())
}

func TestRegisterWithImmediateCheckInNotifiesHost(t *testing.T) {
	svc, repo, notifier := newTestService(t)
	reception := actorWith(10, 2, authz.RoleStaff)

	visit, err := svc.Register(context.Background(), reception, RegisterInput{
		VisitorName: "Grace Hopper",
		HostUserID:  20,
		CheckInNow:  true,
	})
	require.NoError(t, err)
	require.True(t, visit.CheckedIn())

	require.Len(t, notifier.sent, 1)
	require.Equal(t, notify.KindVisitorArrived, notifier.sent[0].Kind)
	require.Equal(t, int64(20), notifier.sent[0].RecipientID)
	require.Len(t, repo.audits, 1)
}

func TestCheckInThenDoubleCheckOut(t *testing.T) {
	svc, _, notifier := newTestService(t)
	reception := actorWith(10, 2, authz.RoleStaff)

	visit, err := svc.Register(context.Background(), reception, RegisterInput{
		VisitorName: "Alan Turing",
		HostUserID:  20,
	})
	require.NoError(t, err)

	visit, err = svc.CheckIn(context.Background(), reception, visit.ID)
	require.NoError(t, err)
	require.True(t, visit.CheckedIn())
	require.Len(t, notifier.sent, 1)

	visit, err = svc.CheckOut(context.Background(), reception, visit.ID)
	require.NoError(t, err)
	require.True(t, visit.CheckedOut())

	// The second check-out is vetoed by policy, with its reason.
	_, err = svc.CheckOut(context.Background(), reception, visit.ID)
	require.ErrorIs(t, err, ErrForbidden)
	require.Contains(t, err.Error(), "already been checked out")
}

func TestCheckOutBeforeCheckInFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	reception := actorWith(10, 2, authz.RoleStaff)

	visit, err := svc.Register(context.Background(), reception, RegisterInput{
		VisitorName: "Katherine Johnson",
		HostUserID:  20,
	})
	require.NoError(t, err)

	_, err = svc.CheckOut(context.Background(), reception, visit.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeleteActiveVisitVetoedForEveryRole(t *testing.T) {
	svc, repo, _ := newTestService(t)
	reception := actorWith(10, 2, authz.RoleStaff)
	admin := actorWith(40, 1, authz.RoleAdmin)
	super := actorWith(50, 1, authz.RoleSuperAdmin)

	visit, err := svc.Register(context.Background(), reception, RegisterInput{
		VisitorName: "Edsger Dijkstra",
		HostUserID:  20,
		CheckInNow:  true,
	})
	require.NoError(t, err)

	for _, actor := range []authz.Actor{admin, super} {
		err := svc.Delete(context.Background(), actor, visit.ID)
		require.ErrorIs(t, err, ErrForbidden)
		require.Contains(t, err.Error(), "active visit")
	}

	_, err = svc.CheckOut(context.Background(), admin, visit.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), admin, visit.ID))
	require.NotContains(t, repo.visits, visit.ID)
}

func TestListScopedByCapability(t *testing.T) {
	svc, _, _ := newTestService(t)
	hostA := actorWith(20, 2, authz.RoleStaff)
	reception := actorWith(10, 2, authz.RoleStaff)
	secretary := actorWith(21, 2, authz.RoleSecretary)
	admin := actorWith(40, 1, authz.RoleAdmin)

	_, err := svc.Register(context.Background(), reception, RegisterInput{VisitorName: "One", HostUserID: 20})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), admin, RegisterInput{VisitorName: "Two", HostUserID: 30, DepartmentID: 3})
	require.NoError(t, err)

	hosted, err := svc.List(context.Background(), hostA, ListFilters{})
	require.NoError(t, err)
	require.Len(t, hosted, 1)
	require.Equal(t, int64(20), hosted[0].HostUserID)

	dept, err := svc.List(context.Background(), secretary, ListFilters{})
	require.NoError(t, err)
	require.Len(t, dept, 1)
	require.Equal(t, int64(2), dept[0].DepartmentID)

	all, err := svc.List(context.Background(), admin, ListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
