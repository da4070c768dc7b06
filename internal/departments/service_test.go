package departments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atrium-ops/atrium/internal/audit"
	"github.com/atrium-ops/atrium/internal/authz"
)

type memoryRepo struct {
	departments map[int64]Department
	audits      []audit.Log
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{departments: make(map[int64]Department), nextID: 1}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Department, error) {
	dept, ok := m.departments[id]
	if !ok {
		return Department{}, ErrNotFound
	}
	return dept, nil
}

func (m *memoryRepo) GetByCode(_ context.Context, code string) (Department, error) {
	for _, dept := range m.departments {
		if dept.Code == code {
			return dept, nil
		}
	}
	return Department{}, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, activeOnly bool) ([]Department, error) {
	var out []Department
	for _, dept := range m.departments {
		if activeOnly && !dept.IsActive {
			continue
		}
		out = append(out, dept)
	}
	return out, nil
}

func (m *memoryRepo) Insert(_ context.Context, dept Department) (int64, error) {
	for _, existing := range m.departments {
		if existing.Code == dept.Code {
			return 0, ErrDuplicateCode
		}
	}
	dept.ID = m.nextID
	m.nextID++
	m.departments[dept.ID] = dept
	return dept.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, dept Department) error {
	stored, ok := m.departments[dept.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != dept.Version {
		return ErrConcurrentModification
	}
	dept.Version++
	m.departments[dept.ID] = dept
	return nil
}

func (m *memoryRepo) AppendAudit(_ context.Context, log audit.Log) error {
	m.audits = append(m.audits, log)
	return nil
}

func TestCreateNormalizesCodeAndAudits(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	admin := authz.Actor{ID: 1, Roles: []string{authz.RoleAdmin}, IsActive: true}

	dept, err := svc.Create(context.Background(), admin, UpsertInput{Name: "Facilities", Code: " fac "})
	require.NoError(t, err)
	require.Equal(t, "FAC", dept.Code)
	require.True(t, dept.IsActive)
	require.Len(t, repo.audits, 1)
	require.Equal(t, "departments.create", repo.audits[0].Action)

	_, err = svc.Create(context.Background(), admin, UpsertInput{Name: "Faculty", Code: "FAC"})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestMutationsRequireAdmin(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	staff := authz.Actor{ID: 10, Roles: []string{authz.RoleStaff}, IsActive: true}

	_, err := svc.Create(context.Background(), staff, UpsertInput{Name: "Ops", Code: "OPS"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(context.Background(), staff, 1, UpsertInput{Name: "Ops"})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Deactivate(context.Background(), staff, 1)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateAppointsLeads(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	admin := authz.Actor{ID: 1, Roles: []string{authz.RoleAdmin}, IsActive: true}

	dept, err := svc.Create(context.Background(), admin, UpsertInput{Name: "Ops", Code: "OPS"})
	require.NoError(t, err)

	dept, err = svc.Update(context.Background(), admin, dept.ID, UpsertInput{HeadUserID: 7, DeputyHeadUserID: 8})
	require.NoError(t, err)
	require.Equal(t, int64(7), dept.HeadUserID)
	require.Equal(t, int64(8), dept.DeputyHeadUserID)
	require.Equal(t, int64(2), dept.Version)
}

func TestDeactivateIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	admin := authz.Actor{ID: 1, Roles: []string{authz.RoleAdmin}, IsActive: true}

	dept, err := svc.Create(context.Background(), admin, UpsertInput{Name: "Ops", Code: "OPS"})
	require.NoError(t, err)

	dept, err = svc.Deactivate(context.Background(), admin, dept.ID)
	require.NoError(t, err)
	require.False(t, dept.IsActive)
	audits := len(repo.audits)

	_, err = svc.Deactivate(context.Background(), admin, dept.ID)
	require.NoError(t, err)
	require.Len(t, repo.audits, audits)
}
