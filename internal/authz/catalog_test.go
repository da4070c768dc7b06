package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogRegisterAndGet(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Permission{Name: "documents.route", DisplayName: "Route Documents"}))

	p, err := c.Get("documents.route")
	require.NoError(t, err)
	require.Equal(t, "documents", p.Category)
	require.Equal(t, "Route Documents", p.DisplayName)

	_, err = c.Get("documents.burn")
	require.ErrorIs(t, err, ErrUnknownPermission)
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Permission{Name: "incidents.create"}))
	err := c.Register(Permission{Name: "incidents.create"})
	require.ErrorIs(t, err, ErrDuplicatePermission)
}

func TestCatalogRejectsMalformedNames(t *testing.T) {
	c := NewCatalog()
	require.Error(t, c.Register(Permission{Name: ""}))
	require.Error(t, c.Register(Permission{Name: "no-category"}))
}

func TestCatalogListByCategoryKeepsRegistrationOrder(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Permission{Name: "storage.upload"}))
	require.NoError(t, c.Register(Permission{Name: "incidents.create"}))
	require.NoError(t, c.Register(Permission{Name: "storage.download"}))
	require.NoError(t, c.Register(Permission{Name: "storage.delete"}))

	perms := c.ListByCategory("storage")
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"storage.upload", "storage.download", "storage.delete"}, names)
}
