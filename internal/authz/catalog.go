package authz

import (
	"fmt"
	"strings"
)

// Permission represents an atomic capability token.
type Permission struct {
	Name        string
	Category    string
	DisplayName string
	Description string
}

// Catalog is the immutable registry of every known permission.
type Catalog struct {
	byName map[string]Permission
	order  []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]Permission)}
}

// Register adds a permission to the catalog.
func (c *Catalog) Register(p Permission) error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("authz: permission name required")
	}
	if !strings.Contains(name, ".") {
		return fmt.Errorf("authz: permission %q must use category.action form", name)
	}
	if _, ok := c.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePermission, name)
	}
	p.Name = name
	if p.Category == "" {
		p.Category = name[:strings.IndexByte(name, '.')]
	}
	c.byName[name] = p
	c.order = append(c.order, name)
	return nil
}

// Get fetches a permission by name.
func (c *Catalog) Get(name string) (Permission, error) {
	p, ok := c.byName[name]
	if !ok {
		return Permission{}, fmt.Errorf("%w: %s", ErrUnknownPermission, name)
	}
	return p, nil
}

// Has reports whether the name is registered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// ListByCategory returns permissions of one category in registration order.
func (c *Catalog) ListByCategory(category string) []Permission {
	var perms []Permission
	for _, name := range c.order {
		if p := c.byName[name]; p.Category == category {
			perms = append(perms, p)
		}
	}
	return perms
}

// Names returns every registered permission name in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Len returns the number of registered permissions.
func (c *Catalog) Len() int {
	return len(c.order)
}
