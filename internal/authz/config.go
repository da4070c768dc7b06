package authz

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the declarative authorization surface loaded at startup: the full
// permission catalog and the role map. A role map that does not form an
// acyclic chain is a fatal configuration error.
type Config struct {
	Permissions []PermissionConfig    `yaml:"permissions" validate:"required,min=1,dive"`
	Roles       map[string]RoleConfig `yaml:"roles" validate:"required,min=1"`
}

// PermissionConfig declares one catalog entry.
type PermissionConfig struct {
	Name        string `yaml:"name" validate:"required,contains=."`
	Category    string `yaml:"category"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
}

// RoleConfig declares one role map entry.
type RoleConfig struct {
	Inherits    string          `yaml:"inherits"`
	Permissions RolePermissions `yaml:"permissions"`
}

// RolePermissions is either an explicit permission list or the grants-all
// sentinel ("all").
type RolePermissions struct {
	All   bool
	Names []string
}

// UnmarshalYAML accepts a scalar "all" or a sequence of permission names.
func (p *RolePermissions) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s != GrantsAll {
			return fmt.Errorf("authz: role permissions must be a list or %q, got %q", GrantsAll, s)
		}
		p.All = true
		return nil
	case yaml.SequenceNode:
		return node.Decode(&p.Names)
	default:
		return fmt.Errorf("authz: invalid role permissions node")
	}
}

// LoadConfig reads and validates the authorization configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authz: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes and validates raw YAML configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("authz: parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("authz: invalid config: %w", err)
	}
	return &cfg, nil
}

// Build materializes the catalog and role graph from the configuration. Every
// role is resolved once so cycles, unknown parents and unknown permission
// names fail here, before the system starts serving.
func (c *Config) Build() (*Catalog, *RoleGraph, error) {
	catalog := NewCatalog()
	for _, p := range c.Permissions {
		if err := catalog.Register(Permission{
			Name:        p.Name,
			Category:    p.Category,
			DisplayName: p.DisplayName,
			Description: p.Description,
		}); err != nil {
			return nil, nil, err
		}
	}

	graph := NewRoleGraph(catalog)
	for name, rc := range c.Roles {
		if err := graph.AddRole(Role{
			Name:        name,
			Inherits:    rc.Inherits,
			GrantsAll:   rc.Permissions.All,
			Permissions: rc.Permissions.Names,
		}); err != nil {
			return nil, nil, err
		}
	}
	if err := graph.Validate(); err != nil {
		return nil, nil, err
	}
	return catalog, graph, nil
}
