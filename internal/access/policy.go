package access

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Interface types a role may present.
const (
	InterfaceUser  = "user"
	InterfaceGuard = "guard"
)

// RolePolicy is a role definition as written in the policy file.
type RolePolicy struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	InterfaceType string   `yaml:"interface_type"`
	Permissions   []string `yaml:"permissions"`

	// Codes holds Permissions after validation.
	Codes []Code `yaml:"-"`
}

// Policy is the set of roles seeded into the store.
type Policy struct {
	Roles []RolePolicy `yaml:"roles"`
}

// LoadPolicy reads and validates a policy file.
func LoadPolicy(path string) (*Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePolicy(f)
}

// ParsePolicy decodes a policy and validates every role against the
// catalog. A single unknown code rejects the whole policy.
func ParsePolicy(r io.Reader) (*Policy, error) {
	var p Policy
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode role policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks names, interface types and permission codes, filling Codes.
func (p *Policy) Validate() error {
	seen := make(map[string]bool, len(p.Roles))
	for i := range p.Roles {
		role := &p.Roles[i]
		if role.Name == "" {
			return fmt.Errorf("role #%d has no name", i+1)
		}
		if seen[role.Name] {
			return fmt.Errorf("role %q is defined twice", role.Name)
		}
		seen[role.Name] = true

		if role.InterfaceType == "" {
			role.InterfaceType = InterfaceUser
		}
		if role.InterfaceType != InterfaceUser && role.InterfaceType != InterfaceGuard {
			return fmt.Errorf("role %q: unknown interface type %q", role.Name, role.InterfaceType)
		}

		codes, err := ParseCodes(role.Permissions)
		if err != nil {
			return fmt.Errorf("role %q: %w", role.Name, err)
		}
		role.Codes = codes
	}
	return nil
}

// DefaultPolicy returns the built-in "user" and "guard" roles.
func DefaultPolicy() *Policy {
	p := &Policy{Roles: []RolePolicy{
		{
			Name:          "user",
			Description:   "Office staff managing the visit calendar",
			InterfaceType: InterfaceUser,
			Codes:         All(),
		},
		{
			Name:          "guard",
			Description:   "Front desk security",
			InterfaceType: InterfaceGuard,
			Codes: []Code{
				CanView,
				CanMarkCompleted,
				CanUnmarkCompleted,
				CanMarkCompletedUI,
				CanUnmarkCompletedUI,
			},
		},
	}}
	for i := range p.Roles {
		for _, c := range p.Roles[i].Codes {
			p.Roles[i].Permissions = append(p.Roles[i].Permissions, string(c))
		}
	}
	return p
}
