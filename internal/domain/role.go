package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the closed set of user roles. The zero value is invalid.
type Role int

const (
	RoleCustomer Role = iota + 1
	RoleEmployee
	RoleOrgAdmin
	RoleSystemAdmin
)

// Roles lists every valid role from least to most privileged.
var Roles = []Role{RoleCustomer, RoleEmployee, RoleOrgAdmin, RoleSystemAdmin}

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleEmployee:
		return "employee"
	case RoleOrgAdmin:
		return "org_admin"
	case RoleSystemAdmin:
		return "system_admin"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r >= RoleCustomer && r <= RoleSystemAdmin
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool {
	return r > other
}

// ParseRole converts the wire form of a role. Anything outside the
// enumeration is a validation error.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "customer":
		return RoleCustomer, nil
	case "employee":
		return RoleEmployee, nil
	case "org_admin":
		return RoleOrgAdmin, nil
	case "system_admin":
		return RoleSystemAdmin, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: invalid role %d", ErrValidation, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value stores roles as text.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: invalid role %d", ErrValidation, int(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Role", src)
	}
}
