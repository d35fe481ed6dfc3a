// Package tenant turns an authenticated principal into the row filter that
// keeps every query inside one organization.
package tenant

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
)

// Column is the tenant key on every organization-owned table.
const Column = "organization_id"

// Resolve derives the scope for p. System admins see every organization;
// everyone else is pinned to their own and must have one.
func Resolve(p domain.Principal) (domain.Scope, error) {
	switch p.Role {
	case domain.RoleSystemAdmin:
		return domain.SystemWideScope(), nil
	case domain.RoleOrgAdmin, domain.RoleEmployee, domain.RoleCustomer:
		if p.OrganizationID == nil || *p.OrganizationID == uuid.Nil {
			return domain.Scope{}, fmt.Errorf("%w: user %s", domain.ErrNoOrganizationAssigned, p.UserID)
		}
		return domain.OrganizationScope(*p.OrganizationID), nil
	default:
		return domain.Scope{}, fmt.Errorf("%w: unknown role %d", domain.ErrForbidden, int(p.Role))
	}
}

// Wherer is satisfied by squirrel's select, update and delete builders.
type Wherer[B any] interface {
	Where(pred interface{}, args ...interface{}) B
}

// Apply adds the tenant predicate for s to q. A system-wide scope adds
// nothing; the zero scope adds a predicate that matches no rows.
func Apply[B Wherer[B]](q B, s domain.Scope) B {
	if s.IsSystemWide() {
		return q
	}
	if orgID, ok := s.OrganizationID(); ok {
		return q.Where(sq.Eq{Column: orgID})
	}
	return q.Where("1 = 0")
}

// Permits evaluates the same predicate as Apply against a row already in memory.
func Permits(s domain.Scope, orgID *uuid.UUID) bool {
	if s.IsSystemWide() {
		return true
	}
	scoped, ok := s.OrganizationID()
	return ok && orgID != nil && *orgID == scoped
}
