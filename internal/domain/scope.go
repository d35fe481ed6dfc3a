package domain

import "github.com/google/uuid"

// Principal is the authenticated actor making a request.
type Principal struct {
	UserID             uuid.UUID
	Email              string
	Role               Role
	OrganizationID     *uuid.UUID
	MustChangePassword bool
}

// InOrganization reports whether the principal belongs to orgID.
func (p Principal) InOrganization(orgID *uuid.UUID) bool {
	return p.OrganizationID != nil && orgID != nil && *p.OrganizationID == *orgID
}

// Scope is the tenant-isolation filter applied to a query: either one
// organization or system-wide. The zero Scope matches no rows.
type Scope struct {
	systemWide bool
	orgID      uuid.UUID
}

// SystemWideScope applies no organization filter.
func SystemWideScope() Scope {
	return Scope{systemWide: true}
}

// OrganizationScope restricts queries to a single organization.
func OrganizationScope(orgID uuid.UUID) Scope {
	return Scope{orgID: orgID}
}

func (s Scope) IsSystemWide() bool {
	return s.systemWide
}

// OrganizationID returns the concrete organization, if any.
func (s Scope) OrganizationID() (uuid.UUID, bool) {
	if s.systemWide || s.orgID == uuid.Nil {
		return uuid.Nil, false
	}
	return s.orgID, true
}

func (s Scope) String() string {
	if s.systemWide {
		return "system"
	}
	if s.orgID == uuid.Nil {
		return "none"
	}
	return "org:" + s.orgID.String()
}
