// Package service implements the CRM use cases on top of the repositories.
// Every operation takes the authenticated principal, resolves its tenant
// scope and authorizes against the current row before mutating it.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

// Authorizer decides whether a principal may act on a resource.
type Authorizer interface {
	Authorize(ctx context.Context, p domain.Principal, action security.Action, res security.Resource) error
}

func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	return value, nil
}

func validateEmail(email string) (string, error) {
	email = domain.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email %q", domain.ErrValidation, email)
	}
	return email, nil
}

// optionalEmail accepts an empty contact address.
func optionalEmail(email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil
	}
	return validateEmail(email)
}

// userScope lets every principal reach its own row, including customers
// without an organization.
func userScope(p domain.Principal, id uuid.UUID) (domain.Scope, error) {
	if id == p.UserID {
		return domain.SystemWideScope(), nil
	}
	return tenant.Resolve(p)
}

// requireOrgMember checks that id is a user of orgID with one of roles.
// An absent or foreign user is a validation error on the request, not a
// lookup failure.
func requireOrgMember(ctx context.Context, users domain.UserRepository, orgID uuid.UUID, id uuid.UUID, field string, roles ...domain.Role) error {
	u, err := users.GetByID(ctx, domain.OrganizationScope(orgID), id)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s must be a user of the same organization", domain.ErrValidation, field)
		}
		return err
	}
	if !u.Active {
		return fmt.Errorf("%w: %s is deactivated", domain.ErrValidation, field)
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must have role %v", domain.ErrValidation, field, roles)
}

func leadResource(l *domain.Lead) security.Resource {
	return security.Resource{
		Kind:           security.ResourceLead,
		ID:             l.ID,
		OrganizationID: &l.OrganizationID,
		CreatedBy:      l.CreatedBy,
		AssignedTo:     l.AssignedTo,
	}
}

func complaintResource(c *domain.Complaint) security.Resource {
	return security.Resource{
		Kind:           security.ResourceComplaint,
		ID:             c.ID,
		OrganizationID: &c.OrganizationID,
		CreatedBy:      c.CreatedBy,
		AssignedTo:     c.AssignedTo,
		CustomerID:     c.CustomerID,
	}
}

func userResource(u *domain.User) security.Resource {
	return security.Resource{
		Kind:           security.ResourceUser,
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		TargetRole:     u.Role,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
