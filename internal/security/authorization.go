package security

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
	"github.com/aryan0dhankhar/smartcrm/internal/security/audit"
)

// Action identifies what operation is being performed
type Action string

const (
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceKind identifies the kind of resource being accessed
type ResourceKind string

const (
	ResourceOrganization ResourceKind = "organization"
	ResourceUser         ResourceKind = "user"
	ResourceLead         ResourceKind = "lead"
	ResourceComplaint    ResourceKind = "complaint"
)

// Resource describes the row an action targets. Only the fields relevant
// to Kind need to be set; for ActionList only Kind is consulted.
type Resource struct {
	Kind           ResourceKind
	ID             uuid.UUID
	OrganizationID *uuid.UUID

	// leads and complaints
	CreatedBy  uuid.UUID
	AssignedTo *uuid.UUID
	CustomerID *uuid.UUID

	// users: TargetRole is the role the user holds (or will hold on
	// create). AssignRole is a requested role change, zero if none.
	// Privileged marks updates touching role or activation.
	TargetRole domain.Role
	AssignRole domain.Role
	Privileged bool
}

// RolePermissions maps roles to the actions they may perform per resource
// kind. Row-level rules are applied on top in Authorize.
var RolePermissions = map[domain.Role]map[ResourceKind][]Action{
	domain.RoleSystemAdmin: {
		ResourceOrganization: {ActionList, ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceUser:         {ActionList, ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceLead:         {ActionList, ActionRead, ActionUpdate, ActionDelete},
		ResourceComplaint:    {ActionList, ActionRead, ActionUpdate, ActionDelete},
	},
	domain.RoleOrgAdmin: {
		ResourceOrganization: {ActionList, ActionRead, ActionUpdate},
		ResourceUser:         {ActionList, ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceLead:         {ActionList, ActionCreate, ActionRead, ActionUpdate, ActionDelete},
		ResourceComplaint:    {ActionList, ActionCreate, ActionRead, ActionUpdate, ActionDelete},
	},
	domain.RoleEmployee: {
		ResourceOrganization: {ActionList, ActionRead},
		ResourceUser:         {ActionList, ActionRead, ActionUpdate},
		ResourceLead:         {ActionList, ActionCreate, ActionRead, ActionUpdate},
		ResourceComplaint:    {ActionList, ActionCreate, ActionRead, ActionUpdate},
	},
	domain.RoleCustomer: {
		ResourceUser:      {ActionRead, ActionUpdate},
		ResourceComplaint: {ActionList, ActionRead},
	},
}

// HasPermission checks if a role may perform action on kind at all
func HasPermission(role domain.Role, kind ResourceKind, action Action) bool {
	return slices.Contains(RolePermissions[role][kind], action)
}

// Authorizer decides whether a principal may act on a resource. Every
// decision is counted and every denial is written to the audit log.
type Authorizer struct {
	logger *slog.Logger
	audit  *audit.Logger
}

func NewAuthorizer(logger *slog.Logger, auditLog *audit.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &Authorizer{logger: logger, audit: auditLog}
}

// Authorize returns nil to allow, otherwise an error wrapping
// domain.ErrForbidden or domain.ErrInsufficientPrivilege.
func (a *Authorizer) Authorize(ctx context.Context, p domain.Principal, action Action, res Resource) error {
	err := decide(p, action, res)
	decision := "allow"
	if err != nil {
		decision = "deny"
		orgID := ""
		if p.OrganizationID != nil {
			orgID = p.OrganizationID.String()
		}
		resourceID := ""
		if res.ID != uuid.Nil {
			resourceID = res.ID.String()
		}
		a.audit.LogDenied(ctx, orgID, p.UserID.String(), string(action), string(res.Kind), resourceID, err.Error())
		a.logger.Warn("permission denied",
			slog.String("role", p.Role.String()),
			slog.String("action", string(action)),
			slog.String("resource", string(res.Kind)),
			slog.String("reason", err.Error()),
		)
	}
	metrics.ObserveAuthz(p.Role.String(), string(action), string(res.Kind), decision)
	return err
}

func decide(p domain.Principal, action Action, res Resource) error {
	if !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role", domain.ErrForbidden)
	}
	if res.Kind == ResourceUser {
		// self-service reads and profile edits are open to every role
		if res.ID == p.UserID && res.ID != uuid.Nil && (action == ActionRead || action == ActionUpdate) {
			if res.Privileged {
				return fmt.Errorf("%w: users cannot change their own role or activation", domain.ErrInsufficientPrivilege)
			}
			return nil
		}
	}
	if !HasPermission(p.Role, res.Kind, action) {
		return fmt.Errorf("%w: %s cannot %s %s", domain.ErrForbidden, p.Role, action, res.Kind)
	}

	switch res.Kind {
	case ResourceOrganization:
		return decideOrganization(p, action, res)
	case ResourceUser:
		return decideUser(p, action, res)
	case ResourceLead, ResourceComplaint:
		return decideRecord(p, action, res)
	default:
		return fmt.Errorf("%w: unknown resource %q", domain.ErrForbidden, res.Kind)
	}
}

func decideOrganization(p domain.Principal, action Action, res Resource) error {
	switch p.Role {
	case domain.RoleSystemAdmin:
		return nil
	case domain.RoleOrgAdmin, domain.RoleEmployee, domain.RoleCustomer:
		if action == ActionList || p.InOrganization(res.OrganizationID) {
			return nil
		}
		return fmt.Errorf("%w: organization belongs to another tenant", domain.ErrForbidden)
	}
	return fmt.Errorf("%w: unknown role", domain.ErrForbidden)
}

func decideUser(p domain.Principal, action Action, res Resource) error {
	if action == ActionDelete && res.ID == p.UserID {
		return fmt.Errorf("%w: users cannot delete themselves", domain.ErrForbidden)
	}
	switch p.Role {
	case domain.RoleSystemAdmin:
		return checkRoleCeiling(p, action, res)
	case domain.RoleOrgAdmin:
		if action != ActionList && !p.InOrganization(res.OrganizationID) {
			return fmt.Errorf("%w: user belongs to another tenant", domain.ErrForbidden)
		}
		return checkRoleCeiling(p, action, res)
	case domain.RoleEmployee:
		if action == ActionUpdate {
			return fmt.Errorf("%w: employees may only update their own profile", domain.ErrForbidden)
		}
		if action != ActionList && !p.InOrganization(res.OrganizationID) {
			return fmt.Errorf("%w: user belongs to another tenant", domain.ErrForbidden)
		}
		return nil
	case domain.RoleCustomer:
		return fmt.Errorf("%w: customers may only access their own profile", domain.ErrForbidden)
	}
	return fmt.Errorf("%w: unknown role", domain.ErrForbidden)
}

// checkRoleCeiling stops an admin from minting, promoting or touching
// users at or above its own rank.
func checkRoleCeiling(p domain.Principal, action Action, res Resource) error {
	switch action {
	case ActionCreate:
		if !p.Role.Outranks(res.TargetRole) {
			return fmt.Errorf("%w: %s cannot create a %s", domain.ErrInsufficientPrivilege, p.Role, res.TargetRole)
		}
	case ActionUpdate, ActionDelete:
		// system admins manage their peers' profiles but never promote to their own rank
		if p.Role != domain.RoleSystemAdmin && !p.Role.Outranks(res.TargetRole) {
			return fmt.Errorf("%w: %s cannot %s a %s", domain.ErrInsufficientPrivilege, p.Role, action, res.TargetRole)
		}
		if res.AssignRole != 0 && !p.Role.Outranks(res.AssignRole) {
			return fmt.Errorf("%w: %s cannot assign role %s", domain.ErrInsufficientPrivilege, p.Role, res.AssignRole)
		}
	}
	return nil
}

func decideRecord(p domain.Principal, action Action, res Resource) error {
	switch p.Role {
	case domain.RoleSystemAdmin:
		return nil
	case domain.RoleOrgAdmin:
		if action == ActionList || p.InOrganization(res.OrganizationID) {
			return nil
		}
		return fmt.Errorf("%w: %s belongs to another tenant", domain.ErrForbidden, res.Kind)
	case domain.RoleEmployee:
		if action == ActionList {
			return nil
		}
		if !p.InOrganization(res.OrganizationID) {
			return fmt.Errorf("%w: %s belongs to another tenant", domain.ErrForbidden, res.Kind)
		}
		if action == ActionUpdate && res.CreatedBy != p.UserID && (res.AssignedTo == nil || *res.AssignedTo != p.UserID) {
			return fmt.Errorf("%w: employees may only update %ss they created or are assigned to", domain.ErrForbidden, res.Kind)
		}
		return nil
	case domain.RoleCustomer:
		if action == ActionList {
			return nil
		}
		if res.CustomerID != nil && *res.CustomerID == p.UserID {
			return nil
		}
		return fmt.Errorf("%w: customers may only read their own complaints", domain.ErrForbidden)
	}
	return fmt.Errorf("%w: unknown role", domain.ErrForbidden)
}
