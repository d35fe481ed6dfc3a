package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

type UserService struct {
	users  domain.UserRepository
	authz  Authorizer
	logger *slog.Logger
}

func NewUserService(users domain.UserRepository, authz Authorizer, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{users: users, authz: authz, logger: logger}
}

func (s *UserService) List(ctx context.Context, p domain.Principal, filter domain.UserFilter) ([]*domain.User, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionList, security.Resource{Kind: security.ResourceUser}); err != nil {
		return nil, err
	}
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	return s.users.List(ctx, scope, filter)
}

func (s *UserService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.User, error) {
	scope, err := userScope(p, id)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionRead, userResource(u)); err != nil {
		return nil, err
	}
	return u, nil
}

// UserUpdate carries the fields to change; nil means unchanged.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Role      *domain.Role
	Active    *bool
}

func (u UserUpdate) privileged() bool {
	return u.Role != nil || u.Active != nil
}

// Update applies changes after authorizing against the locked current row.
func (s *UserService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, in UserUpdate) (*domain.User, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid role", domain.ErrValidation)
	}
	var email string
	if in.Email != nil {
		var err error
		if email, err = validateEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	scope, err := userScope(p, id)
	if err != nil {
		return nil, err
	}

	return s.users.Update(ctx, scope, id, func(u *domain.User) error {
		res := userResource(u)
		res.Privileged = in.privileged()
		if in.Role != nil && *in.Role != u.Role {
			res.AssignRole = *in.Role
		}
		if err := s.authz.Authorize(ctx, p, security.ActionUpdate, res); err != nil {
			return err
		}
		if in.FirstName != nil {
			first, err := requireText("first_name", *in.FirstName)
			if err != nil {
				return err
			}
			u.FirstName = first
		}
		if in.LastName != nil {
			u.LastName = *in.LastName
		}
		if in.Email != nil {
			u.Email = email
		}
		if in.Role != nil {
			if u.OrganizationID == nil && *in.Role != domain.RoleCustomer {
				return fmt.Errorf("%w: users without an organization can only be customers", domain.ErrValidation)
			}
			u.Role = *in.Role
		}
		if in.Active != nil {
			u.Active = *in.Active
		}
		return nil
	})
}

// Deactivate soft-deletes a user. The row stays so history keeps its references.
func (s *UserService) Deactivate(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	scope, err := userScope(p, id)
	if err != nil {
		return err
	}
	_, err = s.users.Update(ctx, scope, id, func(u *domain.User) error {
		if err := s.authz.Authorize(ctx, p, security.ActionDelete, userResource(u)); err != nil {
			return err
		}
		u.Active = false
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("user deactivated", slog.String("user_id", id.String()), slog.String("by", p.UserID.String()))
	return nil
}

// Delete removes a user permanently. Only system admins hard-delete.
func (s *UserService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if p.Role != domain.RoleSystemAdmin {
		return fmt.Errorf("%w: only system admins can permanently delete users", domain.ErrForbidden)
	}
	u, err := s.users.GetByID(ctx, domain.SystemWideScope(), id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionDelete, userResource(u)); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, domain.SystemWideScope(), id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("user_id", id.String()), slog.String("by", p.UserID.String()))
	return nil
}
