package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/security/auth"
)

// seedOptions describes the bootstrap tenant and accounts.
type seedOptions struct {
	OrgName          string
	Tier             domain.SubscriptionTier
	AdminEmail       string
	AdminPassword    string
	OrgAdminEmail    string
	OrgAdminPassword string
	BcryptCost       int
}

type seedResult struct {
	Organization *domain.Organization
	SystemAdmin  *domain.User
	OrgAdmin     *domain.User
}

// seed creates the first organization and a system admin. Running it again
// reuses whatever already exists.
func seed(ctx context.Context, orgs domain.OrganizationRepository, users domain.UserRepository, opts seedOptions, log *slog.Logger) (*seedResult, error) {
	if err := auth.ValidatePassword(opts.AdminPassword); err != nil {
		return nil, fmt.Errorf("admin password: %w", err)
	}

	name := strings.TrimSpace(opts.OrgName)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", domain.ErrValidation)
	}
	org, err := orgs.GetByName(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		org = &domain.Organization{Name: name, Tier: opts.Tier, Active: true}
		if err := orgs.Create(ctx, org); err != nil {
			return nil, fmt.Errorf("failed to create organization: %w", err)
		}
		log.Info("organization created", slog.String("organization_id", org.ID.String()), slog.String("name", org.Name))
	case err != nil:
		return nil, fmt.Errorf("failed to look up organization: %w", err)
	default:
		log.Info("organization already exists", slog.String("organization_id", org.ID.String()))
	}

	res := &seedResult{Organization: org}
	res.SystemAdmin, err = ensureUser(ctx, users, opts.AdminEmail, opts.AdminPassword, domain.RoleSystemAdmin, nil, opts.BcryptCost, log)
	if err != nil {
		return nil, err
	}

	if opts.OrgAdminEmail != "" {
		if err := auth.ValidatePassword(opts.OrgAdminPassword); err != nil {
			return nil, fmt.Errorf("org admin password: %w", err)
		}
		orgID := org.ID
		res.OrgAdmin, err = ensureUser(ctx, users, opts.OrgAdminEmail, opts.OrgAdminPassword, domain.RoleOrgAdmin, &orgID, opts.BcryptCost, log)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func ensureUser(ctx context.Context, users domain.UserRepository, email, password string, role domain.Role, orgID *uuid.UUID, cost int, log *slog.Logger) (*domain.User, error) {
	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != role {
			return nil, fmt.Errorf("%s already exists with role %s", existing.Email, existing.Role)
		}
		log.Info("user already exists", slog.String("user_id", existing.ID.String()), slog.String("role", role.String()))
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up %s: %w", email, err)
	}

	digest, err := auth.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	name, _, _ := strings.Cut(email, "@")
	u := &domain.User{
		Email:          domain.NormalizeEmail(email),
		PasswordHash:   digest,
		FirstName:      name,
		Role:           role,
		OrganizationID: orgID,
		Active:         true,
	}
	if err := users.Create(ctx, u, nil); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", role, err)
	}
	log.Info("user created", slog.String("user_id", u.ID.String()), slog.String("role", role.String()))
	return u, nil
}
