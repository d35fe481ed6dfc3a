package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/pkg/cache"
)

const orgCachePrefix = "org:"

// OrganizationService manages tenants and their subscription tier. Reads
// go through a short-lived cache since every lead write looks up the tier.
type OrganizationService struct {
	orgs   domain.OrganizationRepository
	authz  Authorizer
	cache  *cache.Cache[domain.Organization]
	ttl    time.Duration
	logger *slog.Logger
}

func NewOrganizationService(orgs domain.OrganizationRepository, authz Authorizer, c *cache.Cache[domain.Organization], ttl time.Duration, logger *slog.Logger) *OrganizationService {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = cache.New[domain.Organization]()
	}
	return &OrganizationService{orgs: orgs, authz: authz, cache: c, ttl: ttl, logger: logger}
}

func orgResource(id uuid.UUID) security.Resource {
	return security.Resource{Kind: security.ResourceOrganization, ID: id, OrganizationID: &id}
}

// OrganizationInput describes a new tenant
type OrganizationInput struct {
	Name      string
	StorageID *string
	Tier      domain.SubscriptionTier
}

func (s *OrganizationService) Create(ctx context.Context, p domain.Principal, in OrganizationInput) (*domain.Organization, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionCreate, security.Resource{Kind: security.ResourceOrganization}); err != nil {
		return nil, err
	}
	name, err := requireText("name", in.Name)
	if err != nil {
		return nil, err
	}
	tier := in.Tier
	if tier == "" {
		tier = domain.TierFree
	}
	if _, err := domain.ParseTier(string(tier)); err != nil {
		return nil, err
	}

	org := &domain.Organization{Name: name, StorageID: in.StorageID, Tier: tier, Active: true}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, err
	}
	s.logger.Info("organization created",
		slog.String("organization_id", org.ID.String()),
		slog.String("tier", string(org.Tier)),
	)
	return org, nil
}

func (s *OrganizationService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Organization, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionRead, orgResource(id)); err != nil {
		return nil, err
	}
	return s.lookup(ctx, id)
}

// List returns every organization to system admins and only their own to everyone else.
func (s *OrganizationService) List(ctx context.Context, p domain.Principal) ([]*domain.Organization, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionList, security.Resource{Kind: security.ResourceOrganization}); err != nil {
		return nil, err
	}
	if p.Role == domain.RoleSystemAdmin {
		return s.orgs.List(ctx)
	}
	if p.OrganizationID == nil {
		return nil, domain.ErrNoOrganizationAssigned
	}
	org, err := s.lookup(ctx, *p.OrganizationID)
	if err != nil {
		return nil, err
	}
	return []*domain.Organization{org}, nil
}

// OrganizationUpdate carries the fields to change; nil means unchanged.
type OrganizationUpdate struct {
	Name      *string
	StorageID *string
	Active    *bool
}

func (s *OrganizationService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, in OrganizationUpdate) (*domain.Organization, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, orgResource(id)); err != nil {
		return nil, err
	}
	if in.Active != nil && p.Role != domain.RoleSystemAdmin {
		return nil, fmt.Errorf("%w: only system admins can change organization activation", domain.ErrInsufficientPrivilege)
	}
	org, err := s.orgs.Update(ctx, id, func(o *domain.Organization) error {
		if in.Name != nil {
			name, err := requireText("name", *in.Name)
			if err != nil {
				return err
			}
			o.Name = name
		}
		if in.StorageID != nil {
			o.StorageID = in.StorageID
		}
		if in.Active != nil {
			o.Active = *in.Active
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(orgCachePrefix + id.String())
	return org, nil
}

// UpgradeSubscription moves an organization to a strictly higher tier.
func (s *OrganizationService) UpgradeSubscription(ctx context.Context, p domain.Principal, id uuid.UUID, tier domain.SubscriptionTier) (*domain.Organization, error) {
	if _, err := domain.ParseTier(string(tier)); err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, orgResource(id)); err != nil {
		return nil, err
	}
	var previous domain.SubscriptionTier
	org, err := s.orgs.Update(ctx, id, func(o *domain.Organization) error {
		if !tier.Above(o.Tier) {
			return fmt.Errorf("%w: cannot downgrade or reapply the same tier", domain.ErrValidation)
		}
		previous = o.Tier
		o.Tier = tier
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Delete(orgCachePrefix + id.String())
	s.logger.Info("subscription upgraded",
		slog.String("organization_id", id.String()),
		slog.String("from", string(previous)),
		slog.String("to", string(tier)),
	)
	return org, nil
}

// Delete removes the organization and everything it owns.
func (s *OrganizationService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if err := s.authz.Authorize(ctx, p, security.ActionDelete, orgResource(id)); err != nil {
		return err
	}
	if err := s.orgs.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Delete(orgCachePrefix + id.String())
	s.logger.Info("organization deleted", slog.String("organization_id", id.String()))
	return nil
}

// Tier reports an organization's current subscription tier.
func (s *OrganizationService) Tier(ctx context.Context, orgID uuid.UUID) (domain.SubscriptionTier, error) {
	org, err := s.lookup(ctx, orgID)
	if err != nil {
		return "", err
	}
	return org.Tier, nil
}

func (s *OrganizationService) lookup(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	key := orgCachePrefix + id.String()
	if org, ok := s.cache.Get(key); ok {
		return &org, nil
	}
	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		s.cache.Set(key, *org, s.ttl)
	}
	return org, nil
}
