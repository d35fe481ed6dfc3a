package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/ai"
	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

// TierLookup reports an organization's subscription tier.
type TierLookup interface {
	Tier(ctx context.Context, orgID uuid.UUID) (domain.SubscriptionTier, error)
}

type LeadService struct {
	leads  domain.LeadRepository
	users  domain.UserRepository
	tiers  TierLookup
	scorer ai.LeadScorer
	authz  Authorizer
	logger *slog.Logger
}

func NewLeadService(leads domain.LeadRepository, users domain.UserRepository, tiers TierLookup, scorer ai.LeadScorer, authz Authorizer, logger *slog.Logger) *LeadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeadService{leads: leads, users: users, tiers: tiers, scorer: scorer, authz: authz, logger: logger}
}

// LeadInput describes a new lead. There is deliberately no organization
// field: a lead always belongs to its creator's organization.
type LeadInput struct {
	Name       string
	Email      string
	Phone      string
	AssignedTo *uuid.UUID
}

func (s *LeadService) Create(ctx context.Context, p domain.Principal, in LeadInput) (*domain.Lead, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionCreate, security.Resource{Kind: security.ResourceLead, OrganizationID: p.OrganizationID}); err != nil {
		return nil, err
	}
	if p.OrganizationID == nil {
		return nil, domain.ErrNoOrganizationAssigned
	}
	orgID := *p.OrganizationID

	name, err := requireText("name", in.Name)
	if err != nil {
		return nil, err
	}
	email, err := optionalEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.AssignedTo != nil {
		if err := requireOrgMember(ctx, s.users, orgID, *in.AssignedTo, "assigned_to", domain.RoleOrgAdmin, domain.RoleEmployee); err != nil {
			return nil, err
		}
	}

	lead := &domain.Lead{
		Name:           name,
		Email:          email,
		Phone:          in.Phone,
		OrganizationID: orgID,
		CreatedBy:      p.UserID,
		AssignedTo:     in.AssignedTo,
		Status:         domain.LeadNew,
		Category:       domain.CategoryCold,
	}
	if ok, err := s.scoringEnabled(ctx, orgID); err != nil {
		return nil, err
	} else if ok {
		s.applyScore(ctx, lead)
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, err
	}
	s.logger.Info("lead created",
		slog.String("lead_id", lead.ID.String()),
		slog.String("organization_id", orgID.String()),
	)
	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lead, error) {
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	lead, err := s.leads.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionRead, leadResource(lead)); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) List(ctx context.Context, p domain.Principal, filter domain.LeadFilter) ([]*domain.Lead, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionList, security.Resource{Kind: security.ResourceLead}); err != nil {
		return nil, err
	}
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	return s.leads.List(ctx, scope, filter)
}

// LeadUpdate carries the fields to change; nil means unchanged.
type LeadUpdate struct {
	Name       *string
	Email      *string
	Phone      *string
	Status     *domain.LeadStatus
	AssignedTo *uuid.UUID
	Unassign   bool // clears the assignee; excludes AssignedTo
}

// Update authorizes against and transitions from the locked current row,
// so a concurrent status change cannot be overwritten into an illegal state.
func (s *LeadService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, in LeadUpdate) (*domain.Lead, error) {
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	if in.Unassign && in.AssignedTo != nil {
		return nil, fmt.Errorf("%w: assigned_to and unassign are exclusive", domain.ErrValidation)
	}
	var email string
	if in.Email != nil {
		if email, err = optionalEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if in.AssignedTo != nil {
		// the organization never changes, so the assignee is checked
		// against an unlocked read before the update takes the row lock
		current, err := s.leads.GetByID(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if err := s.authz.Authorize(ctx, p, security.ActionUpdate, leadResource(current)); err != nil {
			return nil, err
		}
		if err := requireOrgMember(ctx, s.users, current.OrganizationID, *in.AssignedTo, "assigned_to", domain.RoleOrgAdmin, domain.RoleEmployee); err != nil {
			return nil, err
		}
	}

	var from domain.LeadStatus
	lead, err := s.leads.Update(ctx, scope, id, func(l *domain.Lead) error {
		if err := s.authz.Authorize(ctx, p, security.ActionUpdate, leadResource(l)); err != nil {
			return err
		}
		from = l.Status
		if in.Status != nil {
			if err := l.Status.TransitionTo(*in.Status); err != nil {
				return err
			}
			l.Status = *in.Status
		}
		if in.AssignedTo != nil {
			l.AssignedTo = in.AssignedTo
		}
		if in.Unassign {
			l.AssignedTo = nil
		}
		if in.Name != nil {
			name, err := requireText("name", *in.Name)
			if err != nil {
				return err
			}
			l.Name = name
		}
		if in.Email != nil {
			l.Email = email
		}
		if in.Phone != nil {
			l.Phone = *in.Phone
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != lead.Status {
		s.logger.Info("lead status changed",
			slog.String("lead_id", id.String()),
			slog.String("from", string(from)),
			slog.String("to", string(lead.Status)),
		)
	}
	return lead, nil
}

func (s *LeadService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	scope, err := tenant.Resolve(p)
	if err != nil {
		return err
	}
	lead, err := s.leads.GetByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionDelete, leadResource(lead)); err != nil {
		return err
	}
	return s.leads.Delete(ctx, scope, id)
}

// Rescore recomputes the lead score. Requires a tier with ai_scoring.
func (s *LeadService) Rescore(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lead, error) {
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	current, err := s.leads.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionUpdate, leadResource(current)); err != nil {
		return nil, err
	}
	ok, err := s.scoringEnabled(ctx, current.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: subscription tier does not include %s", domain.ErrForbidden, domain.FeatureAIScoring)
	}
	return s.leads.Update(ctx, scope, id, func(l *domain.Lead) error {
		if err := s.authz.Authorize(ctx, p, security.ActionUpdate, leadResource(l)); err != nil {
			return err
		}
		score, err := s.scorer.Score(ctx, ai.LeadFields{Name: l.Name, Email: l.Email, Phone: l.Phone})
		if err != nil {
			return fmt.Errorf("failed to score lead: %w", err)
		}
		l.Score = score
		l.Category = domain.CategoryForScore(score)
		return nil
	})
}

func (s *LeadService) scoringEnabled(ctx context.Context, orgID uuid.UUID) (bool, error) {
	if s.scorer == nil || s.tiers == nil {
		return false, nil
	}
	tier, err := s.tiers.Tier(ctx, orgID)
	if err != nil {
		return false, err
	}
	return tier.Allows(domain.FeatureAIScoring), nil
}

// applyScore is best effort on create; a scorer failure leaves the lead cold.
func (s *LeadService) applyScore(ctx context.Context, lead *domain.Lead) {
	score, err := s.scorer.Score(ctx, ai.LeadFields{Name: lead.Name, Email: lead.Email, Phone: lead.Phone})
	if err != nil {
		s.logger.Warn("lead scoring failed", slog.String("error", err.Error()))
		return
	}
	lead.Score = score
	lead.Category = domain.CategoryForScore(score)
}
