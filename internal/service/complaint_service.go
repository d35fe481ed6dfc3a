package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/ai"
	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

type ComplaintService struct {
	complaints   domain.ComplaintRepository
	users        domain.UserRepository
	classifier   ai.Classifier
	authz        Authorizer
	autoClassify bool
	logger       *slog.Logger
}

func NewComplaintService(complaints domain.ComplaintRepository, users domain.UserRepository, classifier ai.Classifier, authz Authorizer, autoClassify bool, logger *slog.Logger) *ComplaintService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComplaintService{
		complaints:   complaints,
		users:        users,
		classifier:   classifier,
		authz:        authz,
		autoClassify: autoClassify,
		logger:       logger,
	}
}

// ComplaintInput describes a new complaint. The organization is always
// the creator's.
type ComplaintInput struct {
	Title       string
	Description string
	Type        string
	Priority    domain.Priority
	AssignedTo  *uuid.UUID
	CustomerID  *uuid.UUID
}

func (s *ComplaintService) Create(ctx context.Context, p domain.Principal, in ComplaintInput) (*domain.Complaint, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionCreate, security.Resource{Kind: security.ResourceComplaint, OrganizationID: p.OrganizationID}); err != nil {
		return nil, err
	}
	if p.OrganizationID == nil {
		return nil, domain.ErrNoOrganizationAssigned
	}
	orgID := *p.OrganizationID

	title, err := requireText("title", in.Title)
	if err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, priority)
	}
	if in.AssignedTo != nil {
		if err := requireOrgMember(ctx, s.users, orgID, *in.AssignedTo, "assigned_to", domain.RoleOrgAdmin, domain.RoleEmployee); err != nil {
			return nil, err
		}
	}
	if in.CustomerID != nil {
		if err := requireOrgMember(ctx, s.users, orgID, *in.CustomerID, "customer_id", domain.RoleCustomer); err != nil {
			return nil, err
		}
	}

	complaint := &domain.Complaint{
		Title:          title,
		Description:    in.Description,
		Type:           in.Type,
		OrganizationID: orgID,
		CreatedBy:      p.UserID,
		AssignedTo:     in.AssignedTo,
		CustomerID:     in.CustomerID,
		Status:         domain.ComplaintOpen,
		Priority:       priority,
	}
	if s.autoClassify && s.classifier != nil {
		if err := s.classify(ctx, complaint); err != nil {
			s.logger.Warn("complaint classification failed", slog.String("error", err.Error()))
		}
	}

	if err := s.complaints.Create(ctx, complaint); err != nil {
		return nil, err
	}
	s.logger.Info("complaint created",
		slog.String("complaint_id", complaint.ID.String()),
		slog.String("organization_id", orgID.String()),
		slog.String("classification", complaint.Classification),
	)
	return complaint, nil
}

func (s *ComplaintService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Complaint, error) {
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	c, err := s.complaints.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionRead, complaintResource(c)); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns complaints in scope. Customers only ever see complaints raised for them.
func (s *ComplaintService) List(ctx context.Context, p domain.Principal, filter domain.ComplaintFilter) ([]*domain.Complaint, error) {
	if err := s.authz.Authorize(ctx, p, security.ActionList, security.Resource{Kind: security.ResourceComplaint}); err != nil {
		return nil, err
	}
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	if p.Role == domain.RoleCustomer {
		self := p.UserID
		filter.CustomerID = &self
	}
	return s.complaints.List(ctx, scope, filter)
}

// ComplaintUpdate carries the fields to change; nil means unchanged.
type ComplaintUpdate struct {
	Title       *string
	Description *string
	Type        *string
	Status      *domain.ComplaintStatus
	Priority    *domain.Priority
	AssignedTo  *uuid.UUID
	Unassign    bool // clears the assignee; excludes AssignedTo
}

func (s *ComplaintService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, in ComplaintUpdate) (*domain.Complaint, error) {
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, *in.Priority)
	}
	if in.Unassign && in.AssignedTo != nil {
		return nil, fmt.Errorf("%w: assigned_to and unassign are exclusive", domain.ErrValidation)
	}
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	if in.AssignedTo != nil {
		current, err := s.complaints.GetByID(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if err := s.authz.Authorize(ctx, p, security.ActionUpdate, complaintResource(current)); err != nil {
			return nil, err
		}
		if err := requireOrgMember(ctx, s.users, current.OrganizationID, *in.AssignedTo, "assigned_to", domain.RoleOrgAdmin, domain.RoleEmployee); err != nil {
			return nil, err
		}
	}

	var from domain.ComplaintStatus
	c, err := s.complaints.Update(ctx, scope, id, func(c *domain.Complaint) error {
		if err := s.authz.Authorize(ctx, p, security.ActionUpdate, complaintResource(c)); err != nil {
			return err
		}
		from = c.Status
		if in.Status != nil {
			if err := c.Status.TransitionTo(*in.Status); err != nil {
				return err
			}
			c.Status = *in.Status
		}
		if in.AssignedTo != nil {
			c.AssignedTo = in.AssignedTo
		}
		if in.Unassign {
			c.AssignedTo = nil
		}
		if in.Title != nil {
			title, err := requireText("title", *in.Title)
			if err != nil {
				return err
			}
			c.Title = title
		}
		if in.Description != nil {
			c.Description = *in.Description
		}
		if in.Type != nil {
			c.Type = *in.Type
		}
		if in.Priority != nil {
			c.Priority = *in.Priority
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != c.Status {
		s.logger.Info("complaint status changed",
			slog.String("complaint_id", id.String()),
			slog.String("from", string(from)),
			slog.String("to", string(c.Status)),
		)
	}
	return c, nil
}

func (s *ComplaintService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	scope, err := tenant.Resolve(p)
	if err != nil {
		return err
	}
	c, err := s.complaints.GetByID(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(ctx, p, security.ActionDelete, complaintResource(c)); err != nil {
		return err
	}
	return s.complaints.Delete(ctx, scope, id)
}

// Classify labels the complaint from its text and escalates priority when
// the label calls for it.
func (s *ComplaintService) Classify(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Complaint, error) {
	if s.classifier == nil {
		return nil, fmt.Errorf("%w: no classifier configured", domain.ErrServiceUnavailable)
	}
	scope, err := tenant.Resolve(p)
	if err != nil {
		return nil, err
	}
	return s.complaints.Update(ctx, scope, id, func(c *domain.Complaint) error {
		if err := s.authz.Authorize(ctx, p, security.ActionUpdate, complaintResource(c)); err != nil {
			return err
		}
		return s.classify(ctx, c)
	})
}

func (s *ComplaintService) classify(ctx context.Context, c *domain.Complaint) error {
	text := strings.TrimSpace(c.Title + " " + c.Description)
	result, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to classify complaint: %w", err)
	}
	c.Classification = result.Label
	if result.Priority != "" {
		c.Priority = result.Priority
	}
	return nil
}
