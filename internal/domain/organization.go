package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier is an organization's plan
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierBasic   SubscriptionTier = "basic"
	TierPremium SubscriptionTier = "premium"
)

// Features gated by subscription tier
const (
	FeatureBasicDashboard  = "basic_dashboard"
	FeatureLimitedLeads    = "limited_leads"
	FeatureAIScoring       = "ai_scoring"
	FeaturePrioritySupport = "priority_support"
)

var tierOrder = []SubscriptionTier{TierFree, TierBasic, TierPremium}

var tierFeatures = map[SubscriptionTier][]string{
	TierFree:    {FeatureBasicDashboard, FeatureLimitedLeads},
	TierBasic:   {FeatureBasicDashboard, FeatureLimitedLeads, FeatureAIScoring},
	TierPremium: {FeatureBasicDashboard, FeatureLimitedLeads, FeatureAIScoring, FeaturePrioritySupport},
}

// ParseTier validates a tier name.
func ParseTier(s string) (SubscriptionTier, error) {
	t := SubscriptionTier(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(tierOrder, t) {
		return "", fmt.Errorf("%w: unknown subscription tier %q", ErrValidation, s)
	}
	return t, nil
}

// Allows reports whether the tier includes a feature.
func (t SubscriptionTier) Allows(feature string) bool {
	return slices.Contains(tierFeatures[t], feature)
}

// Above reports whether t is a higher plan than other.
func (t SubscriptionTier) Above(other SubscriptionTier) bool {
	return slices.Index(tierOrder, t) > slices.Index(tierOrder, other)
}

// Organization represents a tenant
type Organization struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	Name      string           `json:"name" db:"name"`
	StorageID *string          `json:"storage_id,omitempty" db:"storage_id"` // informational label only
	Tier      SubscriptionTier `json:"subscription_tier" db:"subscription_tier"`
	Active    bool             `json:"is_active" db:"is_active"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// OrganizationRepository defines data access for organizations
type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetByName(ctx context.Context, name string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*Organization) error) (*Organization, error)
	// Delete removes the organization and every user, lead and complaint it owns.
	Delete(ctx context.Context, id uuid.UUID) error
}
