package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the lead pipeline state
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
	LeadConverted LeadStatus = "converted"
	LeadClosed    LeadStatus = "closed"
)

var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadNew:       {LeadContacted, LeadClosed},
	LeadContacted: {LeadConverted, LeadClosed},
	LeadConverted: nil,
	LeadClosed:    nil,
}

func (s LeadStatus) Valid() bool {
	_, ok := leadTransitions[s]
	return ok
}

// TransitionTo checks that the lead may move from s to next.
// Staying in the same state is allowed.
func (s LeadStatus) TransitionTo(next LeadStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown lead status %q", ErrValidation, next)
	}
	if s == next {
		return nil
	}
	for _, allowed := range leadTransitions[s] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("%w: lead %s -> %s", ErrInvalidStateTransition, s, next)
}

// Lead categories derived from score
const (
	CategoryHot  = "hot"
	CategoryWarm = "warm"
	CategoryCold = "cold"
)

// CategoryForScore buckets a 0-100 score.
func CategoryForScore(score float64) string {
	switch {
	case score >= 70:
		return CategoryHot
	case score >= 40:
		return CategoryWarm
	default:
		return CategoryCold
	}
}

// Lead represents a sales prospect owned by one organization
type Lead struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Name           string     `json:"name" db:"name"`
	Email          string     `json:"email" db:"email"`
	Phone          string     `json:"phone" db:"phone"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	CreatedBy      uuid.UUID  `json:"created_by" db:"created_by"`
	AssignedTo     *uuid.UUID `json:"assigned_to" db:"assigned_to"`
	Status         LeadStatus `json:"status" db:"status"`
	Score          float64    `json:"score" db:"score"`
	Category       string     `json:"category" db:"category"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// LeadFilter narrows lead listings
type LeadFilter struct {
	Status     *LeadStatus
	AssignedTo *uuid.UUID
}

// LeadRepository defines data access for leads.
// Methods taking a Scope never return or touch rows outside it.
type LeadRepository interface {
	Create(ctx context.Context, lead *Lead) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*Lead, error)
	List(ctx context.Context, scope Scope, filter LeadFilter) ([]*Lead, error)
	// Update locks the current row, hands it to fn and persists fn's
	// changes. An error from fn aborts without writing.
	Update(ctx context.Context, scope Scope, id uuid.UUID, fn func(*Lead) error) (*Lead, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
	CountByStatus(ctx context.Context, scope Scope) (map[LeadStatus]int, error)
}
