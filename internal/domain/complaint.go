package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ComplaintStatus is the complaint workflow state
type ComplaintStatus string

const (
	ComplaintOpen       ComplaintStatus = "open"
	ComplaintInProgress ComplaintStatus = "in_progress"
	ComplaintClosed     ComplaintStatus = "closed"
)

var complaintTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintOpen:       {ComplaintInProgress},
	ComplaintInProgress: {ComplaintClosed},
	ComplaintClosed:     nil,
}

func (s ComplaintStatus) Valid() bool {
	_, ok := complaintTransitions[s]
	return ok
}

// TransitionTo checks that the complaint may move from s to next.
// Staying in the same state is allowed.
func (s ComplaintStatus) TransitionTo(next ComplaintStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown complaint status %q", ErrValidation, next)
	}
	if s == next {
		return nil
	}
	for _, allowed := range complaintTransitions[s] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("%w: complaint %s -> %s", ErrInvalidStateTransition, s, next)
}

// Priority of a complaint
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Complaint represents a customer issue tracked by an organization
type Complaint struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Title          string          `json:"title" db:"title"`
	Description    string          `json:"description" db:"description"`
	Type           string          `json:"type" db:"type"`
	OrganizationID uuid.UUID       `json:"organization_id" db:"organization_id"`
	CreatedBy      uuid.UUID       `json:"created_by" db:"created_by"`
	AssignedTo     *uuid.UUID      `json:"assigned_to" db:"assigned_to"`
	CustomerID     *uuid.UUID      `json:"customer_id" db:"customer_id"` // customer the complaint was raised for
	Status         ComplaintStatus `json:"status" db:"status"`
	Priority       Priority        `json:"priority" db:"priority"`
	Classification string          `json:"classification" db:"classification"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ComplaintFilter narrows complaint listings
type ComplaintFilter struct {
	Status     *ComplaintStatus
	CreatedBy  *uuid.UUID
	CustomerID *uuid.UUID
}

// ComplaintRepository defines data access for complaints.
// Methods taking a Scope never return or touch rows outside it.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint *Complaint) error
	GetByID(ctx context.Context, scope Scope, id uuid.UUID) (*Complaint, error)
	List(ctx context.Context, scope Scope, filter ComplaintFilter) ([]*Complaint, error)
	// Update locks the current row, hands it to fn and persists fn's
	// changes. An error from fn aborts without writing.
	Update(ctx context.Context, scope Scope, id uuid.UUID, fn func(*Complaint) error) (*Complaint, error)
	Delete(ctx context.Context, scope Scope, id uuid.UUID) error
	CountByStatus(ctx context.Context, scope Scope) (map[ComplaintStatus]int, error)
}
