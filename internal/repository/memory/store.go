// Package memory is a single-process entity store used for development and
// tests. It enforces the same tenant scope and uniqueness rules as the
// Postgres store.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/tenant"
)

// Store holds every entity behind one lock so cascades are atomic. User
// creation hooks run outside the lock against a reserved email.
type Store struct {
	mu         sync.RWMutex
	orgs       map[uuid.UUID]domain.Organization
	users      map[uuid.UUID]domain.User
	reserved   map[string]struct{} // emails of users whose create hook is running
	leads      map[uuid.UUID]domain.Lead
	complaints map[uuid.UUID]domain.Complaint
	now        func() time.Time
}

func New() *Store {
	return &Store{
		orgs:       make(map[uuid.UUID]domain.Organization),
		users:      make(map[uuid.UUID]domain.User),
		reserved:   make(map[string]struct{}),
		leads:      make(map[uuid.UUID]domain.Lead),
		complaints: make(map[uuid.UUID]domain.Complaint),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Organizations() *OrganizationRepository { return &OrganizationRepository{s: s} }
func (s *Store) Users() *UserRepository                 { return &UserRepository{s: s} }
func (s *Store) Leads() *LeadRepository                 { return &LeadRepository{s: s} }
func (s *Store) Complaints() *ComplaintRepository       { return &ComplaintRepository{s: s} }

// Ping satisfies the readiness check.
func (s *Store) Ping(context.Context) error { return nil }

func newestFirst[T any](rows []*T, created func(*T) time.Time) {
	slices.SortStableFunc(rows, func(a, b *T) int {
		return created(b).Compare(created(a))
	})
}

// OrganizationRepository implements domain.OrganizationRepository
type OrganizationRepository struct{ s *Store }

func (r *OrganizationRepository) Create(_ context.Context, org *domain.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.orgs {
		if existing.Name == org.Name {
			return fmt.Errorf("%w: organization %q already exists", domain.ErrConflict, org.Name)
		}
	}
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	if org.Tier == "" {
		org.Tier = domain.TierFree
	}
	now := r.s.now()
	org.CreatedAt, org.UpdatedAt = now, now
	r.s.orgs[org.ID] = *org
	return nil
}

func (r *OrganizationRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	org, ok := r.s.orgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &org, nil
}

func (r *OrganizationRepository) GetByName(_ context.Context, name string) (*domain.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, org := range r.s.orgs {
		if org.Name == name {
			return &org, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *OrganizationRepository) List(_ context.Context) ([]*domain.Organization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*domain.Organization, 0, len(r.s.orgs))
	for _, org := range r.s.orgs {
		org := org
		out = append(out, &org)
	}
	slices.SortFunc(out, func(a, b *domain.Organization) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (r *OrganizationRepository) Update(_ context.Context, id uuid.UUID, fn func(*domain.Organization) error) (*domain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.orgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := current
	if err := fn(&next); err != nil {
		return nil, err
	}
	for otherID, other := range r.s.orgs {
		if otherID != id && other.Name == next.Name {
			return nil, fmt.Errorf("%w: organization %q already exists", domain.ErrConflict, next.Name)
		}
	}
	next.ID, next.CreatedAt, next.UpdatedAt = current.ID, current.CreatedAt, r.s.now()
	r.s.orgs[id] = next
	return &next, nil
}

// Delete removes the organization with its users, leads and complaints.
func (r *OrganizationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orgs[id]; !ok {
		return domain.ErrNotFound
	}
	for cid, c := range r.s.complaints {
		if c.OrganizationID == id {
			delete(r.s.complaints, cid)
		}
	}
	for lid, l := range r.s.leads {
		if l.OrganizationID == id {
			delete(r.s.leads, lid)
		}
	}
	for uid, u := range r.s.users {
		if u.OrganizationID != nil && *u.OrganizationID == id {
			delete(r.s.users, uid)
		}
	}
	delete(r.s.orgs, id)
	return nil
}

// UserRepository implements domain.UserRepository
type UserRepository struct{ s *Store }

// Create stores the user once onCreated succeeds. The email is reserved
// while the hook runs so the store stays readable; a hook error leaves the
// store untouched.
func (r *UserRepository) Create(ctx context.Context, user *domain.User, onCreated func(context.Context, *domain.User) error) error {
	user.Email = domain.NormalizeEmail(user.Email)
	if err := r.reserve(user); err != nil {
		return err
	}
	defer r.release(user.Email)

	if onCreated != nil {
		if err := onCreated(ctx, user); err != nil {
			return err
		}
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user.OrganizationID != nil {
		if _, ok := r.s.orgs[*user.OrganizationID]; !ok {
			return fmt.Errorf("%w: referenced row does not exist", domain.ErrValidation)
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepository) reserve(user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.reserved[user.Email]; taken {
		return fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
	}
	if user.OrganizationID != nil {
		if _, ok := r.s.orgs[*user.OrganizationID]; !ok {
			return fmt.Errorf("%w: referenced row does not exist", domain.ErrValidation)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.reserved[user.Email] = struct{}{}
	return nil
}

func (r *UserRepository) release(email string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.reserved, email)
}

func (r *UserRepository) GetByID(_ context.Context, scope domain.Scope, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok || !tenant.Permits(scope, u.OrganizationID) {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = domain.NormalizeEmail(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *UserRepository) List(_ context.Context, scope domain.Scope, filter domain.UserFilter) ([]*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.User{}
	for _, u := range r.s.users {
		if !tenant.Permits(scope, u.OrganizationID) {
			continue
		}
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.ActiveOnly && !u.Active {
			continue
		}
		u := u
		out = append(out, &u)
	}
	newestFirst(out, func(u *domain.User) time.Time { return u.CreatedAt })
	return out, nil
}

func (r *UserRepository) Update(_ context.Context, scope domain.Scope, id uuid.UUID, fn func(*domain.User) error) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[id]
	if !ok || !tenant.Permits(scope, current.OrganizationID) {
		return nil, domain.ErrNotFound
	}
	next := current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.Email = domain.NormalizeEmail(next.Email)
	if _, taken := r.s.reserved[next.Email]; taken && next.Email != current.Email {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	for otherID, other := range r.s.users {
		if otherID != id && other.Email == next.Email {
			return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
	}
	next.ID, next.OrganizationID, next.CreatedAt, next.UpdatedAt = current.ID, current.OrganizationID, current.CreatedAt, r.s.now()
	r.s.users[id] = next
	return &next, nil
}

// Delete refuses users that still created leads or complaints and clears
// them as assignee or customer elsewhere.
func (r *UserRepository) Delete(_ context.Context, scope domain.Scope, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || !tenant.Permits(scope, u.OrganizationID) {
		return domain.ErrNotFound
	}
	for _, l := range r.s.leads {
		if l.CreatedBy == id {
			return fmt.Errorf("%w: user created leads", domain.ErrConflict)
		}
	}
	for _, c := range r.s.complaints {
		if c.CreatedBy == id {
			return fmt.Errorf("%w: user created complaints", domain.ErrConflict)
		}
	}
	for lid, l := range r.s.leads {
		if l.AssignedTo != nil && *l.AssignedTo == id {
			l.AssignedTo = nil
			r.s.leads[lid] = l
		}
	}
	for cid, c := range r.s.complaints {
		changed := false
		if c.AssignedTo != nil && *c.AssignedTo == id {
			c.AssignedTo, changed = nil, true
		}
		if c.CustomerID != nil && *c.CustomerID == id {
			c.CustomerID, changed = nil, true
		}
		if changed {
			r.s.complaints[cid] = c
		}
	}
	delete(r.s.users, id)
	return nil
}

// LeadRepository implements domain.LeadRepository
type LeadRepository struct{ s *Store }

func (r *LeadRepository) Create(_ context.Context, lead *domain.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orgs[lead.OrganizationID]; !ok {
		return fmt.Errorf("%w: referenced row does not exist", domain.ErrValidation)
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	now := r.s.now()
	lead.CreatedAt, lead.UpdatedAt = now, now
	r.s.leads[lead.ID] = *lead
	return nil
}

func (r *LeadRepository) GetByID(_ context.Context, scope domain.Scope, id uuid.UUID) (*domain.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.leads[id]
	if !ok || !tenant.Permits(scope, &l.OrganizationID) {
		return nil, domain.ErrNotFound
	}
	return &l, nil
}

func (r *LeadRepository) List(_ context.Context, scope domain.Scope, filter domain.LeadFilter) ([]*domain.Lead, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.Lead{}
	for _, l := range r.s.leads {
		if !tenant.Permits(scope, &l.OrganizationID) {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		if filter.AssignedTo != nil && (l.AssignedTo == nil || *l.AssignedTo != *filter.AssignedTo) {
			continue
		}
		l := l
		out = append(out, &l)
	}
	newestFirst(out, func(l *domain.Lead) time.Time { return l.CreatedAt })
	return out, nil
}

func (r *LeadRepository) Update(_ context.Context, scope domain.Scope, id uuid.UUID, fn func(*domain.Lead) error) (*domain.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.leads[id]
	if !ok || !tenant.Permits(scope, &current.OrganizationID) {
		return nil, domain.ErrNotFound
	}
	next := current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.ID, next.OrganizationID, next.CreatedBy = current.ID, current.OrganizationID, current.CreatedBy
	next.CreatedAt, next.UpdatedAt = current.CreatedAt, r.s.now()
	r.s.leads[id] = next
	return &next, nil
}

func (r *LeadRepository) Delete(_ context.Context, scope domain.Scope, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok || !tenant.Permits(scope, &l.OrganizationID) {
		return domain.ErrNotFound
	}
	delete(r.s.leads, id)
	return nil
}

func (r *LeadRepository) CountByStatus(_ context.Context, scope domain.Scope) (map[domain.LeadStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[domain.LeadStatus]int{}
	for _, l := range r.s.leads {
		if tenant.Permits(scope, &l.OrganizationID) {
			out[l.Status]++
		}
	}
	return out, nil
}

// ComplaintRepository implements domain.ComplaintRepository
type ComplaintRepository struct{ s *Store }

func (r *ComplaintRepository) Create(_ context.Context, c *domain.Complaint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orgs[c.OrganizationID]; !ok {
		return fmt.Errorf("%w: referenced row does not exist", domain.ErrValidation)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.complaints[c.ID] = *c
	return nil
}

func (r *ComplaintRepository) GetByID(_ context.Context, scope domain.Scope, id uuid.UUID) (*domain.Complaint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.complaints[id]
	if !ok || !tenant.Permits(scope, &c.OrganizationID) {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *ComplaintRepository) List(_ context.Context, scope domain.Scope, filter domain.ComplaintFilter) ([]*domain.Complaint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*domain.Complaint{}
	for _, c := range r.s.complaints {
		if !tenant.Permits(scope, &c.OrganizationID) {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.CreatedBy != nil && c.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.CustomerID != nil && (c.CustomerID == nil || *c.CustomerID != *filter.CustomerID) {
			continue
		}
		c := c
		out = append(out, &c)
	}
	newestFirst(out, func(c *domain.Complaint) time.Time { return c.CreatedAt })
	return out, nil
}

func (r *ComplaintRepository) Update(_ context.Context, scope domain.Scope, id uuid.UUID, fn func(*domain.Complaint) error) (*domain.Complaint, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.complaints[id]
	if !ok || !tenant.Permits(scope, &current.OrganizationID) {
		return nil, domain.ErrNotFound
	}
	next := current
	if err := fn(&next); err != nil {
		return nil, err
	}
	next.ID, next.OrganizationID, next.CreatedBy = current.ID, current.OrganizationID, current.CreatedBy
	next.CreatedAt, next.UpdatedAt = current.CreatedAt, r.s.now()
	r.s.complaints[id] = next
	return &next, nil
}

func (r *ComplaintRepository) Delete(_ context.Context, scope domain.Scope, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.complaints[id]
	if !ok || !tenant.Permits(scope, &c.OrganizationID) {
		return domain.ErrNotFound
	}
	delete(r.s.complaints, id)
	return nil
}

func (r *ComplaintRepository) CountByStatus(_ context.Context, scope domain.Scope) (map[domain.ComplaintStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := map[domain.ComplaintStatus]int{}
	for _, c := range r.s.complaints {
		if tenant.Permits(scope, &c.OrganizationID) {
			out[c.Status]++
		}
	}
	return out, nil
}

var (
	_ domain.OrganizationRepository = (*OrganizationRepository)(nil)
	_ domain.UserRepository         = (*UserRepository)(nil)
	_ domain.LeadRepository         = (*LeadRepository)(nil)
	_ domain.ComplaintRepository    = (*ComplaintRepository)(nil)
)
