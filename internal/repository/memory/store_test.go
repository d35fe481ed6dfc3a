package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
)

func seedOrg(t *testing.T, s *Store, name string) uuid.UUID {
	t.Helper()
	org := &domain.Organization{Name: name, Active: true}
	require.NoError(t, s.Organizations().Create(context.Background(), org))
	return org.ID
}

func seedLead(t *testing.T, s *Store, orgID uuid.UUID) *domain.Lead {
	t.Helper()
	lead := &domain.Lead{Name: "lead", OrganizationID: orgID, CreatedBy: uuid.New(), Status: domain.LeadNew}
	require.NoError(t, s.Leads().Create(context.Background(), lead))
	return lead
}

func TestLeadIsolationAcrossTenants(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgX, orgY := seedOrg(t, s, "x"), seedOrg(t, s, "y")

	inX := seedLead(t, s, orgX)
	for i := 0; i < 3; i++ {
		seedLead(t, s, orgY)
	}

	leads, err := s.Leads().List(ctx, domain.OrganizationScope(orgX), domain.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, inX.ID, leads[0].ID)

	all, err := s.Leads().List(ctx, domain.SystemWideScope(), domain.LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = s.Leads().GetByID(ctx, domain.OrganizationScope(orgY), inX.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.Leads().Update(ctx, domain.OrganizationScope(orgY), inX.ID, func(*domain.Lead) error { return nil })
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, s.Leads().Delete(ctx, domain.OrganizationScope(orgY), inX.ID), domain.ErrNotFound)

	none, err := s.Leads().List(ctx, domain.Scope{}, domain.LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserEmailUniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")

	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "Sam@Acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID}, nil))
	err := s.Users().Create(ctx, &domain.User{Email: "sam@acme.TEST", Role: domain.RoleCustomer, OrganizationID: &orgID}, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	u, err := s.Users().GetByEmail(ctx, " SAM@acme.test ")
	require.NoError(t, err)
	assert.Equal(t, "sam@acme.test", u.Email)
}

func TestUserCreateHookFailureLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")

	hookErr := errors.New("mail down")
	err := s.Users().Create(ctx, &domain.User{Email: "a@acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID},
		func(context.Context, *domain.User) error { return hookErr })
	assert.ErrorIs(t, err, hookErr)

	_, err = s.Users().GetByEmail(ctx, "a@acme.test")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserCreateUnknownOrganization(t *testing.T) {
	missing := uuid.New()
	err := New().Users().Create(context.Background(), &domain.User{Email: "a@b.c", Role: domain.RoleEmployee, OrganizationID: &missing}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateErrorLeavesRowUnchanged(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")
	c := &domain.Complaint{Title: "broken", OrganizationID: orgID, CreatedBy: uuid.New(), Status: domain.ComplaintClosed, Priority: domain.PriorityLow}
	require.NoError(t, s.Complaints().Create(ctx, c))

	_, err := s.Complaints().Update(ctx, domain.OrganizationScope(orgID), c.ID, func(cur *domain.Complaint) error {
		cur.Priority = domain.PriorityHigh
		return cur.Status.TransitionTo(domain.ComplaintOpen)
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStateTransition)

	got, err := s.Complaints().GetByID(ctx, domain.OrganizationScope(orgID), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityLow, got.Priority)
}

func TestUpdateKeepsOwnershipColumns(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgX, orgY := seedOrg(t, s, "x"), seedOrg(t, s, "y")
	lead := seedLead(t, s, orgX)

	updated, err := s.Leads().Update(ctx, domain.SystemWideScope(), lead.ID, func(l *domain.Lead) error {
		l.OrganizationID = orgY
		l.CreatedBy = uuid.New()
		l.Name = "renamed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, orgX, updated.OrganizationID)
	assert.Equal(t, lead.CreatedBy, updated.CreatedBy)
	assert.Equal(t, "renamed", updated.Name)
}

func TestComplaintFilterByCustomer(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")
	customer := uuid.New()

	mine := &domain.Complaint{Title: "mine", OrganizationID: orgID, CreatedBy: uuid.New(), CustomerID: &customer, Status: domain.ComplaintOpen}
	other := &domain.Complaint{Title: "other", OrganizationID: orgID, CreatedBy: uuid.New(), Status: domain.ComplaintOpen}
	require.NoError(t, s.Complaints().Create(ctx, mine))
	require.NoError(t, s.Complaints().Create(ctx, other))

	got, err := s.Complaints().List(ctx, domain.OrganizationScope(orgID), domain.ComplaintFilter{CustomerID: &customer})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestOrganizationDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgX, orgY := seedOrg(t, s, "x"), seedOrg(t, s, "y")

	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "x@x.test", Role: domain.RoleOrgAdmin, OrganizationID: &orgX}, nil))
	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "y@y.test", Role: domain.RoleOrgAdmin, OrganizationID: &orgY}, nil))
	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "root@crm.test", Role: domain.RoleSystemAdmin}, nil))
	seedLead(t, s, orgX)
	seedLead(t, s, orgY)
	require.NoError(t, s.Complaints().Create(ctx, &domain.Complaint{Title: "c", OrganizationID: orgX, CreatedBy: uuid.New(), Status: domain.ComplaintOpen}))

	require.NoError(t, s.Organizations().Delete(ctx, orgX))

	users, _ := s.Users().List(ctx, domain.SystemWideScope(), domain.UserFilter{})
	leads, _ := s.Leads().List(ctx, domain.SystemWideScope(), domain.LeadFilter{})
	complaints, _ := s.Complaints().List(ctx, domain.SystemWideScope(), domain.ComplaintFilter{})
	assert.Len(t, users, 2)
	assert.Len(t, leads, 1)
	assert.Empty(t, complaints)

	assert.ErrorIs(t, s.Organizations().Delete(ctx, orgX), domain.ErrNotFound)
}

func TestOrganizationNameConflict(t *testing.T) {
	s := New()
	seedOrg(t, s, "acme")
	err := s.Organizations().Create(context.Background(), &domain.Organization{Name: "acme"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserListFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")
	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "a@acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID, Active: true}, nil))
	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "b@acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID}, nil))
	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "c@acme.test", Role: domain.RoleCustomer, OrganizationID: &orgID, Active: true}, nil))

	role := domain.RoleEmployee
	got, err := s.Users().List(ctx, domain.OrganizationScope(orgID), domain.UserFilter{Role: &role, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a@acme.test", got[0].Email)
}

func TestUserCreateHookDoesNotBlockReads(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgX, orgY := seedOrg(t, s, "x"), seedOrg(t, s, "y")
	existing := &domain.User{Email: "old@x.test", Role: domain.RoleEmployee, OrganizationID: &orgX}
	require.NoError(t, s.Users().Create(ctx, existing, nil))
	seedLead(t, s, orgY)

	inHook, release := make(chan struct{}), make(chan struct{})
	created := make(chan error, 1)
	go func() {
		created <- s.Users().Create(ctx, &domain.User{Email: "new@x.test", Role: domain.RoleEmployee, OrganizationID: &orgX},
			func(context.Context, *domain.User) error {
				close(inHook)
				<-release
				return nil
			})
	}()
	<-inHook

	reads := make(chan error, 1)
	go func() {
		if _, err := s.Users().GetByID(ctx, domain.OrganizationScope(orgX), existing.ID); err != nil {
			reads <- err
			return
		}
		leads, err := s.Leads().List(ctx, domain.OrganizationScope(orgY), domain.LeadFilter{})
		if err == nil && len(leads) != 1 {
			err = errors.New("expected one lead")
		}
		reads <- err
	}()
	select {
	case err := <-reads:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reads blocked while a create hook was running")
	}

	// The email stays taken until the hook finishes, and the row is not visible yet.
	err := s.Users().Create(ctx, &domain.User{Email: "NEW@x.test", Role: domain.RoleCustomer, OrganizationID: &orgX}, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = s.Users().GetByEmail(ctx, "new@x.test")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	close(release)
	require.NoError(t, <-created)
	_, err = s.Users().GetByEmail(ctx, "new@x.test")
	require.NoError(t, err)
}

func TestUserCreateHookFailureReleasesEmail(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")

	err := s.Users().Create(ctx, &domain.User{Email: "a@acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID},
		func(context.Context, *domain.User) error { return errors.New("mail down") })
	require.Error(t, err)
	require.NoError(t, s.Users().Create(ctx, &domain.User{Email: "a@acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID}, nil))
}

func TestUserDeleteClearsAssignments(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")
	admin := &domain.User{Email: "admin@acme.test", Role: domain.RoleOrgAdmin, OrganizationID: &orgID}
	emp := &domain.User{Email: "emp@acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID}
	cust := &domain.User{Email: "cust@acme.test", Role: domain.RoleCustomer, OrganizationID: &orgID}
	for _, u := range []*domain.User{admin, emp, cust} {
		require.NoError(t, s.Users().Create(ctx, u, nil))
	}
	lead := &domain.Lead{Name: "l", OrganizationID: orgID, CreatedBy: admin.ID, AssignedTo: &emp.ID, Status: domain.LeadNew}
	require.NoError(t, s.Leads().Create(ctx, lead))
	c := &domain.Complaint{Title: "c", OrganizationID: orgID, CreatedBy: admin.ID, AssignedTo: &emp.ID, CustomerID: &cust.ID,
		Status: domain.ComplaintOpen, Priority: domain.PriorityLow}
	require.NoError(t, s.Complaints().Create(ctx, c))

	scope := domain.SystemWideScope()
	require.NoError(t, s.Users().Delete(ctx, scope, emp.ID))
	require.NoError(t, s.Users().Delete(ctx, scope, cust.ID))

	gotLead, err := s.Leads().GetByID(ctx, scope, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, gotLead.AssignedTo)
	gotComplaint, err := s.Complaints().GetByID(ctx, scope, c.ID)
	require.NoError(t, err)
	assert.Nil(t, gotComplaint.AssignedTo)
	assert.Nil(t, gotComplaint.CustomerID)
}

func TestUserDeleteRefusedWhileCreatorOfRecords(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgID := seedOrg(t, s, "acme")
	emp := &domain.User{Email: "emp@acme.test", Role: domain.RoleEmployee, OrganizationID: &orgID}
	require.NoError(t, s.Users().Create(ctx, emp, nil))
	require.NoError(t, s.Complaints().Create(ctx, &domain.Complaint{Title: "c", OrganizationID: orgID, CreatedBy: emp.ID,
		Status: domain.ComplaintOpen, Priority: domain.PriorityLow}))

	err := s.Users().Delete(ctx, domain.SystemWideScope(), emp.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = s.Users().GetByID(ctx, domain.SystemWideScope(), emp.ID)
	require.NoError(t, err)
}

func TestCountByStatusRespectsScope(t *testing.T) {
	ctx := context.Background()
	s := New()
	orgX, orgY := seedOrg(t, s, "x"), seedOrg(t, s, "y")
	seedLead(t, s, orgX)
	seedLead(t, s, orgX)
	seedLead(t, s, orgY)

	counts, err := s.Leads().CountByStatus(ctx, domain.OrganizationScope(orgX))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.LeadNew])

	counts, err = s.Leads().CountByStatus(ctx, domain.SystemWideScope())
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.LeadNew])

	complaints, err := s.Complaints().CountByStatus(ctx, domain.Scope{})
	require.NoError(t, err)
	assert.Empty(t, complaints)
}
