package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aryan0dhankhar/smartcrm/internal/ai"
	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/repository/memory"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/internal/security/auth"
	"github.com/aryan0dhankhar/smartcrm/pkg/cache"
)

const testPassword = "Password123"

type sentPassword struct {
	email    string
	password string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentPassword
	err  error
}

func (n *fakeNotifier) SendTemporaryPassword(_ context.Context, u *domain.User, password string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentPassword{email: u.Email, password: password})
	return nil
}

// world is two tenants with one user per role each, plus a system admin.
type world struct {
	store      *memory.Store
	notifier   *fakeNotifier
	tokens     *auth.TokenManager
	auth       *AuthService
	users      *UserService
	orgs       *OrganizationService
	leads      *LeadService
	complaints *ComplaintService

	orgX, orgY *domain.Organization

	sysAdmin   domain.Principal
	adminX     domain.Principal
	employeeX  domain.Principal
	employeeX2 domain.Principal
	customerX  domain.Principal
	adminY     domain.Principal
	employeeY  domain.Principal
	customerY  domain.Principal
}

func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	w := &world{
		store:    memory.New(),
		notifier: &fakeNotifier{},
		tokens:   auth.NewTokenManager("test-secret", "smartcrm"),
	}
	authz := security.NewAuthorizer(nil, nil)
	w.orgs = NewOrganizationService(w.store.Organizations(), authz, cache.New[domain.Organization](), time.Minute, nil)
	w.auth = NewAuthService(w.store.Users(), w.store.Organizations(), w.tokens,
		auth.NewMemoryRevocationList(cache.New[bool]()), w.notifier, authz,
		AuthConfig{TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, nil)
	w.users = NewUserService(w.store.Users(), authz, nil)
	w.leads = NewLeadService(w.store.Leads(), w.store.Users(), w.orgs, ai.HeuristicScorer{}, authz, nil)
	w.complaints = NewComplaintService(w.store.Complaints(), w.store.Users(), ai.KeywordClassifier{}, authz, false, nil)

	w.orgX = &domain.Organization{Name: "Acme", Tier: domain.TierFree, Active: true}
	w.orgY = &domain.Organization{Name: "Globex", Tier: domain.TierPremium, Active: true}
	require.NoError(t, w.store.Organizations().Create(ctx, w.orgX))
	require.NoError(t, w.store.Organizations().Create(ctx, w.orgY))

	w.sysAdmin = w.seedUser(t, "root@example.com", domain.RoleSystemAdmin, nil)
	w.adminX = w.seedUser(t, "admin@acme.test", domain.RoleOrgAdmin, &w.orgX.ID)
	w.employeeX = w.seedUser(t, "emp@acme.test", domain.RoleEmployee, &w.orgX.ID)
	w.employeeX2 = w.seedUser(t, "emp2@acme.test", domain.RoleEmployee, &w.orgX.ID)
	w.customerX = w.seedUser(t, "cust@acme.test", domain.RoleCustomer, &w.orgX.ID)
	w.adminY = w.seedUser(t, "admin@globex.test", domain.RoleOrgAdmin, &w.orgY.ID)
	w.employeeY = w.seedUser(t, "emp@globex.test", domain.RoleEmployee, &w.orgY.ID)
	w.customerY = w.seedUser(t, "cust@globex.test", domain.RoleCustomer, &w.orgY.ID)
	return w
}

func (w *world) seedUser(t *testing.T, email string, role domain.Role, orgID *uuid.UUID) domain.Principal {
	t.Helper()
	digest, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	u := &domain.User{
		Email:          email,
		PasswordHash:   digest,
		FirstName:      "Test",
		Role:           role,
		OrganizationID: orgID,
		Active:         true,
	}
	require.NoError(t, w.store.Users().Create(context.Background(), u, nil))
	return u.Principal()
}

func (w *world) lead(t *testing.T, p domain.Principal, name string) *domain.Lead {
	t.Helper()
	l, err := w.leads.Create(context.Background(), p, LeadInput{Name: name})
	require.NoError(t, err)
	return l
}

func (w *world) complaint(t *testing.T, p domain.Principal, in ComplaintInput) *domain.Complaint {
	t.Helper()
	if in.Title == "" {
		in.Title = "Broken"
	}
	c, err := w.complaints.Create(context.Background(), p, in)
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T { return &v }

func requireKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
