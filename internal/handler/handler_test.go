package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
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
	"github.com/aryan0dhankhar/smartcrm/internal/security/audit"
	"github.com/aryan0dhankhar/smartcrm/internal/security/auth"
	"github.com/aryan0dhankhar/smartcrm/internal/service"
	"github.com/aryan0dhankhar/smartcrm/pkg/cache"
)

const testPassword = "Password123"

type capturedPasswords struct {
	mu   sync.Mutex
	sent map[string]string
}

func (c *capturedPasswords) SendTemporaryPassword(_ context.Context, u *domain.User, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[u.Email] = password
	return nil
}

func (c *capturedPasswords) get(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent[email]
}

type testServer struct {
	handler    http.Handler
	store      *memory.Store
	passwords  *capturedPasswords
	orgX, orgY *domain.Organization
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		store:     memory.New(),
		passwords: &capturedPasswords{sent: map[string]string{}},
	}

	auditLog := audit.NewLogger(logger)
	authz := security.NewAuthorizer(logger, auditLog)
	orgs := service.NewOrganizationService(ts.store.Organizations(), authz, cache.New[domain.Organization](), time.Minute, logger)
	authSvc := service.NewAuthService(ts.store.Users(), ts.store.Organizations(),
		auth.NewTokenManager("handler-test-secret", "smartcrm"),
		auth.NewMemoryRevocationList(cache.New[bool]()), ts.passwords, authz,
		service.AuthConfig{TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, logger)

	ts.handler = NewRouter(RouterConfig{
		Auth:          NewAuthHandler(authSvc, logger),
		Users:         NewUserHandler(service.NewUserService(ts.store.Users(), authz, logger), logger),
		Organizations: NewOrganizationHandler(orgs, logger),
		Leads:         NewLeadHandler(service.NewLeadService(ts.store.Leads(), ts.store.Users(), orgs, ai.HeuristicScorer{}, authz, logger), logger),
		Complaints:    NewComplaintHandler(service.NewComplaintService(ts.store.Complaints(), ts.store.Users(), ai.KeywordClassifier{}, authz, false, logger), logger),
		Health:        NewHealthHandler(map[string]Pinger{"database": ts.store}, logger),
		Authenticator: authSvc,
		AuditLog:      auditLog,
		Logger:        logger,
	})

	ctx := context.Background()
	ts.orgX = &domain.Organization{Name: "Acme", Tier: domain.TierFree, Active: true}
	ts.orgY = &domain.Organization{Name: "Globex", Tier: domain.TierBasic, Active: true}
	require.NoError(t, ts.store.Organizations().Create(ctx, ts.orgX))
	require.NoError(t, ts.store.Organizations().Create(ctx, ts.orgY))

	ts.seed(t, "root@example.com", domain.RoleSystemAdmin, nil)
	ts.seed(t, "admin@acme.test", domain.RoleOrgAdmin, &ts.orgX.ID)
	ts.seed(t, "emp@acme.test", domain.RoleEmployee, &ts.orgX.ID)
	ts.seed(t, "cust@acme.test", domain.RoleCustomer, &ts.orgX.ID)
	ts.seed(t, "admin@globex.test", domain.RoleOrgAdmin, &ts.orgY.ID)
	return ts
}

func (ts *testServer) seed(t *testing.T, email string, role domain.Role, orgID *uuid.UUID) {
	t.Helper()
	digest, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, ts.store.Users().Create(context.Background(), &domain.User{
		Email:          email,
		PasswordHash:   digest,
		FirstName:      "Test",
		Role:           role,
		OrganizationID: orgID,
		Active:         true,
	}, nil))
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		r = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email, password string) service.LoginResult {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res service.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func (ts *testServer) token(t *testing.T, email string) string {
	t.Helper()
	return ts.login(t, email, testPassword).AccessToken
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)

	res := ts.login(t, "admin@acme.test", testPassword)
	require.Equal(t, "bearer", res.TokenType)
	require.Equal(t, 3600, res.ExpiresIn)
	require.Equal(t, domain.RoleOrgAdmin, res.User.Role)

	rec := ts.do(t, http.MethodGet, "/api/v1/auth/me", res.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[domain.User](t, rec)
	require.Equal(t, "admin@acme.test", me.Email)
	require.NotContains(t, rec.Body.String(), "password_hash")
}

func TestLoginFailures(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@acme.test", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	wrongPassword := decode[ErrorResponse](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "nobody@acme.test", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, wrongPassword, decode[ErrorResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/leads", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/leads", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLeadCreateIgnoresBodyOrganization(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "emp@acme.test")

	rec := ts.do(t, http.MethodPost, "/api/v1/leads", token, map[string]any{
		"name":            "Ada Lovelace",
		"email":           "ada@example.com",
		"organization_id": ts.orgY.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lead := decode[domain.Lead](t, rec)
	require.Equal(t, ts.orgX.ID, lead.OrganizationID)
	require.Equal(t, domain.LeadNew, lead.Status)
}

func TestLeadTenantIsolation(t *testing.T) {
	ts := newTestServer(t)
	tokenX := ts.token(t, "admin@acme.test")
	tokenY := ts.token(t, "admin@globex.test")

	rec := ts.do(t, http.MethodPost, "/api/v1/leads", tokenX, map[string]any{"name": "Acme prospect"})
	require.Equal(t, http.StatusCreated, rec.Code)
	lead := decode[domain.Lead](t, rec)

	require.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/leads/"+lead.ID.String(), tokenY, nil).Code)
	require.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/v1/leads/"+lead.ID.String(), tokenY, map[string]any{"name": "stolen"}).Code)
	require.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/v1/leads/"+lead.ID.String(), tokenY, nil).Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/leads", tokenY, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]domain.Lead](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/v1/leads", tokenX, nil)
	require.Len(t, decode[[]domain.Lead](t, rec), 1)
}

func TestLeadLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "admin@acme.test")

	rec := ts.do(t, http.MethodPost, "/api/v1/leads", token, map[string]any{"name": "Grace"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[domain.Lead](t, rec).ID.String()

	rec = ts.do(t, http.MethodPut, "/api/v1/leads/"+id, token, map[string]any{"status": "converted"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/leads/"+id, token, map[string]any{"status": "contacted"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.LeadContacted, decode[domain.Lead](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/v1/leads?status=contacted", token, nil)
	require.Len(t, decode[[]domain.Lead](t, rec), 1)
	rec = ts.do(t, http.MethodGet, "/api/v1/leads?status=bogus", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// free tier has no ai_scoring
	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/v1/leads/"+id+"/score", token, nil).Code)

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/leads/"+id, token, nil).Code)
	require.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/v1/leads/"+id, token, nil).Code)
	require.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/v1/leads/not-a-uuid", token, nil).Code)
}

func TestCustomerCannotManageLeads(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "cust@acme.test")

	rec := ts.do(t, http.MethodPost, "/api/v1/leads", token, map[string]any{"name": "x"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/v1/leads", token, nil).Code)
}

func TestComplaintClassification(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "emp@acme.test")

	rec := ts.do(t, http.MethodPost, "/api/v1/complaints", token, map[string]any{
		"title":       "App crashes",
		"description": "technical fault when exporting",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[domain.Complaint](t, rec)
	require.Equal(t, domain.PriorityMedium, c.Priority)

	rec = ts.do(t, http.MethodPost, "/api/v1/complaints/"+c.ID.String()+"/classify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c = decode[domain.Complaint](t, rec)
	require.Equal(t, ai.TechnicalIssue, c.Classification)
	require.Equal(t, domain.PriorityHigh, c.Priority)

	rec = ts.do(t, http.MethodPut, "/api/v1/complaints/"+c.ID.String(), token, map[string]any{"status": "closed"})
	require.Equal(t, http.StatusConflict, rec.Code)

	// employees may not delete
	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/api/v1/complaints/"+c.ID.String(), token, nil).Code)
	admin := ts.token(t, "admin@acme.test")
	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/complaints/"+c.ID.String(), admin, nil).Code)
}

func TestRegisterTemporaryPasswordFlow(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, "admin@acme.test")

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", admin, map[string]any{
		"name":     "New Hire",
		"email":    "hire@acme.test",
		"password": "ignored-by-server",
		"role":     "employee",
		"org_id":   ts.orgY.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decode[RegisterResponse](t, rec)

	temporary := ts.passwords.get("hire@acme.test")
	require.NotEmpty(t, temporary)

	res := ts.login(t, "hire@acme.test", temporary)
	require.True(t, res.User.MustChangePassword)
	require.Equal(t, reg.UserID, res.User.ID.String())
	// org admins always register into their own organization
	require.Equal(t, ts.orgX.ID, *res.User.OrganizationID)

	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/v1/leads", res.AccessToken, nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/auth/me", res.AccessToken, nil).Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/change-password", res.AccessToken, map[string]string{
		"current_password": temporary,
		"new_password":     "BrandNew123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/leads", res.AccessToken, nil).Code)
}

func TestRegisterRoleCeiling(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, "admin@acme.test")

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", admin, map[string]any{
		"name": "Peer", "email": "peer@acme.test", "role": "org_admin",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/register", admin, map[string]any{
		"name": "Bad", "email": "bad@acme.test", "role": "overlord",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	employee := ts.token(t, "emp@acme.test")
	rec = ts.do(t, http.MethodPost, "/api/v1/auth/register", employee, map[string]any{
		"name": "Friend", "email": "friend@acme.test", "role": "customer",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, "emp@acme.test")

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil).Code)
	require.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/v1/auth/me", token, nil).Code)
}

func TestUserEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, "admin@acme.test")

	rec := ts.do(t, http.MethodGet, "/api/v1/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]domain.User](t, rec)
	require.Len(t, users, 3)

	var employeeID string
	for _, u := range users {
		if u.Email == "emp@acme.test" {
			employeeID = u.ID.String()
		}
	}
	require.NotEmpty(t, employeeID)

	rec = ts.do(t, http.MethodPut, "/api/v1/users/"+employeeID, admin, map[string]any{"role": "org_admin"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/users/"+employeeID, admin, nil).Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "emp@acme.test", "password": testPassword})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodDelete, "/api/v1/users/"+employeeID+"?hard=true", admin, nil).Code)
	root := ts.token(t, "root@example.com")
	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/v1/users/"+employeeID+"?hard=true", root, nil).Code)
}

func TestOrganizationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, "admin@acme.test")
	root := ts.token(t, "root@example.com")

	rec := ts.do(t, http.MethodGet, "/api/v1/organizations", admin, nil)
	require.Len(t, decode[[]domain.Organization](t, rec), 1)
	rec = ts.do(t, http.MethodGet, "/api/v1/organizations", root, nil)
	require.Len(t, decode[[]domain.Organization](t, rec), 2)

	require.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/v1/organizations", admin, map[string]any{"name": "Rogue"}).Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/organizations", root, map[string]any{"name": "Initech"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, domain.TierFree, decode[domain.Organization](t, rec).Tier)

	path := "/api/v1/organizations/" + ts.orgX.ID.String() + "/subscription"
	rec = ts.do(t, http.MethodPut, path, admin, map[string]string{"subscription_tier": "basic"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, domain.TierBasic, decode[domain.Organization](t, rec).Tier)

	rec = ts.do(t, http.MethodPut, path, admin, map[string]string{"subscription_tier": "free"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// basic tier unlocks rescoring
	rec = ts.do(t, http.MethodPost, "/api/v1/leads", admin, map[string]any{"name": "Ada Lovelace"})
	id := decode[domain.Lead](t, rec).ID.String()
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/leads/"+id+"/score", admin, nil).Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	require.Equal(t, "ok", ready.Checks["database"])

	h := NewHealthHandler(map[string]Pinger{"redis": failingPinger{}, "cache": nil}, nil)
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ready = decode[ReadinessResponse](t, rec)
	require.Equal(t, "not configured", ready.Checks["cache"])
	require.Contains(t, ready.Checks["redis"], "connection refused")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrInvalidToken, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrInsufficientPrivilege, http.StatusForbidden},
		{domain.ErrNoOrganizationAssigned, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrInvalidStateTransition, http.StatusConflict},
		{domain.ErrValidation, http.StatusBadRequest},
		{domain.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{domain.ErrPasswordChangeRequired, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestAssigneeClearedAndCreatorProtected(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.token(t, "admin@acme.test")
	emp := ts.token(t, "emp@acme.test")
	root := ts.token(t, "root@example.com")

	me := decode[domain.User](t, ts.do(t, http.MethodGet, "/api/v1/auth/me", emp, nil))
	employeeID := me.ID.String()

	rec := ts.do(t, http.MethodPost, "/api/v1/leads", admin, map[string]any{"name": "Ada", "assigned_to": employeeID})
	require.Equal(t, http.StatusCreated, rec.Code)
	lead := decode[domain.Lead](t, rec)
	require.NotNil(t, lead.AssignedTo)

	rec = ts.do(t, http.MethodPut, "/api/v1/leads/"+lead.ID.String(), admin, map[string]any{"assigned_to": ""})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, decode[domain.Lead](t, rec).AssignedTo)

	// the employee authored a complaint, so a hard delete would orphan it
	rec = ts.do(t, http.MethodPost, "/api/v1/complaints", emp, map[string]any{"title": "Printer jam"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/v1/users/"+employeeID+"?hard=true", root, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/v1/users/"+employeeID, root, nil).Code)
}
