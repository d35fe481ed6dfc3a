package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
	"github.com/aryan0dhankhar/smartcrm/internal/observability/metrics"
	"github.com/aryan0dhankhar/smartcrm/internal/security"
	"github.com/aryan0dhankhar/smartcrm/internal/security/auth"
)

// PasswordNotifier delivers a newly issued temporary password.
type PasswordNotifier interface {
	SendTemporaryPassword(ctx context.Context, user *domain.User, password string) error
}

// AuthConfig holds credential settings
type AuthConfig struct {
	TokenTTL           time.Duration
	BcryptCost         int
	TempPasswordLength int
}

// AuthService handles authentication and account provisioning
type AuthService struct {
	users       domain.UserRepository
	orgs        domain.OrganizationRepository
	tokens      *auth.TokenManager
	revocations auth.RevocationList
	notifier    PasswordNotifier
	authz       Authorizer
	cfg         AuthConfig
	logger      *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users domain.UserRepository,
	orgs domain.OrganizationRepository,
	tokens *auth.TokenManager,
	revocations auth.RevocationList,
	notifier PasswordNotifier,
	authz Authorizer,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * time.Minute
	}
	if cfg.TempPasswordLength < auth.MinPasswordLength {
		cfg.TempPasswordLength = 12
	}
	return &AuthService{
		users:       users,
		orgs:        orgs,
		tokens:      tokens,
		revocations: revocations,
		notifier:    notifier,
		authz:       authz,
		cfg:         cfg,
		logger:      logger,
	}
}

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)

// UserSummary is the account view returned with a token
type UserSummary struct {
	ID                 uuid.UUID   `json:"id"`
	Email              string      `json:"email"`
	Role               domain.Role `json:"role"`
	OrganizationID     *uuid.UUID  `json:"organization_id"`
	MustChangePassword bool        `json:"must_change_password"`
}

// LoginResult represents login response
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"` // seconds
	User        UserSummary `json:"user"`
}

// Login checks credentials and issues an access token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		metrics.ObserveLogin("invalid")
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			metrics.ObserveLogin("failure")
			s.logger.Info("login attempt with unknown email", slog.String("email", domain.NormalizeEmail(email)))
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		metrics.ObserveLogin("failure")
		s.logger.Info("login failed with wrong password", slog.String("user_id", user.ID.String()))
		return nil, errInvalidCredentials
	}
	if !user.Active {
		metrics.ObserveLogin("inactive")
		return nil, fmt.Errorf("%w: account is deactivated", domain.ErrUnauthenticated)
	}

	token, err := s.tokens.IssueToken(user.ID.String(), auth.ClaimsFor(user), s.cfg.TokenTTL)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("error", err.Error()))
		return nil, err
	}

	metrics.ObserveLogin("success")
	s.logger.Info("user logged in",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role.String()),
	)

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.cfg.TokenTTL.Seconds()),
		User: UserSummary{
			ID:                 user.ID,
			Email:              user.Email,
			Role:               user.Role,
			OrganizationID:     user.OrganizationID,
			MustChangePassword: user.MustChangePassword,
		},
	}, nil
}

// Authenticate verifies a bearer token and loads the principal behind it.
// Revoked tokens and deactivated or deleted users are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, *auth.Claims, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return domain.Principal{}, nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("failed to check token revocation", slog.String("error", err.Error()))
		return domain.Principal{}, nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	if revoked {
		return domain.Principal{}, nil, domain.ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return domain.Principal{}, nil, err
	}

	// the row, not the token, is authoritative for role and organization
	user, err := s.users.GetByID(ctx, domain.SystemWideScope(), userID)
	if err != nil {
		if isNotFound(err) {
			return domain.Principal{}, nil, domain.ErrInvalidToken
		}
		return domain.Principal{}, nil, err
	}
	if !user.Active {
		return domain.Principal{}, nil, fmt.Errorf("%w: account is deactivated", domain.ErrUnauthenticated)
	}
	return user.Principal(), claims, nil
}

// Me returns the caller's own profile.
func (s *AuthService) Me(ctx context.Context, p domain.Principal) (*domain.User, error) {
	return s.users.GetByID(ctx, domain.SystemWideScope(), p.UserID)
}

// RegisterRequest describes a user an admin is provisioning
type RegisterRequest struct {
	FirstName      string
	LastName       string
	Name           string // split into first and last when those are empty
	Email          string
	Password       string // ignored; a temporary password is always issued
	Role           domain.Role
	OrganizationID *uuid.UUID // honoured for system admins only
}

// Register provisions a user with a single-use temporary password that is
// emailed to them. The insert is rolled back if the email cannot be sent.
func (s *AuthService) Register(ctx context.Context, actor domain.Principal, req RegisterRequest) (*domain.User, error) {
	email, err := validateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, fmt.Errorf("%w: role is required", domain.ErrValidation)
	}
	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if first == "" && last == "" {
		first, last, _ = strings.Cut(strings.TrimSpace(req.Name), " ")
		last = strings.TrimSpace(last)
	}
	if first == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	orgID, err := s.registrationOrganization(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	res := security.Resource{Kind: security.ResourceUser, OrganizationID: orgID, TargetRole: req.Role}
	if err := s.authz.Authorize(ctx, actor, security.ActionCreate, res); err != nil {
		return nil, err
	}

	temporary, err := auth.GenerateTemporaryPassword(s.cfg.TempPasswordLength)
	if err != nil {
		return nil, err
	}
	digest, err := auth.HashPassword(temporary, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:              email,
		PasswordHash:       digest,
		FirstName:          first,
		LastName:           last,
		Role:               req.Role,
		OrganizationID:     orgID,
		Active:             true,
		MustChangePassword: true,
	}
	err = s.users.Create(ctx, user, func(ctx context.Context, u *domain.User) error {
		return s.notifier.SendTemporaryPassword(ctx, u, temporary)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			s.logger.Error("failed to register user", slog.String("error", err.Error()))
		}
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID.String()),
		slog.String("role", user.Role.String()),
		slog.String("created_by", actor.UserID.String()),
	)
	return user, nil
}

// registrationOrganization pins tenant-scoped actors to their own
// organization. System admins choose one, or none for a customer.
func (s *AuthService) registrationOrganization(ctx context.Context, actor domain.Principal, req RegisterRequest) (*uuid.UUID, error) {
	orgID := actor.OrganizationID
	if actor.Role == domain.RoleSystemAdmin {
		orgID = req.OrganizationID
	}
	if orgID == nil || *orgID == uuid.Nil {
		if actor.Role != domain.RoleSystemAdmin {
			return nil, domain.ErrNoOrganizationAssigned
		}
		// only customers and system admins exist outside an organization
		if req.Role == domain.RoleCustomer || req.Role == domain.RoleSystemAdmin {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: org_id is required for role %s", domain.ErrValidation, req.Role)
	}

	org, err := s.orgs.GetByID(ctx, *orgID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: organization %s does not exist", domain.ErrValidation, orgID)
		}
		return nil, err
	}
	if !org.Active {
		return nil, fmt.Errorf("%w: organization %s is inactive", domain.ErrValidation, orgID)
	}
	id := org.ID
	return &id, nil
}

// ChangePassword replaces the caller's password and clears the
// must-change-password flag.
func (s *AuthService) ChangePassword(ctx context.Context, p domain.Principal, current, next string) error {
	if err := auth.ValidatePassword(next); err != nil {
		return err
	}
	if current == next {
		return fmt.Errorf("%w: new password must differ from the current one", domain.ErrValidation)
	}
	digest, err := auth.HashPassword(next, s.cfg.BcryptCost)
	if err != nil {
		return err
	}

	_, err = s.users.Update(ctx, domain.SystemWideScope(), p.UserID, func(u *domain.User) error {
		if !auth.VerifyPassword(current, u.PasswordHash) {
			return fmt.Errorf("%w: current password is incorrect", domain.ErrValidation)
		}
		u.PasswordHash = digest
		u.MustChangePassword = false
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("user changed password", slog.String("user_id", p.UserID.String()))
	return nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return domain.ErrInvalidToken
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("failed to revoke token", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	return nil
}
