package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aryan0dhankhar/smartcrm/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "smartcrm")
	subject := uuid.NewString()
	orgID := uuid.NewString()

	token, err := tm.IssueToken(subject, Claims{Email: "a@example.com", Role: "employee", OrganizationID: orgID}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := tm.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Subject != subject || claims.Email != "a@example.com" || claims.Role != "employee" || claims.OrganizationID != orgID {
		t.Fatalf("claims did not round trip: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected token id")
	}
	id, err := claims.UserID()
	if err != nil || id.String() != subject {
		t.Fatalf("unexpected user id %v (%v)", id, err)
	}
}

func TestTokenExpired(t *testing.T) {
	issuedAt := time.Now().Add(-2 * time.Hour)
	tm := NewTokenManager("secret", "smartcrm")
	tm.now = fixedClock(issuedAt)

	token, err := tm.IssueToken(uuid.NewString(), Claims{}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// still valid inside the ttl
	tm.now = fixedClock(issuedAt.Add(59 * time.Minute))
	if _, err := tm.VerifyToken(token); err != nil {
		t.Fatalf("expected token to be valid before expiry: %v", err)
	}

	tm.now = fixedClock(issuedAt.Add(61 * time.Minute))
	if _, err := tm.VerifyToken(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestTokenTampered(t *testing.T) {
	tm := NewTokenManager("secret", "smartcrm")
	token, err := tm.IssueToken(uuid.NewString(), Claims{Role: "customer"}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	forged, err := tm.IssueToken(uuid.NewString(), Claims{Role: "system_admin"}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	parts := strings.Split(token, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	cases := map[string]string{
		"spliced payload": spliced,
		"bad signature":   parts[0] + "." + parts[1] + ".AAAA",
		"garbage":         "not-a-token",
		"empty":           "",
	}
	for name, tok := range cases {
		if _, err := tm.VerifyToken(tok); !errors.Is(err, domain.ErrInvalidToken) {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestTokenWrongSecretOrIssuer(t *testing.T) {
	token, err := NewTokenManager("secret", "smartcrm").IssueToken(uuid.NewString(), Claims{}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := NewTokenManager("other", "smartcrm").VerifyToken(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := NewTokenManager("secret", "elsewhere").VerifyToken(token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestTokenRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "smartcrm",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := NewTokenManager("secret", "smartcrm").VerifyToken(unsigned); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}

func TestIssueTokenValidation(t *testing.T) {
	tm := NewTokenManager("secret", "")
	if _, err := tm.IssueToken("", Claims{}, time.Hour); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty subject, got %v", err)
	}
	if _, err := tm.IssueToken("x", Claims{}, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero ttl, got %v", err)
	}
}

func TestExtractToken(t *testing.T) {
	tok, err := ExtractToken("Bearer abc.def.ghi")
	if err != nil || tok != "abc.def.ghi" {
		t.Fatalf("unexpected result %q, %v", tok, err)
	}
	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer "} {
		if _, err := ExtractToken(header); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("header %q: expected ErrUnauthenticated, got %v", header, err)
		}
	}
}
