package http

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wyfcoding/p2pescrow/internal/identity/domain"
)

func signToken(t *testing.T, secret, userID, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestJWTProviderParse(t *testing.T) {
	provider := NewJWTProvider("test-secret")

	id, err := provider.Parse(signToken(t, "test-secret", "user-1", "USER", time.Hour))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id.ID != "user-1" || id.Role != domain.RoleUser {
		t.Fatalf("identity = %+v", id)
	}
	if id.IsAdmin() {
		t.Fatal("plain user must not be admin")
	}
}

func TestJWTProviderParseAdmin(t *testing.T) {
	provider := NewJWTProvider("test-secret")

	id, err := provider.Parse(signToken(t, "test-secret", "admin-1", "ADMIN", time.Hour))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !id.IsAdmin() {
		t.Fatal("admin role not recognized")
	}
}

func TestJWTProviderRejects(t *testing.T) {
	provider := NewJWTProvider("test-secret")

	cases := map[string]string{
		"wrong secret":  signToken(t, "other-secret", "user-1", "USER", time.Hour),
		"expired":       signToken(t, "test-secret", "user-1", "user", -time.Hour),
		"empty user id": signToken(t, "test-secret", "", "USER", time.Hour),
		"garbage":       "not.a.token",
	}
	for name, token := range cases {
		if _, err := provider.Parse(token); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}

	// 未知角色降级为普通用户
	id, err := provider.Parse(signToken(t, "test-secret", "user-1", "superuser", time.Hour))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id.Role != domain.RoleUser {
		t.Fatalf("unknown role should downgrade to user, got %s", id.Role)
	}
}
