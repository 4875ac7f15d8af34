package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func protected(secret []byte) (*echo.Echo, *string) {
	var seen string
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		seen, _ = SubjectFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	}, EchoMiddleware(secret))
	return e, &seen
}

func do(e *echo.Echo, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestMiddlewareAcceptsSignedToken(t *testing.T) {
	secret := []byte("test-secret")
	e, seen := protected(secret)

	tok, err := SignJWT("agent-1", secret, time.Minute)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	if code := do(e, tok); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if *seen != "agent-1" {
		t.Fatalf("expected subject agent-1, got %q", *seen)
	}
}

func TestMiddlewareRejects(t *testing.T) {
	secret := []byte("test-secret")
	e, _ := protected(secret)

	expired, _ := SignJWT("a", secret, -time.Minute)
	foreign, _ := SignJWT("a", []byte("other"), time.Minute)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "a"}).SignedString(secret)
	wrongAlg, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "a", "exp": time.Now().Add(time.Minute).Unix()}).SignedString(secret)

	for name, tok := range map[string]string{
		"missing":   "",
		"garbage":   "not-a-token",
		"expired":   expired,
		"foreign":   foreign,
		"no exp":    noExp,
		"wrong alg": wrongAlg,
	} {
		if code := do(e, tok); code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, code)
		}
	}
}

func TestSignJWTNeedsSecret(t *testing.T) {
	if _, err := SignJWT("a", nil, time.Minute); err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}
