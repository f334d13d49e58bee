package service

import (
	"errors"
	"testing"
	"time"

	"chat-relay/internal/domain"
)

func testUser() domain.User {
	return domain.User{
		ID:          "user-123",
		Email:       "alice@example.com",
		DisplayName: "Alice",
	}
}

func TestJWTServiceGenerateAndParse(t *testing.T) {
	svc := NewJWTService("super-secret", 15*time.Minute, time.Hour)

	pair, err := svc.GeneratePair(testUser())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in: %d", pair.ExpiresIn)
	}

	claims, err := svc.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != "user-123" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Fatalf("expected access token type, got %q", claims.TokenType)
	}
}

func TestJWTServiceRejectsRefreshAsAccess(t *testing.T) {
	svc := NewJWTService("super-secret", 15*time.Minute, time.Hour)
	pair, err := svc.GeneratePair(testUser())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if _, err := svc.ParseAccessToken(pair.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTServiceRejectsForeignSecret(t *testing.T) {
	svc := NewJWTService("super-secret", 15*time.Minute, time.Hour)
	other := NewJWTService("otro-secreto", 15*time.Minute, time.Hour)

	pair, err := other.GeneratePair(testUser())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if _, err := svc.ParseAccessToken(pair.AccessToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid, got %v", err)
	}
}

func TestJWTServiceRefreshRotation(t *testing.T) {
	svc := NewJWTService("super-secret", 15*time.Minute, time.Hour)
	pair, err := svc.GeneratePair(testUser())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	rotated, err := svc.RefreshPair(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh pair: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatalf("expected a new refresh token")
	}
	claims, err := svc.ParseAccessToken(rotated.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated access token: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Fatalf("unexpected claims after rotation: %+v", claims)
	}

	// El refresh consumido queda revocado.
	if _, err := svc.RefreshPair(pair.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected reused refresh token rejected, got %v", err)
	}
}

func TestJWTServiceRevokeRefresh(t *testing.T) {
	svc := NewJWTService("super-secret", 15*time.Minute, time.Hour)
	pair, err := svc.GeneratePair(testUser())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if err := svc.RevokeRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("revoke refresh: %v", err)
	}
	if _, err := svc.RefreshPair(pair.RefreshToken); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected revoked refresh rejected, got %v", err)
	}
}

func TestJWTServiceExpiredToken(t *testing.T) {
	svc := NewJWTService("super-secret", -time.Minute, time.Hour)
	user := testUser()
	access, err := svc.signToken(user, time.Now().UTC().Add(-2*time.Minute), time.Minute, "access")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := svc.ParseAccessToken(access); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("expected ErrJWTExpired, got %v", err)
	}
}

func TestJWTServiceEmptySecret(t *testing.T) {
	svc := NewJWTService("", 15*time.Minute, time.Hour)
	if _, err := svc.GeneratePair(testUser()); !errors.Is(err, ErrJWTInvalid) {
		t.Fatalf("expected ErrJWTInvalid without secret, got %v", err)
	}
}
