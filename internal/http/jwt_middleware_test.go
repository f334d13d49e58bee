package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/domain"
	"chat-relay/internal/service"
)

func newMiddlewareRouter(jwtSvc *service.JWTService) *gin.Engine {
	r := gin.New()
	r.GET("/protected", JWTAuthMiddleware(jwtSvc), func(c *gin.Context) {
		claims, ok := GetAuthClaims(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no claims"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID})
	})
	return r
}

func TestJWTAuthMiddlewareValidToken(t *testing.T) {
	jwtSvc := service.NewJWTService("test-secret", 15*time.Minute, time.Hour)
	pair, err := jwtSvc.GeneratePair(domain.User{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	router := newMiddlewareRouter(jwtSvc)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); body != `{"user_id":"u1"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestJWTAuthMiddlewareMissingHeader(t *testing.T) {
	jwtSvc := service.NewJWTService("test-secret", 15*time.Minute, time.Hour)
	router := newMiddlewareRouter(jwtSvc)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestJWTAuthMiddlewareBadToken(t *testing.T) {
	jwtSvc := service.NewJWTService("test-secret", 15*time.Minute, time.Hour)
	router := newMiddlewareRouter(jwtSvc)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestJWTAuthMiddlewareRejectsRefreshToken(t *testing.T) {
	jwtSvc := service.NewJWTService("test-secret", 15*time.Minute, time.Hour)
	pair, err := jwtSvc.GeneratePair(domain.User{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	router := newMiddlewareRouter(jwtSvc)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token on protected route, got %d", w.Code)
	}
}
