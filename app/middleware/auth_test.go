package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-identity/app/entity"
	"github.com/vibast-solutions/ms-go-identity/app/middleware"
	"github.com/vibast-solutions/ms-go-identity/app/repository"
	"github.com/vibast-solutions/ms-go-identity/app/service"
	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	middleware *middleware.AuthMiddleware
	repo       *repository.MemoryUserRepository
	tokens     *service.TokenIssuer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:    "access-secret",
			RefreshSecret:   "refresh-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
		},
	}

	repo := repository.NewMemoryUserRepository()
	tokens := service.NewTokenIssuer(cfg.JWT)
	sessions := service.NewSessionService(repo, service.NewBcryptHasher(bcrypt.MinCost), tokens, nil, cfg)

	return &authFixture{
		middleware: middleware.NewAuthMiddleware(sessions),
		repo:       repo,
		tokens:     tokens,
	}
}

func (f *authFixture) seed(t *testing.T, id, role string) (*entity.User, string) {
	t.Helper()

	user := &entity.User{ID: id, Username: id, Email: id + "@example.com", Role: role, CreatedAt: time.Now()}
	if err := f.repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	token, err := f.tokens.IssueAccess(user)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	return user, token
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body %q: %v", rec.Body.String(), err)
	}
	if body.Success {
		t.Fatalf("expected success=false in %s", rec.Body.String())
	}
	return body.Message
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	f := newAuthFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := f.middleware.RequireAuth(okHandler)(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "unauthorized request" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	f := newAuthFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := f.middleware.RequireAuth(okHandler)(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if msg := decodeMessage(t, rec); msg != "invalid access token" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestRequireAuth_DeletedUser(t *testing.T) {
	f := newAuthFixture(t)
	user, token := f.seed(t, "alice", entity.RoleUser)
	if _, err := f.repo.Delete(context.Background(), user.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := f.middleware.RequireAuth(okHandler)(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_CookieTakesPrecedence(t *testing.T) {
	f := newAuthFixture(t)
	_, token := f.seed(t, "alice", entity.RoleUser)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenName, Value: token})
	req.Header.Set("Authorization", "Bearer invalid-token")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	handler := f.middleware.RequireAuth(func(c echo.Context) error {
		user := middleware.CurrentUser(c)
		if user == nil || user.ID != "alice" {
			t.Fatalf("expected alice in context, got %+v", user)
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRequireAuth_SetsContextOnBearerToken(t *testing.T) {
	f := newAuthFixture(t)
	_, token := f.seed(t, "alice", entity.RoleUser)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	handler := f.middleware.RequireAuth(func(c echo.Context) error {
		user, ok := c.Get(middleware.ContextKeyUser).(*entity.User)
		if !ok || user.Email != "alice@example.com" {
			t.Fatalf("expected alice in context, got %v", c.Get(middleware.ContextKeyUser))
		}
		if user.PasswordHash != "" {
			t.Fatalf("unexpected credential material on context user")
		}
		return c.NoContent(http.StatusOK)
	})

	if err := handler(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	f := newAuthFixture(t)
	_, userToken := f.seed(t, "alice", entity.RoleUser)
	_, adminToken := f.seed(t, "root", entity.RoleAdmin)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"regular user", userToken, http.StatusForbidden},
		{"admin", adminToken, http.StatusOK},
	}

	for _, tc := range cases {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)

		if err := f.middleware.RequireAuth(f.middleware.RequireAdmin(okHandler))(ctx); err != nil {
			t.Fatalf("%s: handler error: %v", tc.name, err)
		}
		if rec.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, rec.Code)
		}
		if tc.status == http.StatusForbidden {
			if msg := decodeMessage(t, rec); msg != "access denied: admins only" {
				t.Fatalf("unexpected message %q", msg)
			}
		}
	}
}

func TestRequireAdmin_WithoutAuthentication(t *testing.T) {
	f := newAuthFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := f.middleware.RequireAdmin(okHandler)(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}
