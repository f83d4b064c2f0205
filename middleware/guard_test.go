package middleware_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/taskforge/authrbac"
	"github.com/taskforge/authrbac/middleware"
	"github.com/taskforge/authrbac/permission"
	"github.com/taskforge/authrbac/stores/memory"
)

func newTestEngine(t *testing.T) (*authrbac.Engine, string) {
	t.Helper()

	store := memory.New()
	store.AddRole("User", permission.MustParse("users:read"))

	cfg := authrbac.DevelopmentPreset()
	cfg.Token.Secret = bytes.Repeat([]byte{0x24}, 32)

	engine, err := authrbac.New().
		WithConfig(cfg).
		WithIdentityStore(store).
		WithTokenStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if _, err := engine.Register(ctx, authrbac.RegisterInput{
		Username: "alice",
		Password: "Str0ng!Pass1",
		Contacts: []authrbac.RegisterContact{
			{Type: "primary email", Value: "alice@example.com", Primary: true},
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := engine.Login(ctx, "alice@example.com", "Str0ng!Pass1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return engine, login.AccessToken
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := middleware.PrincipalFromContext(r.Context())
		if !ok {
			t.Error("handler reached without a principal")
		}
		if principal.Username != "alice" {
			t.Errorf("principal username %q", principal.Username)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateWithBearerHeader(t *testing.T) {
	engine, accessToken := newTestEngine(t)
	handler := middleware.Authenticate(engine)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAuthenticateWithCookie(t *testing.T) {
	engine, accessToken := newTestEngine(t)
	handler := middleware.Authenticate(engine)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: accessToken})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	engine, _ := newTestEngine(t)
	handler := middleware.Authenticate(engine)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestAuthenticateRejectsGarbageToken(t *testing.T) {
	engine, _ := newTestEngine(t)
	handler := middleware.Authenticate(engine)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestRequirePermissions(t *testing.T) {
	engine, accessToken := newTestEngine(t)

	serve := func(required []permission.Permission, logic authrbac.Logic) int {
		chain := middleware.Authenticate(engine)(
			middleware.RequirePermissions(required, logic)(
				http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusOK)
				})))
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		return rec.Code
	}

	held := []permission.Permission{permission.MustParse("users:read")}
	if code := serve(held, authrbac.LogicAnd); code != http.StatusOK {
		t.Fatalf("held permission rejected with %d", code)
	}

	missing := []permission.Permission{permission.MustParse("users:delete")}
	if code := serve(missing, authrbac.LogicAnd); code != http.StatusForbidden {
		t.Fatalf("missing permission passed with %d", code)
	}

	either := []permission.Permission{
		permission.MustParse("users:read"),
		permission.MustParse("users:delete"),
	}
	if code := serve(either, authrbac.LogicOr); code != http.StatusOK {
		t.Fatalf("OR over one held permission rejected with %d", code)
	}
}

func TestRequirePermissionsWithoutPrincipal(t *testing.T) {
	handler := middleware.RequirePermissions(nil, authrbac.LogicAnd)(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
}
