package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wagerproof/wagerproof/internal/api/middleware"
	"github.com/wagerproof/wagerproof/internal/store"
	"github.com/wagerproof/wagerproof/pkg/models"
)

func newAuthFixture(t *testing.T) (*middleware.Auth, store.Store) {
	t.Helper()
	t.Setenv("WAGERPROOF_DATA_DIR", "")
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })

	s.CreateAccount(context.Background(), &models.Account{
		ID:           "acct-1",
		Email:        "user@example.com",
		SessionToken: "tok-1",
		HasProAccess: true,
	})
	return middleware.NewAuth(s), s
}

func TestAuth_ValidToken(t *testing.T) {
	auth, _ := newAuthFixture(t)

	var got models.Identity
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.GetIdentity(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		got = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.AccountID != "acct-1" {
		t.Errorf("AccountID = %q, want %q", got.AccountID, "acct-1")
	}
	if !got.HasProAccess {
		t.Error("HasProAccess = false, want true")
	}
	if got.IsAdmin {
		t.Error("IsAdmin = true, want false")
	}
}

func TestAuth_MissingToken(t *testing.T) {
	auth, _ := newAuthFixture(t)

	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("WWW-Authenticate header missing")
	}
}

func TestAuth_UnknownToken(t *testing.T) {
	auth, _ := newAuthFixture(t)

	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
