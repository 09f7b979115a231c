package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anishmaharjan/kinmel-backend/internal/auth"
	appctx "github.com/anishmaharjan/kinmel-backend/internal/context"
)

func newTokens() *auth.TokenService {
	return auth.NewTokenService(auth.TokenServiceConfig{
		Secret:      "middleware-test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "kinmel-backend",
	})
}

func identityEcho(t *testing.T, wantID, wantUsername string, wantAdmin bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := appctx.ExtractAccountID(r.Context())
		if !ok || id != wantID {
			t.Errorf("account ID = %q (ok=%v), want %q", id, ok, wantID)
		}
		username, _ := appctx.ExtractUsername(r.Context())
		if username != wantUsername {
			t.Errorf("username = %q, want %q", username, wantUsername)
		}
		if appctx.ExtractIsAdmin(r.Context()) != wantAdmin {
			t.Errorf("isAdmin = %v, want %v", !wantAdmin, wantAdmin)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorBearerHeader(t *testing.T) {
	tokens := newTokens()
	token, err := tokens.Generate("acc-1", "alice", false)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	handler := Authenticator(tokens, nil)(identityEcho(t, "acc-1", "alice", false))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuthenticatorCookie(t *testing.T) {
	tokens := newTokens()
	token, err := tokens.Generate("acc-2", "bob", true)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	handler := Authenticator(tokens, nil)(identityEcho(t, "acc-2", "bob", true))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAuthenticatorMissingToken(t *testing.T) {
	handler := Authenticator(newTokens(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuthenticatorInvalidToken(t *testing.T) {
	handler := Authenticator(newTokens(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler should not run with a bad token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	tokens := newTokens()
	buyerToken, _ := tokens.Generate("acc-1", "alice", false)
	sellerToken, _ := tokens.Generate("acc-2", "bob", true)

	handler := Authenticator(tokens, nil)(RequireAdmin(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+buyerToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("buyer status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sellerToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("seller status = %d, want 200", rec.Code)
	}
}
