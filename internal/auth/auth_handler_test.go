package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newHandlerFixture(t *testing.T) (*serviceFixture, http.Handler) {
	t.Helper()

	f := newServiceFixture(t)
	handler := NewAuthHandler(f.service, time.Hour, nil)

	r := chi.NewRouter()
	passthrough := func(next http.Handler) http.Handler { return next }
	RegisterRoutes(r, handler, passthrough, passthrough)
	return f, r
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRegisterEndpoint(t *testing.T) {
	_, router := newHandlerFixture(t)

	rec := postJSON(t, router, "/users/register", RegisterRequest{
		Fullname: "Alice Shrestha",
		Phone:    "9800000001",
		Usertype: "Buyer",
		Username: "alice",
		Password: "Secret123!",
		Email:    "alice@example.com",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Errorf("success = false: %s", resp.Message)
	}
}

func TestRegisterEndpointValidation(t *testing.T) {
	_, router := newHandlerFixture(t)

	// Missing email
	rec := postJSON(t, router, "/users/register", map[string]string{
		"fullname": "Alice",
		"phone":    "9800000001",
		"usertype": "Buyer",
		"username": "alice",
		"password": "Secret123!",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Code != CodeValidationError {
		t.Errorf("code = %q, want %q", resp.Code, CodeValidationError)
	}
}

func TestLoginEndpointLockoutMessage(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.register(t, "alice", "Secret123!")

	var rec *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		rec = postJSON(t, router, "/users/login", LoginRequest{Username: "alice", Password: "wrong"})
	}

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Code != CodeAccountLocked {
		t.Errorf("code = %q, want %q", resp.Code, CodeAccountLocked)
	}
	if resp.Message != "Account temporarily blocked. Try again in 15 minutes." {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestLoginEndpointAttemptsRemaining(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.register(t, "alice", "Secret123!")

	rec := postJSON(t, router, "/users/login", LoginRequest{Username: "alice", Password: "wrong"})
	resp := decodeResponse(t, rec)
	if resp.Message != "Incorrect password. You have 4 attempts remaining." {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestVerifyOTPEndpointSetsCookie(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.register(t, "alice", "Secret123!")

	rec := postJSON(t, router, "/users/login", LoginRequest{Username: "alice", Password: "Secret123!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	delivery, ok := f.notify.last()
	if !ok {
		t.Fatal("no OTP delivered")
	}
	code := extractCode(t, delivery.message)

	rec = postJSON(t, router, "/auth/verify-otp", VerifyOTPRequest{Username: "alice", OTP: code})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeResponse(t, rec)
	if resp.Token == "" {
		t.Error("response missing token")
	}
	if resp.UserData == nil || resp.UserData.Username != "alice" {
		t.Errorf("response missing userData: %+v", resp.UserData)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("token cookie not set")
	}
	if !cookie.HttpOnly || !cookie.Secure {
		t.Error("token cookie must be httpOnly and secure")
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("cookie MaxAge = %d, want 3600", cookie.MaxAge)
	}
	if cookie.Value != resp.Token {
		t.Error("cookie token differs from body token")
	}
}

func TestVerifyOTPEndpointWrongCode(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.register(t, "alice", "Secret123!")
	postJSON(t, router, "/users/login", LoginRequest{Username: "alice", Password: "Secret123!"})

	rec := postJSON(t, router, "/auth/verify-otp", VerifyOTPRequest{Username: "alice", OTP: "000000"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Code != CodeOTPMismatch {
		t.Errorf("code = %q, want %q", resp.Code, CodeOTPMismatch)
	}
}

func TestForgotAndResetPasswordEndpoints(t *testing.T) {
	f, router := newHandlerFixture(t)
	f.register(t, "alice", "Secret123!")

	rec := postJSON(t, router, "/users/forgot-password", ForgotPasswordRequest{Phone: "98000alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot status = %d: %s", rec.Code, rec.Body.String())
	}

	delivery, _ := f.notify.last()
	code := extractCode(t, delivery.message)

	rec = postJSON(t, router, "/users/reset-password", ResetPasswordRequest{
		Phone:       "98000alice",
		OTP:         code,
		NewPassword: "Fresh456$",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d: %s", rec.Code, rec.Body.String())
	}

	// The consumed code cannot be replayed
	rec = postJSON(t, router, "/users/reset-password", ResetPasswordRequest{
		Phone:       "98000alice",
		OTP:         code,
		NewPassword: "Again789^x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("replay status = %d, want 400", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Code != CodeNoOTPPending {
		t.Errorf("code = %q, want %q", resp.Code, CodeNoOTPPending)
	}
}

func TestUnknownAccountEndpoints(t *testing.T) {
	_, router := newHandlerFixture(t)

	rec := postJSON(t, router, "/users/login", LoginRequest{Username: "ghost", Password: "whatever"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("login status = %d, want 400", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Code != CodeAccountNotFound {
		t.Errorf("code = %q, want %q", resp.Code, CodeAccountNotFound)
	}

	rec = postJSON(t, router, "/users/forgot-password", ForgotPasswordRequest{Phone: "0000000000"})
	if resp := decodeResponse(t, rec); resp.Code != CodeAccountNotFound {
		t.Errorf("forgot code = %q, want %q", resp.Code, CodeAccountNotFound)
	}
}
