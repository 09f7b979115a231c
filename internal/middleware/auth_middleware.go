// Package middleware provides HTTP middleware: session authentication,
// request logging and rate limiting.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anishmaharjan/kinmel-backend/internal/auth"
	appctx "github.com/anishmaharjan/kinmel-backend/internal/context"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Authenticator validates the session token and injects the account
// identity into the request context. The token is read from the
// Authorization header (Bearer scheme) or from the "token" cookie.
func Authenticator(tokens *auth.TokenService, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				writeAuthError(w, "Authentication required")
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				logger.Debug("token rejected", slog.Any("error", err))
				writeAuthError(w, "Invalid or expired token")
				return
			}

			ctx := appctx.WithAccount(r.Context(), claims.AccountID(), claims.Username, claims.IsAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests from non-admin accounts.
// Must run after Authenticator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !appctx.ExtractIsAdmin(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(errorResponse{
				Code:    "FORBIDDEN",
				Message: "Admin access required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    auth.CodeAuthTokenInvalid,
		Message: message,
	})
}
