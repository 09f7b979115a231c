package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the account security endpoints.
// The unauthenticated credential and OTP endpoints sit behind the strict
// limiter; profile endpoints require a valid session token.
func RegisterRoutes(r chi.Router, h *AuthHandler, authLimiter, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authLimiter)

		r.Post("/users/register", h.Register)
		r.Post("/users/login", h.Login)
		r.Post("/users/forgot-password", h.ForgotPassword)
		r.Post("/users/reset-password", h.ResetPassword)
		r.Post("/auth/generate-otp", h.GenerateOTP)
		r.Post("/auth/verify-otp", h.VerifyOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Put("/users/update", h.UpdateAccount)
		r.Get("/users/me", h.GetMe)
		r.Get("/users/{id}", h.GetUser)
	})
}
