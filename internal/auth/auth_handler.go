package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	appctx "github.com/anishmaharjan/kinmel-backend/internal/context"
	"github.com/anishmaharjan/kinmel-backend/internal/logger"
)

// Request DTOs. Bodies are validated at the boundary before the core runs.

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Fullname string `json:"fullname" validate:"required"`
	Phone    string `json:"phone" validate:"required,min=10"`
	Usertype string `json:"usertype" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GenerateOTPRequest represents the OTP issue request payload
type GenerateOTPRequest struct {
	Username string `json:"username" validate:"required"`
}

// VerifyOTPRequest represents the OTP verify request payload
type VerifyOTPRequest struct {
	Username string `json:"username" validate:"required"`
	OTP      string `json:"otp" validate:"required"`
}

// ForgotPasswordRequest represents the password-reset issue request payload
type ForgotPasswordRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// ResetPasswordRequest represents the password-reset verify request payload
type ResetPasswordRequest struct {
	Phone       string `json:"phone" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// UpdateAccountRequest represents the account update request payload
type UpdateAccountRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Fullname string `json:"fullname" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Response is the standard API response shape
type Response struct {
	Success  bool         `json:"success"`
	Message  string       `json:"message"`
	Code     string       `json:"code,omitempty"`
	Token    string       `json:"token,omitempty"`
	UserData *AccountData `json:"userData,omitempty"`
}

// AuthHandler handles HTTP requests for the account security endpoints
type AuthHandler struct {
	service     *AuthService
	tokenExpiry time.Duration
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(service *AuthService, tokenExpiry time.Duration, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		service:     service,
		tokenExpiry: tokenExpiry,
		validate:    validator.New(),
		logger:      log,
	}
}

// Register handles user registration
// POST /api/v1/users/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.bind(w, r, &req) {
		return
	}

	if _, err := h.service.Register(r.Context(), req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusCreated, Response{Message: "User created successfully"})
}

// Login handles the first login factor (username and password)
// POST /api/v1/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.Login(r.Context(), req.Username, req.Password); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, Response{Message: "OTP sent to your email"})
}

// GenerateOTP re-issues the second-factor login code
// POST /api/v1/auth/generate-otp
func (h *AuthHandler) GenerateOTP(w http.ResponseWriter, r *http.Request) {
	var req GenerateOTPRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.GenerateLoginOTP(r.Context(), req.Username); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, Response{Message: "OTP sent to your email"})
}

// VerifyOTP handles the second login factor and issues the session token.
// The token is returned in the body and mirrored as an httpOnly secure
// cookie with the same lifetime.
// POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !h.bind(w, r, &req) {
		return
	}

	token, userData, err := h.service.VerifyLoginOTP(r.Context(), req.Username, req.OTP)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenExpiry.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})

	h.writeSuccess(w, http.StatusOK, Response{
		Message:  "OTP verified successfully",
		Token:    token,
		UserData: userData,
	})
}

// ForgotPassword issues a password-recovery code to the registered phone
// POST /api/v1/users/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Phone); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, Response{Message: "OTP sent successfully"})
}

// ResetPassword consumes the recovery code and installs the new password
// POST /api/v1/users/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Phone, req.OTP, req.NewPassword); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, Response{Message: "Password updated successfully"})
}

// UpdateAccount changes profile fields and the password
// PUT /api/v1/users/update
func (h *AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if !h.bind(w, r, &req) {
		return
	}

	if err := h.service.UpdateAccount(r.Context(), req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, Response{Message: "User updated successfully"})
}

// GetMe returns the profile of the authenticated account
// GET /api/v1/users/me
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := appctx.ExtractAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, CodeAuthTokenInvalid, "Invalid or expired token")
		return
	}

	userData, err := h.service.GetProfile(r.Context(), accountID)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, Response{Message: "OK", UserData: userData})
}

// GetUser returns the profile of the given account ID
// GET /api/v1/users/{id}
func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	userData, err := h.service.GetProfile(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	h.writeSuccess(w, http.StatusOK, Response{Message: "OK", UserData: userData})
}

// bind decodes and validates the request body, writing the error response
// itself when the payload is unusable.
func (h *AuthHandler) bind(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Please enter all the fields")
		return false
	}
	return true
}

// writeFailure maps a service error to its response. Unknown errors are
// logged with context and surfaced as a generic message.
func (h *AuthHandler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var locked *LockedError
	var creds *CredentialsError

	switch {
	case errors.As(err, &locked):
		h.writeError(w, http.StatusBadRequest, CodeAccountLocked,
			fmt.Sprintf("Account temporarily blocked. Try again in %d minutes.", locked.RemainingMinutes))
	case errors.As(err, &creds):
		h.writeError(w, http.StatusBadRequest, CodeInvalidCredentials,
			fmt.Sprintf("Incorrect password. You have %d attempts remaining.", creds.AttemptsRemaining))
	case errors.Is(err, ErrAccountNotFound):
		h.writeError(w, http.StatusBadRequest, CodeAccountNotFound, "Account does not exist")
	case errors.Is(err, ErrNoOTPPending):
		h.writeError(w, http.StatusBadRequest, CodeNoOTPPending, "No OTP pending. Request a new code.")
	case errors.Is(err, ErrOTPExpired):
		h.writeError(w, http.StatusBadRequest, CodeOTPExpired, "OTP expired. Request a new code.")
	case errors.Is(err, ErrOTPMismatch):
		h.writeError(w, http.StatusBadRequest, CodeOTPMismatch, "Invalid OTP")
	case errors.Is(err, ErrPasswordTooShort):
		h.writeError(w, http.StatusBadRequest, CodePasswordPolicy,
			fmt.Sprintf("Password must be %d-%d characters long", MinPasswordLength, MaxPasswordLength))
	case errors.Is(err, ErrPasswordTooWeak):
		h.writeError(w, http.StatusBadRequest, CodePasswordPolicy,
			"Password must contain an uppercase letter, a lowercase letter, a number and a special character")
	case errors.Is(err, ErrPasswordReused):
		h.writeError(w, http.StatusBadRequest, CodePasswordReused, "You cannot reuse a recent password")
	case errors.Is(err, ErrPasswordExpired):
		h.writeError(w, http.StatusBadRequest, CodePasswordExpired, "Your password has expired. Please change it.")
	case errors.Is(err, ErrUsernameExists):
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Username already in use")
	case errors.Is(err, ErrEmailExists):
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Email already registered")
	case errors.Is(err, ErrPhoneExists):
		h.writeError(w, http.StatusBadRequest, CodeValidationError, "Phone number already registered")
	case errors.Is(err, ErrDeliveryFailed):
		h.writeError(w, http.StatusBadRequest, CodeDeliveryFailed, "Error sending OTP. Please try again.")
	default:
		logger.WithCorrelationID(r.Context(), h.logger).Error("auth request failed",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func (h *AuthHandler) writeSuccess(w http.ResponseWriter, statusCode int, resp Response) {
	resp.Success = true
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *AuthHandler) writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Code: code, Message: message})
}
