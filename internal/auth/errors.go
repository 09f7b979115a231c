package auth

import (
	"errors"
	"fmt"
)

// Auth service errors
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrNoOTPPending       = errors.New("no otp pending")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPMismatch        = errors.New("otp mismatch")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrPasswordTooWeak    = errors.New("password too weak")
	ErrPasswordReused     = errors.New("password reused")
	ErrPasswordExpired    = errors.New("password expired")
	ErrDeliveryFailed     = errors.New("otp delivery failed")
	ErrUsernameExists     = errors.New("username already in use")
	ErrEmailExists        = errors.New("email already registered")
	ErrPhoneExists        = errors.New("phone number already registered")
	ErrConcurrentUpdate   = errors.New("account was modified concurrently")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Error codes for API responses
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeNoOTPPending       = "NO_OTP_PENDING"
	CodeOTPExpired         = "OTP_EXPIRED"
	CodeOTPMismatch        = "OTP_MISMATCH"
	CodePasswordPolicy     = "PASSWORD_POLICY"
	CodePasswordReused     = "PASSWORD_REUSED"
	CodePasswordExpired    = "PASSWORD_EXPIRED"
	CodeDeliveryFailed     = "OTP_DELIVERY_FAILED"
	CodeAuthTokenMissing   = "AUTH_TOKEN_MISSING"
	CodeAuthTokenInvalid   = "AUTH_TOKEN_INVALID"
)

// LockedError is returned while an account's lockout cooldown is active.
// RemainingMinutes is the ceiling of the time left before login is allowed.
type LockedError struct {
	RemainingMinutes int
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account temporarily blocked, try again in %d minutes", e.RemainingMinutes)
}

// Is makes errors.Is(err, &LockedError{}) match any lockout error
func (e *LockedError) Is(target error) bool {
	_, ok := target.(*LockedError)
	return ok
}

// CredentialsError is returned on a wrong password while attempts remain
type CredentialsError struct {
	AttemptsRemaining int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("incorrect password, %d attempts remaining", e.AttemptsRemaining)
}

// Is makes errors.Is(err, ErrInvalidCredentials) match credential errors
func (e *CredentialsError) Is(target error) bool {
	if target == ErrInvalidCredentials {
		return true
	}
	_, ok := target.(*CredentialsError)
	return ok
}
