package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anishmaharjan/kinmel-backend/internal/events"
	"github.com/anishmaharjan/kinmel-backend/internal/metrics"
	"github.com/anishmaharjan/kinmel-backend/internal/repository"
	"github.com/anishmaharjan/kinmel-backend/internal/sanitizer"
)

// AccountData is the account representation returned to clients.
// Secrets, counters and OTP slots never leave the service.
type AccountData struct {
	ID        string    `json:"id"`
	Fullname  string    `json:"fullname"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthService orchestrates the account security flows: registration,
// two-factor login, password reset by phone OTP and account updates.
type AuthService struct {
	accounts  repository.AccountRepository
	verifier  *CredentialVerifier
	otp       *OTPManager
	passwords *PasswordManager
	tokens    *TokenService
	sanitize  sanitizer.InputSanitizer
	bus       events.Bus
	logger    *slog.Logger
}

// NewAuthService creates a new AuthService instance
func NewAuthService(
	accounts repository.AccountRepository,
	verifier *CredentialVerifier,
	otp *OTPManager,
	passwords *PasswordManager,
	tokens *TokenService,
	sanitize sanitizer.InputSanitizer,
	bus events.Bus,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		accounts:  accounts,
		verifier:  verifier,
		otp:       otp,
		passwords: passwords,
		tokens:    tokens,
		sanitize:  sanitize,
		bus:       bus,
		logger:    logger,
	}
}

// Register creates a new account. Free-text fields are sanitized, the
// password must satisfy the strength policy, and username/email/phone must
// be unique. A usertype of "Seller" marks the account as admin.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AccountData, error) {
	fullname := s.sanitize.Clean(req.Fullname)
	username := s.sanitize.Clean(req.Username)
	email := strings.ToLower(s.sanitize.Clean(req.Email))
	phone := s.sanitize.Clean(req.Phone)

	if err := s.passwords.Validate(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	account := &repository.Account{
		Fullname:     fullname,
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		IsAdmin:      strings.EqualFold(req.Usertype, "Seller"),
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameExists
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailExists
		case errors.Is(err, repository.ErrPhoneExists):
			return nil, ErrPhoneExists
		}
		return nil, err
	}

	s.bus.Publish(events.Event{
		Type:      events.TypeAccountCreated,
		AccountID: account.ID.String(),
		Username:  account.Username,
	})

	return accountData(account), nil
}

// Login runs the first factor: credential verification followed by issuing
// the email OTP. A delivery failure after the code is stored is surfaced as
// ErrDeliveryFailed so the caller can distinguish it.
func (s *AuthService) Login(ctx context.Context, username, password string) error {
	account, err := s.verifier.Check(ctx, username, password)
	if err != nil {
		s.recordLoginOutcome(username, err)
		return err
	}

	metrics.LoginAttemptsTotal.WithLabelValues("granted").Inc()
	s.bus.Publish(events.Event{
		Type:      events.TypeLoginSucceeded,
		AccountID: account.ID.String(),
		Username:  account.Username,
	})

	return s.issueLoginOTP(ctx, account)
}

// GenerateLoginOTP (re)issues the second-factor email code for an account
func (s *AuthService) GenerateLoginOTP(ctx context.Context, username string) error {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	return s.issueLoginOTP(ctx, account)
}

func (s *AuthService) issueLoginOTP(ctx context.Context, account *repository.Account) error {
	_, err := s.otp.IssueLoginOTP(ctx, account)
	if err != nil && !errors.Is(err, ErrDeliveryFailed) {
		return err
	}

	metrics.OTPIssuedTotal.WithLabelValues("login").Inc()
	s.bus.Publish(events.Event{
		Type:      events.TypeOTPIssued,
		AccountID: account.ID.String(),
		Username:  account.Username,
		Detail:    map[string]string{"purpose": "login"},
	})

	if errors.Is(err, ErrDeliveryFailed) {
		metrics.OTPDeliveryFailuresTotal.WithLabelValues("email").Inc()
		return ErrDeliveryFailed
	}
	return nil
}

// VerifyLoginOTP runs the second factor and, on success, mints the session
// token. The code is consumed exactly once.
func (s *AuthService) VerifyLoginOTP(ctx context.Context, username, otp string) (string, *AccountData, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", nil, ErrAccountNotFound
		}
		return "", nil, err
	}

	if err := s.otp.ConsumeLoginOTP(ctx, account, otp); err != nil {
		s.recordOTPOutcome("login", account, err)
		return "", nil, err
	}

	metrics.OTPConsumedTotal.WithLabelValues("login", "granted").Inc()
	s.bus.Publish(events.Event{
		Type:      events.TypeOTPConsumed,
		AccountID: account.ID.String(),
		Username:  account.Username,
		Detail:    map[string]string{"purpose": "login"},
	})

	token, err := s.tokens.Generate(account.ID.String(), account.Username, account.IsAdmin)
	if err != nil {
		return "", nil, err
	}

	return token, accountData(account), nil
}

// ForgotPassword issues a password-recovery code to the phone number on file
func (s *AuthService) ForgotPassword(ctx context.Context, phone string) error {
	account, err := s.accounts.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	_, err = s.otp.IssueResetOTP(ctx, account)
	if err != nil && !errors.Is(err, ErrDeliveryFailed) {
		return err
	}

	metrics.OTPIssuedTotal.WithLabelValues("reset").Inc()
	s.bus.Publish(events.Event{
		Type:      events.TypeOTPIssued,
		AccountID: account.ID.String(),
		Username:  account.Username,
		Detail:    map[string]string{"purpose": "reset"},
	})

	if errors.Is(err, ErrDeliveryFailed) {
		metrics.OTPDeliveryFailuresTotal.WithLabelValues("sms").Inc()
		return ErrDeliveryFailed
	}
	return nil
}

// ResetPassword consumes the phone OTP and installs the new password.
// Possession of the code re-proves identity, so the age check on the old
// credential does not apply here.
func (s *AuthService) ResetPassword(ctx context.Context, phone, otp, newPassword string) error {
	account, err := s.accounts.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if err := s.otp.ConsumeResetOTP(ctx, account, otp); err != nil {
		s.recordOTPOutcome("reset", account, err)
		return err
	}
	metrics.OTPConsumedTotal.WithLabelValues("reset", "granted").Inc()

	if err := s.passwords.Change(ctx, account, newPassword, false); err != nil {
		s.recordPasswordOutcome(account, err)
		return err
	}

	metrics.PasswordChangesTotal.WithLabelValues("granted").Inc()
	s.bus.Publish(events.Event{
		Type:      events.TypePasswordChanged,
		AccountID: account.ID.String(),
		Username:  account.Username,
		Detail:    map[string]string{"via": "reset"},
	})

	return nil
}

// UpdateAccount changes profile fields and the password in one call, as the
// account settings form submits them together. The password change applies
// the full lifecycle policy including the 90-day age check on the current
// credential.
func (s *AuthService) UpdateAccount(ctx context.Context, req UpdateAccountRequest) error {
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		return ErrAccountNotFound
	}

	username := s.sanitize.Clean(req.Username)
	fullname := s.sanitize.Clean(req.Fullname)

	taken, err := s.accounts.UsernameTakenByOther(ctx, username, id)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameExists
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}

	if err := s.passwords.Change(ctx, account, req.Password, true); err != nil {
		s.recordPasswordOutcome(account, err)
		return err
	}
	metrics.PasswordChangesTotal.WithLabelValues("granted").Inc()

	account.Fullname = fullname
	account.Username = username
	if err := s.accounts.UpdateProfile(ctx, account); err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return ErrUsernameExists
		}
		return err
	}

	s.bus.Publish(events.Event{
		Type:      events.TypePasswordChanged,
		AccountID: account.ID.String(),
		Username:  account.Username,
		Detail:    map[string]string{"via": "update"},
	})

	return nil
}

// GetProfile returns the account data for an authenticated account ID
func (s *AuthService) GetProfile(ctx context.Context, accountID string) (*AccountData, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return accountData(account), nil
}

func (s *AuthService) recordLoginOutcome(username string, err error) {
	var locked *LockedError
	var creds *CredentialsError

	switch {
	case errors.As(err, &locked):
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		metrics.LockoutsTotal.Inc()
		s.bus.Publish(events.Event{
			Type:     events.TypeAccountLocked,
			Username: username,
			Detail:   map[string]string{"remaining_minutes": strconv.Itoa(locked.RemainingMinutes)},
		})
	case errors.As(err, &creds):
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		s.bus.Publish(events.Event{
			Type:     events.TypeLoginFailed,
			Username: username,
			Detail:   map[string]string{"attempts_remaining": strconv.Itoa(creds.AttemptsRemaining)},
		})
	case errors.Is(err, ErrAccountNotFound):
		metrics.LoginAttemptsTotal.WithLabelValues("not_found").Inc()
	default:
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
	}
}

func (s *AuthService) recordOTPOutcome(purpose string, account *repository.Account, err error) {
	outcome := "error"
	switch {
	case errors.Is(err, ErrOTPMismatch):
		outcome = "mismatch"
	case errors.Is(err, ErrOTPExpired):
		outcome = "expired"
	case errors.Is(err, ErrNoOTPPending):
		outcome = "none_pending"
	}
	metrics.OTPConsumedTotal.WithLabelValues(purpose, outcome).Inc()

	if outcome != "error" {
		s.bus.Publish(events.Event{
			Type:      events.TypeOTPRejected,
			AccountID: account.ID.String(),
			Username:  account.Username,
			Detail:    map[string]string{"purpose": purpose, "reason": outcome},
		})
	}
}

func (s *AuthService) recordPasswordOutcome(account *repository.Account, err error) {
	outcome := "error"
	switch {
	case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooWeak):
		outcome = "policy"
	case errors.Is(err, ErrPasswordReused):
		outcome = "reused"
	case errors.Is(err, ErrPasswordExpired):
		outcome = "expired"
	}
	metrics.PasswordChangesTotal.WithLabelValues(outcome).Inc()
}

func accountData(account *repository.Account) *AccountData {
	return &AccountData{
		ID:        account.ID.String(),
		Fullname:  account.Fullname,
		Username:  account.Username,
		Email:     account.Email,
		Phone:     account.Phone,
		IsAdmin:   account.IsAdmin,
		CreatedAt: account.CreatedAt,
	}
}
