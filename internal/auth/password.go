package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/anishmaharjan/kinmel-backend/internal/config"
	"github.com/anishmaharjan/kinmel-backend/internal/repository"
)

const (
	// MinPasswordLength is the minimum required password length
	MinPasswordLength = 8
	// MaxPasswordLength is the maximum accepted password length
	MaxPasswordLength = 20
)

// PasswordManager enforces password strength, reuse history and age-based
// expiry, and installs new passwords on the account record.
type PasswordManager struct {
	accounts repository.AccountRepository
	cfg      config.SecurityConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewPasswordManager creates a new PasswordManager instance
func NewPasswordManager(accounts repository.AccountRepository, cfg config.SecurityConfig, logger *slog.Logger) *PasswordManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasswordManager{
		accounts: accounts,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Validate checks a candidate password against the strength policy:
// 8-20 characters with at least one uppercase letter, one lowercase letter,
// one digit and one special character.
func (p *PasswordManager) Validate(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrPasswordTooShort
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper || !hasLower || !hasNumber || !hasSpecial {
		return ErrPasswordTooWeak
	}

	return nil
}

// Hash creates a bcrypt hash of the password
func (p *PasswordManager) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsExpired reports whether the account's current password is older than the
// configured expiry period.
func (p *PasswordManager) IsExpired(account *repository.Account) bool {
	age := p.now().Sub(account.PasswordUpdatedAt)
	return age > time.Duration(p.cfg.PasswordExpiryDays)*24*time.Hour
}

// Change installs a new password on the account.
//
// The strength policy and the reuse-history check always apply. The expiry
// check guards the *current* credential's staleness and applies only when
// checkExpiry is set: an update authenticated with a stale password is
// refused, while a reset that re-proved identity via a phone OTP is not.
// On success the old hash is pushed onto the bounded history and the change
// is persisted with a compare-and-swap on the account version.
func (p *PasswordManager) Change(ctx context.Context, account *repository.Account, newPassword string, checkExpiry bool) error {
	if err := p.Validate(newPassword); err != nil {
		return err
	}

	// Reuse check covers the current hash plus the bounded history
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(newPassword)) == nil {
		return ErrPasswordReused
	}
	for _, old := range account.PasswordHistory {
		if bcrypt.CompareHashAndPassword([]byte(old), []byte(newPassword)) == nil {
			return ErrPasswordReused
		}
	}

	if checkExpiry && p.IsExpired(account) {
		return ErrPasswordExpired
	}

	hash, err := p.Hash(newPassword)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		history := append(account.PasswordHistory, account.PasswordHash)
		if len(history) > p.cfg.PasswordHistory {
			history = history[len(history)-p.cfg.PasswordHistory:]
		}

		account.PasswordHistory = history
		account.PasswordHash = hash
		account.PasswordUpdatedAt = p.now()

		err := p.accounts.UpdatePassword(ctx, account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		fresh, err := p.accounts.GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		*account = *fresh
	}

	return ErrConcurrentUpdate
}
