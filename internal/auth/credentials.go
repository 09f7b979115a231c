package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/anishmaharjan/kinmel-backend/internal/config"
	"github.com/anishmaharjan/kinmel-backend/internal/repository"
)

// casRetries bounds how often a read-modify-write is retried after losing a
// version race to a concurrent request for the same account.
const casRetries = 3

// CredentialVerifier validates a username and password against the stored
// hash, counts consecutive failures and enforces the cooldown lockout.
type CredentialVerifier struct {
	accounts repository.AccountRepository
	cfg      config.SecurityConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewCredentialVerifier creates a new CredentialVerifier instance
func NewCredentialVerifier(accounts repository.AccountRepository, cfg config.SecurityConfig, logger *slog.Logger) *CredentialVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifier{
		accounts: accounts,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Check validates the password for the named account.
//
// A blocked account is refused outright without touching counters. A wrong
// password increments the failure counter and, at the threshold, sets the
// lockout timestamp. A correct password resets the counter and clears the
// lockout. Every branch except the blocked short-circuit persists.
func (v *CredentialVerifier) Check(ctx context.Context, username, password string) (*repository.Account, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		account, err := v.accounts.GetByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return nil, ErrAccountNotFound
			}
			return nil, err
		}

		now := v.now()
		if account.BlockedUntil != nil && account.BlockedUntil.After(now) {
			return nil, &LockedError{RemainingMinutes: remainingMinutes(*account.BlockedUntil, now)}
		}

		if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
			account.FailedLoginAttempts++
			locked := account.FailedLoginAttempts >= v.cfg.MaxFailedAttempts
			if locked {
				until := now.Add(v.cfg.LockoutDuration)
				account.BlockedUntil = &until
			}

			if err := v.accounts.UpdateLoginState(ctx, account); err != nil {
				if errors.Is(err, repository.ErrVersionConflict) {
					continue
				}
				return nil, err
			}

			if locked {
				v.logger.Warn("account locked after repeated failures",
					slog.String("username", username),
					slog.Int("failed_attempts", account.FailedLoginAttempts))
				return nil, &LockedError{RemainingMinutes: remainingMinutes(*account.BlockedUntil, now)}
			}
			return nil, &CredentialsError{AttemptsRemaining: v.cfg.MaxFailedAttempts - account.FailedLoginAttempts}
		}

		account.FailedLoginAttempts = 0
		account.BlockedUntil = nil
		if err := v.accounts.UpdateLoginState(ctx, account); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		return account, nil
	}

	return nil, ErrConcurrentUpdate
}

// remainingMinutes is the ceiling of the time left until the given instant
func remainingMinutes(until, now time.Time) int {
	ms := until.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + 59999) / 60000)
}
