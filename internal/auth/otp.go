package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/anishmaharjan/kinmel-backend/internal/config"
	"github.com/anishmaharjan/kinmel-backend/internal/notifier"
	"github.com/anishmaharjan/kinmel-backend/internal/repository"
)

// OTPManager generates, stores, validates and expires the one-time codes
// used for second-factor login and for password reset. Codes are uniform
// random 6-digit values persisted on the account record, one slot per
// purpose; issuing overwrites any pending code for that slot.
type OTPManager struct {
	accounts repository.AccountRepository
	notify   notifier.Notifier
	cfg      config.SecurityConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewOTPManager creates a new OTPManager instance
func NewOTPManager(accounts repository.AccountRepository, notify notifier.Notifier, cfg config.SecurityConfig, logger *slog.Logger) *OTPManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &OTPManager{
		accounts: accounts,
		notify:   notify,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// otpSlot abstracts over the two independent OTP slots on the account record
type otpSlot struct {
	name    string
	get     func(a *repository.Account) (*string, *time.Time)
	set     func(a *repository.Account, value *string, expires *time.Time)
	persist func(ctx context.Context, r repository.AccountRepository, a *repository.Account) error
}

var loginSlot = otpSlot{
	name: "login",
	get: func(a *repository.Account) (*string, *time.Time) {
		return a.LoginOTP, a.LoginOTPExpiresAt
	},
	set: func(a *repository.Account, value *string, expires *time.Time) {
		a.LoginOTP = value
		a.LoginOTPExpiresAt = expires
	},
	persist: func(ctx context.Context, r repository.AccountRepository, a *repository.Account) error {
		return r.UpdateLoginOTP(ctx, a)
	},
}

var resetSlot = otpSlot{
	name: "reset",
	get: func(a *repository.Account) (*string, *time.Time) {
		return a.ResetOTP, a.ResetOTPExpiresAt
	},
	set: func(a *repository.Account, value *string, expires *time.Time) {
		a.ResetOTP = value
		a.ResetOTPExpiresAt = expires
	},
	persist: func(ctx context.Context, r repository.AccountRepository, a *repository.Account) error {
		return r.UpdateResetOTP(ctx, a)
	},
}

// IssueLoginOTP stores a fresh second-factor code on the account and emails
// it. The code is persisted before dispatch; a delivery failure is reported
// as ErrDeliveryFailed so the caller can surface it, the code stays valid.
func (m *OTPManager) IssueLoginOTP(ctx context.Context, account *repository.Account) (string, error) {
	code, err := m.issue(ctx, account, loginSlot, m.cfg.LoginOTPTTL)
	if err != nil {
		return "", err
	}

	message := fmt.Sprintf("Your one-time password is: %s. It is valid for %d minutes.",
		code, int(m.cfg.LoginOTPTTL.Minutes()))
	if err := m.notify.Deliver(ctx, notifier.ChannelEmail, account.Email, message); err != nil {
		m.logger.Error("login otp delivery failed",
			slog.String("username", account.Username), slog.Any("error", err))
		return code, ErrDeliveryFailed
	}

	return code, nil
}

// IssueResetOTP stores a fresh password-recovery code on the account and
// sends it to the registered phone number.
func (m *OTPManager) IssueResetOTP(ctx context.Context, account *repository.Account) (string, error) {
	code, err := m.issue(ctx, account, resetSlot, m.cfg.ResetOTPTTL)
	if err != nil {
		return "", err
	}

	message := fmt.Sprintf("Your password reset code is: %s. It is valid for %d minutes.",
		code, int(m.cfg.ResetOTPTTL.Minutes()))
	if err := m.notify.Deliver(ctx, notifier.ChannelSMS, account.Phone, message); err != nil {
		m.logger.Error("reset otp delivery failed",
			slog.String("username", account.Username), slog.Any("error", err))
		return code, ErrDeliveryFailed
	}

	return code, nil
}

// ConsumeLoginOTP validates and clears the second-factor login code
func (m *OTPManager) ConsumeLoginOTP(ctx context.Context, account *repository.Account, supplied string) error {
	return m.consume(ctx, account, loginSlot, supplied)
}

// ConsumeResetOTP validates and clears the password-recovery code
func (m *OTPManager) ConsumeResetOTP(ctx context.Context, account *repository.Account, supplied string) error {
	return m.consume(ctx, account, resetSlot, supplied)
}

func (m *OTPManager) issue(ctx context.Context, account *repository.Account, slot otpSlot, ttl time.Duration) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		expires := m.now().Add(ttl)
		slot.set(account, &code, &expires)

		err := slot.persist(ctx, m.accounts, account)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			if errors.Is(err, repository.ErrAccountNotFound) {
				return "", ErrAccountNotFound
			}
			return "", err
		}

		if err := m.reload(ctx, account); err != nil {
			return "", err
		}
	}

	return "", ErrConcurrentUpdate
}

// consume enforces the at-most-one-use guarantee: an expired code clears the
// slot, a mismatch retains it for retry, a match clears it exactly once.
func (m *OTPManager) consume(ctx context.Context, account *repository.Account, slot otpSlot, supplied string) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		value, expires := slot.get(account)
		if value == nil {
			return ErrNoOTPPending
		}

		if expires != nil && m.now().After(*expires) {
			slot.set(account, nil, nil)
			err := slot.persist(ctx, m.accounts, account)
			if errors.Is(err, repository.ErrVersionConflict) {
				if err := m.reload(ctx, account); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			return ErrOTPExpired
		}

		if subtle.ConstantTimeCompare([]byte(*value), []byte(supplied)) != 1 {
			return ErrOTPMismatch
		}

		slot.set(account, nil, nil)
		err := slot.persist(ctx, m.accounts, account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		if err := m.reload(ctx, account); err != nil {
			return err
		}
	}

	return ErrConcurrentUpdate
}

func (m *OTPManager) reload(ctx context.Context, account *repository.Account) error {
	fresh, err := m.accounts.GetByID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	*account = *fresh
	return nil
}

// generateCode draws a uniform random 6-digit code in [100000, 999999]
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
