package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anishmaharjan/kinmel-backend/internal/config"
	"github.com/anishmaharjan/kinmel-backend/internal/notifier"
	"github.com/anishmaharjan/kinmel-backend/internal/repository"
)

// Mock implementations for testing

// mockAccountRepository implements repository.AccountRepository in memory.
// It mimics the compare-and-swap semantics of the real repository: every
// update checks the caller's version against the stored one and bumps it.
type mockAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*repository.Account
}

func newMockAccountRepository() *mockAccountRepository {
	return &mockAccountRepository{
		accounts: make(map[string]*repository.Account),
	}
}

func copyAccount(a *repository.Account) *repository.Account {
	dup := *a
	dup.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	return &dup
}

func (m *mockAccountRepository) Create(_ context.Context, account *repository.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing.Username == account.Username {
			return repository.ErrUsernameExists
		}
		if existing.Email == strings.ToLower(account.Email) {
			return repository.ErrEmailExists
		}
		if existing.Phone == account.Phone {
			return repository.ErrPhoneExists
		}
	}

	account.ID = uuid.New()
	account.Email = strings.ToLower(account.Email)
	account.CreatedAt = time.Now().UTC()
	account.UpdatedAt = account.CreatedAt
	account.PasswordUpdatedAt = account.CreatedAt
	m.accounts[account.ID.String()] = copyAccount(account)
	return nil
}

func (m *mockAccountRepository) GetByID(_ context.Context, id uuid.UUID) (*repository.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if account, ok := m.accounts[id.String()]; ok {
		return copyAccount(account), nil
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) GetByUsername(_ context.Context, username string) (*repository.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Username == username {
			return copyAccount(account), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) GetByEmail(_ context.Context, email string) (*repository.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(email)
	for _, account := range m.accounts {
		if account.Email == email {
			return copyAccount(account), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) GetByPhone(_ context.Context, phone string) (*repository.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Phone == phone {
			return copyAccount(account), nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) UsernameTakenByOther(_ context.Context, username string, selfID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range m.accounts {
		if account.Username == username && account.ID != selfID {
			return true, nil
		}
	}
	return false, nil
}

// cas applies update under the version check shared by every field-group
// update method.
func (m *mockAccountRepository) cas(account *repository.Account, update func(stored *repository.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.accounts[account.ID.String()]
	if !ok {
		return repository.ErrAccountNotFound
	}
	if stored.Version != account.Version {
		return repository.ErrVersionConflict
	}

	update(stored)
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	account.Version = stored.Version
	return nil
}

func (m *mockAccountRepository) UpdateLoginState(_ context.Context, account *repository.Account) error {
	return m.cas(account, func(stored *repository.Account) {
		stored.FailedLoginAttempts = account.FailedLoginAttempts
		stored.BlockedUntil = account.BlockedUntil
	})
}

func (m *mockAccountRepository) UpdateLoginOTP(_ context.Context, account *repository.Account) error {
	return m.cas(account, func(stored *repository.Account) {
		stored.LoginOTP = account.LoginOTP
		stored.LoginOTPExpiresAt = account.LoginOTPExpiresAt
	})
}

func (m *mockAccountRepository) UpdateResetOTP(_ context.Context, account *repository.Account) error {
	return m.cas(account, func(stored *repository.Account) {
		stored.ResetOTP = account.ResetOTP
		stored.ResetOTPExpiresAt = account.ResetOTPExpiresAt
	})
}

func (m *mockAccountRepository) UpdatePassword(_ context.Context, account *repository.Account) error {
	return m.cas(account, func(stored *repository.Account) {
		stored.PasswordHash = account.PasswordHash
		stored.PasswordHistory = append([]string(nil), account.PasswordHistory...)
		stored.PasswordUpdatedAt = account.PasswordUpdatedAt
	})
}

func (m *mockAccountRepository) UpdateProfile(_ context.Context, account *repository.Account) error {
	return m.cas(account, func(stored *repository.Account) {
		stored.Fullname = account.Fullname
		stored.Username = account.Username
	})
}

// stored returns the authoritative copy for assertions
func (m *mockAccountRepository) stored(id uuid.UUID) *repository.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id.String()]; ok {
		return copyAccount(account)
	}
	return nil
}

// mockNotifier records deliveries and can be told to fail
type mockNotifier struct {
	mu         sync.Mutex
	deliveries []mockDelivery
	failWith   error
}

type mockDelivery struct {
	channel   notifier.Channel
	recipient string
	message   string
}

func (m *mockNotifier) Deliver(_ context.Context, channel notifier.Channel, recipient, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.deliveries = append(m.deliveries, mockDelivery{channel: channel, recipient: recipient, message: message})
	return nil
}

func (m *mockNotifier) last() (mockDelivery, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.deliveries) == 0 {
		return mockDelivery{}, false
	}
	return m.deliveries[len(m.deliveries)-1], true
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deliveries)
}

// errNotifyDown simulates an unreachable delivery provider
var errNotifyDown = errors.New("provider unreachable")

// testSecurityConfig returns the documented policy with a cheap bcrypt cost
func testSecurityConfig() config.SecurityConfig {
	return config.SecurityConfig{
		MaxFailedAttempts:  5,
		LockoutDuration:    15 * time.Minute,
		LoginOTPTTL:        10 * time.Minute,
		ResetOTPTTL:        6 * time.Minute,
		PasswordExpiryDays: 90,
		PasswordHistory:    5,
		BcryptCost:         4,
	}
}
