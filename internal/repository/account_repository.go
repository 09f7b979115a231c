package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameExists  = errors.New("username already exists")
	ErrEmailExists     = errors.New("email already exists")
	ErrPhoneExists     = errors.New("phone number already exists")
	// ErrVersionConflict is returned when a compare-and-swap update lost the
	// race against a concurrent writer; callers re-read and retry.
	ErrVersionConflict = errors.New("account version conflict")
)

const accountColumns = `
	id, fullname, username, email, phone, password_hash, password_history,
	password_updated_at, failed_login_attempts, blocked_until,
	login_otp, login_otp_expires_at, reset_otp, reset_otp_expires_at,
	is_admin, cart, version, created_at, updated_at
`

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByPhone(ctx context.Context, phone string) (*Account, error)
	UsernameTakenByOther(ctx context.Context, username string, selfID uuid.UUID) (bool, error)

	// Field-group updates. Each is a compare-and-swap on the version column
	// and bumps it on success; ErrVersionConflict signals a lost race.
	UpdateLoginState(ctx context.Context, account *Account) error
	UpdateLoginOTP(ctx context.Context, account *Account) error
	UpdateResetOTP(ctx context.Context, account *Account) error
	UpdatePassword(ctx context.Context, account *Account) error
	UpdateProfile(ctx context.Context, account *Account) error
}

// accountRepository implements AccountRepository using PostgreSQL
type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository instance
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

// Create inserts a new account into the database.
// Uniqueness of username, email and phone is enforced by the storage layer.
func (r *accountRepository) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (fullname, username, email, phone, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, password_updated_at, cart, version, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		account.Fullname,
		account.Username,
		strings.ToLower(account.Email),
		account.Phone,
		account.PasswordHash,
		account.IsAdmin,
	).Scan(
		&account.ID,
		&account.PasswordUpdatedAt,
		&account.Cart,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		// Map unique constraint violations to domain errors
		switch {
		case strings.Contains(err.Error(), "idx_accounts_username"):
			return ErrUsernameExists
		case strings.Contains(err.Error(), "idx_accounts_email"):
			return ErrEmailExists
		case strings.Contains(err.Error(), "idx_accounts_phone"):
			return ErrPhoneExists
		}
		return err
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByUsername retrieves an account by its username (exact match)
func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.getOne(ctx, query, username)
}

// GetByEmail retrieves an account by its email address (case-insensitive)
func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE LOWER(email) = LOWER($1)`
	return r.getOne(ctx, query, email)
}

// GetByPhone retrieves an account by its phone number
func (r *accountRepository) GetByPhone(ctx context.Context, phone string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE phone = $1`
	return r.getOne(ctx, query, phone)
}

func (r *accountRepository) getOne(ctx context.Context, query string, arg interface{}) (*Account, error) {
	account := &Account{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Fullname,
		&account.Username,
		&account.Email,
		&account.Phone,
		&account.PasswordHash,
		&account.PasswordHistory,
		&account.PasswordUpdatedAt,
		&account.FailedLoginAttempts,
		&account.BlockedUntil,
		&account.LoginOTP,
		&account.LoginOTPExpiresAt,
		&account.ResetOTP,
		&account.ResetOTPExpiresAt,
		&account.IsAdmin,
		&account.Cart,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

// UsernameTakenByOther checks whether a username belongs to an account other
// than selfID. Used by profile updates, where keeping one's own name is fine.
func (r *accountRepository) UsernameTakenByOther(ctx context.Context, username string, selfID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1 AND id <> $2)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, username, selfID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// UpdateLoginState persists the failed-login counter and lockout timestamp
func (r *accountRepository) UpdateLoginState(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = $1, blocked_until = $2,
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	return r.casExec(ctx, account, query,
		account.FailedLoginAttempts, account.BlockedUntil, account.ID, account.Version)
}

// UpdateLoginOTP persists the login OTP slot (value and expiry together)
func (r *accountRepository) UpdateLoginOTP(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET login_otp = $1, login_otp_expires_at = $2,
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	return r.casExec(ctx, account, query,
		account.LoginOTP, account.LoginOTPExpiresAt, account.ID, account.Version)
}

// UpdateResetOTP persists the password-reset OTP slot (value and expiry together)
func (r *accountRepository) UpdateResetOTP(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET reset_otp = $1, reset_otp_expires_at = $2,
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	return r.casExec(ctx, account, query,
		account.ResetOTP, account.ResetOTPExpiresAt, account.ID, account.Version)
}

// UpdatePassword persists a password change together with its history
func (r *accountRepository) UpdatePassword(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET password_hash = $1, password_history = $2, password_updated_at = $3,
		    version = version + 1, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`
	return r.casExec(ctx, account, query,
		account.PasswordHash, account.PasswordHistory, account.PasswordUpdatedAt,
		account.ID, account.Version)
}

// UpdateProfile persists fullname and username changes
func (r *accountRepository) UpdateProfile(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET fullname = $1, username = $2,
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
	`
	err := r.casExec(ctx, account, query,
		account.Fullname, account.Username, account.ID, account.Version)
	if err != nil && strings.Contains(err.Error(), "idx_accounts_username") {
		return ErrUsernameExists
	}
	return err
}

// casExec runs a compare-and-swap update and bumps the in-memory version on
// success so subsequent field-group updates from the same read still match.
func (r *accountRepository) casExec(ctx context.Context, account *Account, query string, args ...interface{}) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		// Distinguish a deleted account from a lost race
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, account.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrVersionConflict
	}

	account.Version++
	return nil
}
