package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Account represents a customer or seller account in the database.
// The version column guards every read-modify-write of the security fields
// (failed login counters, OTP slots, password history) against lost updates
// from concurrent requests.
type Account struct {
	ID                  uuid.UUID       `db:"id"`
	Fullname            string          `db:"fullname"`
	Username            string          `db:"username"`
	Email               string          `db:"email"`
	Phone               string          `db:"phone"`
	PasswordHash        string          `db:"password_hash"`
	PasswordHistory     []string        `db:"password_history"`
	PasswordUpdatedAt   time.Time       `db:"password_updated_at"`
	FailedLoginAttempts int             `db:"failed_login_attempts"`
	BlockedUntil        *time.Time      `db:"blocked_until"`
	LoginOTP            *string         `db:"login_otp"`
	LoginOTPExpiresAt   *time.Time      `db:"login_otp_expires_at"`
	ResetOTP            *string         `db:"reset_otp"`
	ResetOTPExpiresAt   *time.Time      `db:"reset_otp_expires_at"`
	IsAdmin             bool            `db:"is_admin"`
	Cart                json.RawMessage `db:"cart"`
	Version             int64           `db:"version"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

// Order represents a placed order in the database
type Order struct {
	ID         uuid.UUID       `db:"id"`
	AccountID  uuid.UUID       `db:"account_id"`
	OrderRef   string          `db:"order_ref"`
	ProductIDs json.RawMessage `db:"product_ids"`
	TotalCost  float64         `db:"total_cost"`
	Paid       bool            `db:"paid"`
	CreatedAt  time.Time       `db:"created_at"`
}
