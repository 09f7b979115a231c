// Package events provides the in-process bus for account security events.
// Subscribers receive an audit trail of login outcomes, lockouts, OTP
// activity, password changes and order placement.
package events

import (
	"time"
)

// Type identifies a security event
type Type string

const (
	TypeLoginSucceeded  Type = "login_succeeded"
	TypeLoginFailed     Type = "login_failed"
	TypeAccountLocked   Type = "account_locked"
	TypeOTPIssued       Type = "otp_issued"
	TypeOTPConsumed     Type = "otp_consumed"
	TypeOTPRejected     Type = "otp_rejected"
	TypePasswordChanged Type = "password_changed"
	TypeAccountCreated  Type = "account_created"
	TypeOrderPlaced     Type = "order_placed"
)

// Event represents one security-relevant occurrence on an account
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	AccountID string            `json:"account_id"`
	Username  string            `json:"username,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Handler is a function that handles published events
type Handler func(event Event)

// Bus defines the interface for publishing and subscribing to events
type Bus interface {
	// Publish delivers an event to all subscribers of its type.
	Publish(event Event)
	// Subscribe registers a handler for the given event types; an empty
	// list subscribes to everything. Returns an unsubscribe function.
	Subscribe(handler Handler, types ...Type) (unsubscribe func())
}

// Store keeps recent events per account for audit queries
type Store interface {
	// Append saves an event to the audit trail.
	Append(event Event)
	// Recent returns up to limit events for an account, newest first.
	Recent(accountID string, limit int) []Event
}
