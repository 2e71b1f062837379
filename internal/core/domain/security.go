package domain

import "time"

// LoginAttempt records one authentication attempt for throttling and audit.
type LoginAttempt struct {
	ID            string    `json:"id"`
	Identifier    string    `json:"identifier"`
	Succeeded     bool      `json:"succeeded"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	At            time.Time `json:"at"`
}

// LockoutStatus is derived from the attempt log at check time; it is never
// persisted, so a lockout expires with the window and cannot stick.
type LockoutStatus struct {
	Locked         bool
	Until          *time.Time
	FailedAttempts int
}
