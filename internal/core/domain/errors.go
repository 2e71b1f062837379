package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetwork indicates the identity service could not be reached.
	ErrNetwork = errors.New("identity service unreachable")
	// ErrProfileNotFound indicates the identity is valid but no profile record exists.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrPermissionFetch indicates roles resolved but the permission fetch failed.
	ErrPermissionFetch = errors.New("permission fetch failed")
	// ErrInconsistentState indicates the cached identity and the backend-reported
	// identity disagree; the session must reset rather than reconcile.
	ErrInconsistentState = errors.New("inconsistent session state")
	// ErrNotAuthenticated indicates the operation requires an authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrRoleNotHeld indicates a role switch to a role the identity does not hold.
	ErrRoleNotHeld = errors.New("role not held by identity")
	// ErrWeakPassword indicates the password failed the local strength gate.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
)

// LockoutError rejects a login attempt while the identifier is locked out.
type LockoutError struct {
	Until          time.Time
	FailedAttempts int
	// Now is the check time; kept so the human-readable message reflects
	// the clock the lockout was computed against.
	Now time.Time
}

// Error reports the remaining cooldown in whole minutes, rounded up.
func (e *LockoutError) Error() string {
	remaining := e.Until.Sub(e.Now)
	if remaining < 0 {
		remaining = 0
	}
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return fmt.Sprintf("too many failed login attempts, try again in %d minute(s)", minutes)
}

// RetryAfter returns the remaining cooldown duration.
func (e *LockoutError) RetryAfter() time.Duration {
	remaining := e.Until.Sub(e.Now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
