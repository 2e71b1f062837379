package port

import (
	"context"
	"time"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// AttemptStore persists the login attempt log in durable storage. The log is
// newest-first and capped; concurrent writers race benignly because every
// write is a read-modify-write of the same capped list.
type AttemptStore interface {
	// Append prepends the attempt and truncates the log to its cap.
	Append(ctx context.Context, attempt domain.LoginAttempt) error
	// List returns the full log, newest first.
	List(ctx context.Context) ([]domain.LoginAttempt, error)
	// ClearFailures removes failed entries for the identifier so a fresh
	// window starts after a successful login.
	ClearFailures(ctx context.Context, identifier string) error
	// CacheLockout records an advisory lockout marker with a TTL. It is
	// never consulted to decide a lockout.
	CacheLockout(ctx context.Context, identifier string, until time.Time) error
}
