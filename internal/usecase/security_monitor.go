package usecase

import (
	"context"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/logger"
)

// Brute-force policy defaults. The backend enforces its own limits; this
// monitor is an additional client-side heuristic, not a source of truth.
const (
	MaxFailedAttempts  = 5
	AttemptWindow      = 10 * time.Minute
	LockoutDuration    = 15 * time.Minute
	AttemptLogCap      = 50
	SuspicionThreshold = 10
	SuspicionWindow    = time.Minute
)

// SecurityPolicy overrides the lockout constants. Zero values fall back to
// the defaults.
type SecurityPolicy struct {
	MaxFailedAttempts int
	AttemptWindow     time.Duration
	LockoutDuration   time.Duration
}

func (p SecurityPolicy) withDefaults() SecurityPolicy {
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = MaxFailedAttempts
	}
	if p.AttemptWindow <= 0 {
		p.AttemptWindow = AttemptWindow
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = LockoutDuration
	}
	return p
}

// SecurityMonitor tracks login attempts per identifier and computes lockout
// state from a sliding window over the durable attempt log. Lockout is never
// stored as a flag; it is recomputed from (log, now) on every check and so
// expires by itself.
type SecurityMonitor struct {
	attempts port.AttemptStore
	policy   SecurityPolicy
	logger   *zap.Logger
	now      func() time.Time
}

// NewSecurityMonitor constructs a monitor over the attempt store.
func NewSecurityMonitor(attempts port.AttemptStore, policy SecurityPolicy, log *zap.Logger) *SecurityMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &SecurityMonitor{
		attempts: attempts,
		policy:   policy.withDefaults(),
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the monitor clock for deterministic testing.
func (m *SecurityMonitor) WithClock(clock func() time.Time) *SecurityMonitor {
	if clock != nil {
		m.now = clock
	}
	return m
}

// LogAttempt appends an attempt to the durable log.
func (m *SecurityMonitor) LogAttempt(ctx context.Context, identifier string, succeeded bool, failureReason string) error {
	attempt := domain.LoginAttempt{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Succeeded:  succeeded,
		At:         m.now(),
	}
	if failureReason != "" {
		attempt.FailureReason = &failureReason
	}

	if err := m.attempts.Append(ctx, attempt); err != nil {
		return fmt.Errorf("append login attempt: %w", err)
	}

	m.logger.Debug("login attempt logged",
		zap.String("identifier", logger.MaskEmail(identifier)),
		zap.Bool("succeeded", succeeded),
	)

	return nil
}

// CheckLockout recomputes the lockout state for the identifier. Callers must
// check before any credential exchange and reject locked identifiers without
// contacting the backend.
func (m *SecurityMonitor) CheckLockout(ctx context.Context, identifier string) (domain.LockoutStatus, error) {
	attempts, err := m.attempts.List(ctx)
	if err != nil {
		return domain.LockoutStatus{}, fmt.Errorf("list login attempts: %w", err)
	}

	now := m.now()
	cutoff := now.Add(-m.policy.AttemptWindow)

	failed := 0
	for _, attempt := range attempts {
		if attempt.Identifier != identifier || attempt.Succeeded {
			continue
		}
		if attempt.At.After(cutoff) {
			failed++
		}
	}

	status := domain.LockoutStatus{FailedAttempts: failed}
	if failed >= m.policy.MaxFailedAttempts {
		until := now.Add(m.policy.LockoutDuration)
		status.Locked = true
		status.Until = &until

		// Advisory only; CheckLockout never reads this cache.
		if err := m.attempts.CacheLockout(ctx, identifier, until); err != nil {
			m.logger.Warn("cache lockout marker failed",
				zap.String("identifier", logger.MaskEmail(identifier)),
				zap.Error(err),
			)
		}
	}

	return status, nil
}

// ClearAttempts removes failed entries for the identifier so the next window
// starts cleanly after a successful login.
func (m *SecurityMonitor) ClearAttempts(ctx context.Context, identifier string) error {
	if err := m.attempts.ClearFailures(ctx, identifier); err != nil {
		return fmt.Errorf("clear failed attempts: %w", err)
	}
	return nil
}

// DetectSuspiciousActivity flags rapid-fire attempts for the identifier:
// more than SuspicionThreshold attempts, success or failure, inside
// SuspicionWindow. Advisory only, never blocks login.
func (m *SecurityMonitor) DetectSuspiciousActivity(ctx context.Context, identifier string) (bool, error) {
	attempts, err := m.attempts.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list login attempts: %w", err)
	}

	cutoff := m.now().Add(-SuspicionWindow)

	recent := 0
	for _, attempt := range attempts {
		if attempt.Identifier != identifier {
			continue
		}
		if attempt.At.After(cutoff) {
			recent++
		}
	}

	suspicious := recent > SuspicionThreshold
	if suspicious {
		m.logger.Warn("suspicious login activity detected",
			zap.String("identifier", logger.MaskEmail(identifier)),
			zap.Int("attempts_last_minute", recent),
		)
	}

	return suspicious, nil
}
