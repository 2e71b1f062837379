package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/logger"
	"github.com/arklim/practicum-auth/internal/infra/security"
	"github.com/arklim/practicum-auth/internal/infra/telemetry"
)

// LoginResult reports the outcome of a login call. Err carries the taxonomy
// error when Success is false, or a non-fatal resolution error when the
// session authenticated in a degraded state.
type LoginResult struct {
	Success bool
	Err     error
}

// SessionLifecycleManager orchestrates login, logout, role switching and
// session refresh across the store, resolver, monitor and identity gateway.
type SessionLifecycleManager struct {
	store      *SessionStore
	resolver   *ProfileRoleResolver
	monitor    *SecurityMonitor
	gateway    port.IdentityGateway
	events     port.SessionEventPublisher
	metrics    *telemetry.AuthMetrics
	logger     *zap.Logger
	instanceID string

	// gen is bumped by every login, logout and foreign session event.
	// Dispatches from a resolution pass only land while its generation is
	// still current; a stale pass completing out of order becomes a no-op.
	gen atomic.Uint64

	mu    sync.Mutex
	token string
	now   func() time.Time
}

// NewSessionLifecycleManager wires the lifecycle manager.
func NewSessionLifecycleManager(
	store *SessionStore,
	resolver *ProfileRoleResolver,
	monitor *SecurityMonitor,
	gateway port.IdentityGateway,
	events port.SessionEventPublisher,
	metrics *telemetry.AuthMetrics,
	log *zap.Logger,
) *SessionLifecycleManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionLifecycleManager{
		store:      store,
		resolver:   resolver,
		monitor:    monitor,
		gateway:    gateway,
		events:     events,
		metrics:    metrics,
		logger:     log,
		instanceID: uuid.NewString(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the manager clock for deterministic testing.
func (l *SessionLifecycleManager) WithClock(clock func() time.Time) *SessionLifecycleManager {
	if clock != nil {
		l.now = clock
	}
	return l
}

// InstanceID identifies this manager on the session event bus.
func (l *SessionLifecycleManager) InstanceID() string {
	return l.instanceID
}

// Store exposes the session store for consumers needing snapshots or
// subscriptions.
func (l *SessionLifecycleManager) Store() *SessionStore {
	return l.store
}

// Login exchanges credentials with the identity service and resolves the
// session. A locked identifier is rejected before any credential exchange.
func (l *SessionLifecycleManager) Login(ctx context.Context, creds port.Credentials) LoginResult {
	identifier := strings.ToLower(strings.TrimSpace(creds.Email))
	if identifier == "" || creds.Password == "" {
		return LoginResult{Err: domain.ErrInvalidCredentials}
	}
	creds.Email = identifier

	gen := l.gen.Add(1)
	dispatch := l.gatedDispatch(gen)

	dispatch(Action{Type: ActionSetLoading, Loading: true})
	dispatch(Action{Type: ActionSetError})

	status, err := l.monitor.CheckLockout(ctx, identifier)
	if err != nil {
		// The monitor is a heuristic; an unreadable log must not block
		// legitimate logins.
		l.logger.Warn("lockout check failed, proceeding", zap.Error(err))
	}
	if status.Locked {
		lockErr := &domain.LockoutError{
			Until:          *status.Until,
			FailedAttempts: status.FailedAttempts,
			Now:            l.now(),
		}
		if err := l.monitor.LogAttempt(ctx, identifier, false, "locked_out"); err != nil {
			l.logger.Warn("log locked attempt failed", zap.Error(err))
		}
		l.metrics.ObserveLogin("locked_out")
		if l.metrics != nil {
			l.metrics.LockoutRejections.Inc()
		}
		dispatch(Action{Type: ActionSetError, Err: lockErr})
		return LoginResult{Err: lockErr}
	}

	if suspicious, err := l.monitor.DetectSuspiciousActivity(ctx, identifier); err == nil && suspicious {
		if l.metrics != nil {
			l.metrics.SuspiciousActivity.Inc()
		}
	}

	identity, token, err := l.gateway.ExchangeCredentials(ctx, creds)
	if err != nil {
		return l.failLogin(ctx, identifier, err, dispatch)
	}

	if err := l.monitor.LogAttempt(ctx, identifier, true, ""); err != nil {
		l.logger.Warn("log successful attempt failed", zap.Error(err))
	}
	if err := l.monitor.ClearAttempts(ctx, identifier); err != nil {
		l.logger.Warn("clear failed attempts failed", zap.Error(err))
	}

	dispatch(Action{Type: ActionSetIdentity, Identity: identity})

	res, resolveErr := l.resolver.Resolve(ctx, *identity, dispatch)
	nonFatal := res.Err()
	if resolveErr != nil {
		// Identity verification already succeeded; a failed directory
		// read degrades the session instead of ending it.
		nonFatal = fmt.Errorf("%w: %v", domain.ErrPermissionFetch, resolveErr)
		l.logger.Error("session resolution failed",
			zap.String("user_id", identity.ID),
			zap.Error(resolveErr),
		)
	}
	if nonFatal != nil {
		dispatch(Action{Type: ActionSetError, Err: nonFatal})
	}

	if l.gen.Load() == gen {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}

	dispatch(Action{Type: ActionSetLoading, Loading: false})

	l.metrics.ObserveLogin("success")
	l.publish(ctx, gen, domain.SessionSignedIn, identity.ID, identity.Email)

	l.logger.Info("login succeeded",
		zap.String("user_id", identity.ID),
		zap.String("email", logger.MaskEmail(identity.Email)),
	)

	return LoginResult{Success: true, Err: nonFatal}
}

// Logout revokes the backend session and unconditionally resets local state.
// The local reset happens even when the remote revoke fails so the client
// can never stay stuck logged in.
func (l *SessionLifecycleManager) Logout(ctx context.Context) {
	l.gen.Add(1)

	state := l.store.State()

	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token != "" {
		if err := l.gateway.Revoke(ctx, token); err != nil {
			l.logger.Warn("remote session revoke failed, resetting locally", zap.Error(err))
		}
	}

	l.store.Dispatch(Action{Type: ActionReset})

	if state.Identity != nil {
		l.publish(ctx, l.gen.Load(), domain.SessionSignedOut, state.Identity.ID, state.Identity.Email)
	}

	l.logger.Info("logged out")
}

// SwitchRole changes the active role to one of the identity's held roles and
// narrows the effective permission set to exactly that role. A permission
// fetch failure leaves the switch in place with an empty set and records a
// non-fatal error on the state.
func (l *SessionLifecycleManager) SwitchRole(ctx context.Context, roleCode string) error {
	state := l.store.State()
	if !state.IsAuthenticated {
		return domain.ErrNotAuthenticated
	}

	var target *domain.Role
	for i, role := range state.Roles {
		if strings.EqualFold(role.Code, roleCode) {
			target = &state.Roles[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", domain.ErrRoleNotHeld, roleCode)
	}

	gen := l.gen.Load()
	dispatch := l.gatedDispatch(gen)

	dispatch(Action{Type: ActionSetCurrentRole, CurrentRole: target.Code})

	permissions, err := l.resolver.PermissionsForRoles(ctx, []string{target.ID})
	if err != nil {
		dispatch(Action{Type: ActionSetPermissions})
		dispatch(Action{Type: ActionSetError, Err: fmt.Errorf("%w: %v", domain.ErrPermissionFetch, err)})
	} else {
		dispatch(Action{Type: ActionSetPermissions, Permissions: permissions})
	}

	if l.metrics != nil {
		l.metrics.RoleSwitches.Inc()
	}

	l.logger.Info("switched role",
		zap.String("user_id", state.Identity.ID),
		zap.String("role", target.Code),
	)

	return nil
}

// Refresh re-runs the resolution pass for the current identity, picking up
// profile, role and permission changes.
func (l *SessionLifecycleManager) Refresh(ctx context.Context) error {
	state := l.store.State()
	if !state.IsAuthenticated || state.Identity == nil {
		return domain.ErrNotAuthenticated
	}

	gen := l.gen.Load()
	dispatch := l.gatedDispatch(gen)

	dispatch(Action{Type: ActionSetLoading, Loading: true})
	_, err := l.resolver.Resolve(ctx, *state.Identity, dispatch)
	dispatch(Action{Type: ActionSetLoading, Loading: false})

	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

// SignUp creates an account through the identity service after the local
// password strength gate passes. It does not authenticate the new account.
func (l *SessionLifecycleManager) SignUp(ctx context.Context, input port.SignUpInput) (*domain.Identity, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" {
		return nil, fmt.Errorf("email is required")
	}

	if err := security.ValidatePasswordStrength(input.Password, input.Email, input.FullName); err != nil {
		return nil, err
	}

	identity, err := l.gateway.SignUp(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	l.logger.Info("account created",
		zap.String("user_id", identity.ID),
		zap.String("email", logger.MaskEmail(identity.Email)),
	)

	return identity, nil
}

// HandleSessionEvent applies a session event from another instance. Signed-in
// events drive the same resolution path as login; signed-out events drive
// the same reset path as logout.
func (l *SessionLifecycleManager) HandleSessionEvent(ctx context.Context, event domain.SessionEvent) error {
	if event.Origin == l.instanceID {
		return nil
	}

	switch event.Kind {
	case domain.SessionSignedIn:
		state := l.store.State()
		if state.IsAuthenticated && state.Identity != nil && state.Identity.ID != event.UserID {
			// Cached identity and backend-reported identity disagree.
			// Reconciliation is unsafe; reset and adopt the reported one.
			l.logger.Warn("session identity mismatch, resetting",
				zap.String("cached_user_id", state.Identity.ID),
				zap.String("event_user_id", event.UserID),
				zap.Error(domain.ErrInconsistentState),
			)
			l.gen.Add(1)
			l.store.Dispatch(Action{Type: ActionReset})
		}

		gen := l.gen.Add(1)
		dispatch := l.gatedDispatch(gen)

		identity := &domain.Identity{ID: event.UserID, Email: event.Email}
		dispatch(Action{Type: ActionSetLoading, Loading: true})
		dispatch(Action{Type: ActionSetIdentity, Identity: identity})
		if _, err := l.resolver.Resolve(ctx, *identity, dispatch); err != nil {
			dispatch(Action{Type: ActionSetLoading, Loading: false})
			return fmt.Errorf("resolve session event: %w", err)
		}
		dispatch(Action{Type: ActionSetLoading, Loading: false})

		if l.metrics != nil {
			l.metrics.SessionEvents.WithLabelValues("signed_in").Inc()
		}

	case domain.SessionSignedOut:
		l.gen.Add(1)
		l.mu.Lock()
		l.token = ""
		l.mu.Unlock()
		l.store.Dispatch(Action{Type: ActionReset})

		if l.metrics != nil {
			l.metrics.SessionEvents.WithLabelValues("signed_out").Inc()
		}

	default:
		l.logger.Debug("ignoring unknown session event", zap.String("kind", event.Kind))
	}

	return nil
}

func (l *SessionLifecycleManager) failLogin(ctx context.Context, identifier string, cause error, dispatch func(Action)) LoginResult {
	reason := "invalid_credentials"
	outcome := "invalid_credentials"
	resultErr := cause
	switch {
	case errors.Is(cause, domain.ErrNetwork):
		reason = "network_error"
		outcome = "error"
	case errors.Is(cause, domain.ErrInvalidCredentials):
		resultErr = domain.ErrInvalidCredentials
	default:
		reason = "backend_error"
		outcome = "error"
	}

	if err := l.monitor.LogAttempt(ctx, identifier, false, reason); err != nil {
		l.logger.Warn("log failed attempt failed", zap.Error(err))
	}

	// Re-check so the attempt just logged is reflected in the advisory
	// cache and the next call sees the updated count.
	if status, err := l.monitor.CheckLockout(ctx, identifier); err == nil && status.Locked {
		l.logger.Info("identifier locked out",
			zap.String("identifier", logger.MaskEmail(identifier)),
			zap.Int("failed_attempts", status.FailedAttempts),
		)
	}

	l.metrics.ObserveLogin(outcome)

	dispatch(Action{Type: ActionSetError, Err: resultErr})

	return LoginResult{Err: resultErr}
}

func (l *SessionLifecycleManager) publish(ctx context.Context, gen uint64, kind, userID, email string) {
	if l.events == nil || l.gen.Load() != gen {
		return
	}

	event := domain.SessionEvent{
		EventID: uuid.NewString(),
		Kind:    kind,
		Origin:  l.instanceID,
		UserID:  userID,
		Email:   email,
		At:      l.now(),
	}

	var err error
	switch kind {
	case domain.SessionSignedIn:
		err = l.events.PublishSignedIn(ctx, event)
	case domain.SessionSignedOut:
		err = l.events.PublishSignedOut(ctx, event)
	}
	if err != nil {
		l.logger.Warn("publish session event failed",
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

// gatedDispatch returns a dispatch that only lands while the supplied
// generation is still current, discarding effects of superseded passes.
func (l *SessionLifecycleManager) gatedDispatch(gen uint64) func(Action) {
	return func(action Action) {
		if l.gen.Load() != gen {
			return
		}
		l.store.Dispatch(action)
	}
}
