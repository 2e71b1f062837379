package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/telemetry"
)

type stubIdentityGateway struct {
	mu            sync.Mutex
	identity      *domain.Identity
	token         string
	exchangeErr   error
	revokeErr     error
	exchangeCalls int
	exchangedWith port.Credentials
	revokeCalls   int
	revokedToken  string
	signUpErr     error
	signedUpWith  port.SignUpInput
}

func (g *stubIdentityGateway) ExchangeCredentials(_ context.Context, creds port.Credentials) (*domain.Identity, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exchangeCalls++
	g.exchangedWith = creds
	if g.exchangeErr != nil {
		return nil, "", g.exchangeErr
	}
	copied := *g.identity
	return &copied, g.token, nil
}

func (g *stubIdentityGateway) Revoke(_ context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.revokeCalls++
	g.revokedToken = token
	return g.revokeErr
}

func (g *stubIdentityGateway) SignUp(_ context.Context, input port.SignUpInput) (*domain.Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signedUpWith = input
	if g.signUpErr != nil {
		return nil, g.signUpErr
	}
	return &domain.Identity{ID: "new-user", Email: input.Email}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (p *recordingPublisher) PublishSignedIn(_ context.Context, event domain.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Kind = domain.SessionSignedIn
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishSignedOut(_ context.Context, event domain.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Kind = domain.SessionSignedOut
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// hookedProfileRepository lets a test interleave work mid-resolution.
type hookedProfileRepository struct {
	inner port.ProfileRepository
	onGet func()
}

func (r *hookedProfileRepository) GetByID(ctx context.Context, id string) (*domain.UserProfile, error) {
	if r.onGet != nil {
		r.onGet()
	}
	return r.inner.GetByID(ctx, id)
}

func (r *hookedProfileRepository) Update(ctx context.Context, profile domain.UserProfile) error {
	return r.inner.Update(ctx, profile)
}

type lifecycleFixture struct {
	manager     *SessionLifecycleManager
	store       *SessionStore
	gateway     *stubIdentityGateway
	publisher   *recordingPublisher
	attempts    *memoryAttemptStore
	profiles    *stubProfileRepository
	roles       *stubRoleRepository
	permissions *stubPermissionRepository
	now         time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	resolver, profiles, roles, permissions := resolverFixture()
	attempts := newMemoryAttemptStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := NewSessionStore()
	monitor := NewSecurityMonitor(attempts, SecurityPolicy{}, nil).WithClock(clock)
	gateway := &stubIdentityGateway{
		identity: &domain.Identity{ID: "u1", Email: "a@x.com"},
		token:    "tok-1",
	}
	publisher := &recordingPublisher{}
	metrics := telemetry.NewAuthMetrics(prometheus.NewRegistry())

	manager := NewSessionLifecycleManager(store, resolver, monitor, gateway, publisher, metrics, nil).
		WithClock(clock)

	return &lifecycleFixture{
		manager:     manager,
		store:       store,
		gateway:     gateway,
		publisher:   publisher,
		attempts:    attempts,
		profiles:    profiles,
		roles:       roles,
		permissions: permissions,
		now:         now,
	}
}

func TestLoginSuccess(t *testing.T) {
	f := newLifecycleFixture(t)

	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if result.Err != nil {
		t.Fatalf("unexpected degraded login: %v", result.Err)
	}

	state := f.store.State()
	if !state.IsAuthenticated || state.IsLoading {
		t.Fatalf("unexpected state flags: %+v", state)
	}
	if state.Identity == nil || state.Identity.ID != "u1" {
		t.Fatalf("unexpected identity: %+v", state.Identity)
	}
	if state.Profile == nil || state.Profile.FullName != "Ayu" {
		t.Fatalf("unexpected profile: %+v", state.Profile)
	}
	if len(state.Roles) != 2 || len(state.Permissions) != 3 {
		t.Fatalf("unexpected authorization state: roles=%d permissions=%d", len(state.Roles), len(state.Permissions))
	}
	if state.CurrentRole != domain.RoleDosen {
		t.Fatalf("unexpected current role: %q", state.CurrentRole)
	}

	kinds := f.publisher.kinds()
	if len(kinds) != 1 || kinds[0] != domain.SessionSignedIn {
		t.Fatalf("unexpected published events: %v", kinds)
	}
	if f.publisher.events[0].Origin != f.manager.InstanceID() {
		t.Fatal("published event must carry the instance origin")
	}

	attempts, _ := f.attempts.List(context.Background())
	if len(attempts) != 1 || !attempts[0].Succeeded {
		t.Fatalf("expected one successful attempt logged, got %+v", attempts)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	f := newLifecycleFixture(t)

	result := f.manager.Login(context.Background(), port.Credentials{Email: "  A@X.com ", Password: "secret"})
	if !result.Success {
		t.Fatalf("expected success, got %v", result.Err)
	}
	if f.gateway.exchangedWith.Email != "a@x.com" {
		t.Fatalf("expected normalized email, got %q", f.gateway.exchangedWith.Email)
	}
}

func TestLoginRejectsEmptyCredentials(t *testing.T) {
	f := newLifecycleFixture(t)

	result := f.manager.Login(context.Background(), port.Credentials{Email: " ", Password: "x"})
	if result.Success || !errors.Is(result.Err, domain.ErrInvalidCredentials) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if f.gateway.exchangeCalls != 0 {
		t.Fatal("gateway must not be called without credentials")
	}
}

func TestLoginRejectsLockedIdentifier(t *testing.T) {
	f := newLifecycleFixture(t)
	seedFailures(f.attempts, "a@x.com", 5, f.now.Add(-time.Minute))

	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	if result.Success {
		t.Fatal("expected rejection")
	}

	var lockErr *domain.LockoutError
	if !errors.As(result.Err, &lockErr) {
		t.Fatalf("expected LockoutError, got %v", result.Err)
	}
	if lockErr.FailedAttempts != 5 {
		t.Fatalf("unexpected failure count: %d", lockErr.FailedAttempts)
	}
	if lockErr.RetryAfter() != LockoutDuration {
		t.Fatalf("unexpected retry-after: %v", lockErr.RetryAfter())
	}

	if f.gateway.exchangeCalls != 0 {
		t.Fatal("locked identifier must never reach the credential exchange")
	}

	attempts, _ := f.attempts.List(context.Background())
	if len(attempts) != 6 {
		t.Fatalf("rejected call must still be logged, got %d attempts", len(attempts))
	}
	if attempts[0].FailureReason == nil || *attempts[0].FailureReason != "locked_out" {
		t.Fatalf("unexpected failure reason: %v", attempts[0].FailureReason)
	}

	state := f.store.State()
	if state.IsAuthenticated || state.Err == nil {
		t.Fatalf("expected error state, got %+v", state)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newLifecycleFixture(t)
	f.gateway.exchangeErr = domain.ErrInvalidCredentials

	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "wrong"})
	if result.Success || !errors.Is(result.Err, domain.ErrInvalidCredentials) {
		t.Fatalf("unexpected result: %+v", result)
	}

	attempts, _ := f.attempts.List(context.Background())
	if len(attempts) != 1 || attempts[0].Succeeded {
		t.Fatalf("expected one failed attempt, got %+v", attempts)
	}
	if *attempts[0].FailureReason != "invalid_credentials" {
		t.Fatalf("unexpected reason: %q", *attempts[0].FailureReason)
	}

	state := f.store.State()
	if state.IsAuthenticated || !errors.Is(state.Err, domain.ErrInvalidCredentials) {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestLoginNetworkFailureKeepsTaxonomy(t *testing.T) {
	f := newLifecycleFixture(t)
	f.gateway.exchangeErr = domain.ErrNetwork

	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	if result.Success || !errors.Is(result.Err, domain.ErrNetwork) {
		t.Fatalf("unexpected result: %+v", result)
	}

	attempts, _ := f.attempts.List(context.Background())
	if *attempts[0].FailureReason != "network_error" {
		t.Fatalf("unexpected reason: %q", *attempts[0].FailureReason)
	}
}

func TestFifthFailureLocksTheNextCall(t *testing.T) {
	f := newLifecycleFixture(t)
	f.gateway.exchangeErr = domain.ErrInvalidCredentials
	seedFailures(f.attempts, "a@x.com", 4, f.now.Add(-time.Minute))

	// The fifth failure goes through the gateway.
	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "wrong"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if f.gateway.exchangeCalls != 1 {
		t.Fatalf("expected exactly one exchange, got %d", f.gateway.exchangeCalls)
	}

	// The sixth call is rejected before any exchange.
	result = f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "wrong"})
	var lockErr *domain.LockoutError
	if !errors.As(result.Err, &lockErr) {
		t.Fatalf("expected LockoutError, got %v", result.Err)
	}
	if f.gateway.exchangeCalls != 1 {
		t.Fatalf("locked call must not exchange, got %d calls", f.gateway.exchangeCalls)
	}
}

func TestLoginSucceedsAfterWindowExpires(t *testing.T) {
	f := newLifecycleFixture(t)
	seedFailures(f.attempts, "a@x.com", 5, f.now.Add(-16*time.Minute))

	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	if !result.Success {
		t.Fatalf("failures outside the window must not block: %v", result.Err)
	}
}

func TestLoginMissingProfileDegrades(t *testing.T) {
	f := newLifecycleFixture(t)
	f.profiles.profile = nil

	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	if !result.Success {
		t.Fatalf("missing profile must not fail the login: %v", result.Err)
	}
	if !errors.Is(result.Err, domain.ErrProfileNotFound) {
		t.Fatalf("expected non-fatal ErrProfileNotFound, got %v", result.Err)
	}

	state := f.store.State()
	if !state.IsAuthenticated || state.Profile != nil {
		t.Fatalf("unexpected state: %+v", state)
	}
	if len(state.Roles) != 2 {
		t.Fatal("roles must still resolve without a profile")
	}
}

func TestLogoutAlwaysResetsLocally(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})

	f.gateway.revokeErr = errors.New("backend down")
	f.manager.Logout(context.Background())

	if f.gateway.revokeCalls != 1 || f.gateway.revokedToken != "tok-1" {
		t.Fatalf("expected revoke of the session token, got calls=%d token=%q", f.gateway.revokeCalls, f.gateway.revokedToken)
	}

	state := f.store.State()
	if state.IsAuthenticated || state.Identity != nil || state.Roles != nil || state.IsLoading {
		t.Fatalf("revoke failure must still reset locally: %+v", state)
	}

	kinds := f.publisher.kinds()
	if len(kinds) != 2 || kinds[1] != domain.SessionSignedOut {
		t.Fatalf("unexpected published events: %v", kinds)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newLifecycleFixture(t)

	f.manager.Logout(context.Background())

	if f.gateway.revokeCalls != 0 {
		t.Fatal("no token, no revoke")
	}
	if len(f.publisher.kinds()) != 0 {
		t.Fatal("no session, no signed-out event")
	}
	if state := f.store.State(); state.IsAuthenticated || state.IsLoading {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestSwitchRoleNarrowsPermissions(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})

	if err := f.manager.SwitchRole(context.Background(), "laboran"); err != nil {
		t.Fatalf("SwitchRole: %v", err)
	}

	state := f.store.State()
	if state.CurrentRole != domain.RoleLaboran {
		t.Fatalf("unexpected current role: %q", state.CurrentRole)
	}
	// Only LABORAN's permissions remain: p1 and p3.
	if len(state.Permissions) != 2 {
		t.Fatalf("expected narrowed permission set, got %+v", state.Permissions)
	}
	for _, p := range state.Permissions {
		if p.ID != "p1" && p.ID != "p3" {
			t.Fatalf("unexpected permission %q after switch", p.ID)
		}
	}
}

func TestSwitchRoleRejectsUnheldRole(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	before := f.store.State()

	err := f.manager.SwitchRole(context.Background(), domain.RoleAdmin)
	if !errors.Is(err, domain.ErrRoleNotHeld) {
		t.Fatalf("expected ErrRoleNotHeld, got %v", err)
	}

	after := f.store.State()
	if after.CurrentRole != before.CurrentRole || len(after.Permissions) != len(before.Permissions) {
		t.Fatal("rejected switch must not change state")
	}
}

func TestSwitchRoleRequiresAuthentication(t *testing.T) {
	f := newLifecycleFixture(t)

	if err := f.manager.SwitchRole(context.Background(), domain.RoleDosen); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSwitchRolePermissionFailureKeepsSwitch(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	f.permissions.err = errors.New("db down")

	if err := f.manager.SwitchRole(context.Background(), domain.RoleLaboran); err != nil {
		t.Fatalf("permission failure must not fail the switch: %v", err)
	}

	state := f.store.State()
	if state.CurrentRole != domain.RoleLaboran {
		t.Fatalf("expected switch kept, got %q", state.CurrentRole)
	}
	if len(state.Permissions) != 0 {
		t.Fatalf("expected empty permission set, got %+v", state.Permissions)
	}
	if !errors.Is(state.Err, domain.ErrPermissionFetch) {
		t.Fatalf("expected recorded ErrPermissionFetch, got %v", state.Err)
	}
}

func TestStaleResolutionPassIsDiscarded(t *testing.T) {
	f := newLifecycleFixture(t)

	// Logout fires while the login's resolution pass is mid-flight; the
	// pass's remaining dispatches must not resurrect the session.
	hooked := &hookedProfileRepository{inner: f.profiles}
	fired := false
	hooked.onGet = func() {
		if !fired {
			fired = true
			f.manager.Logout(context.Background())
		}
	}
	f.manager.resolver = NewProfileRoleResolver(hooked, f.roles, f.permissions, nil)

	result := f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})
	if !result.Success {
		t.Fatalf("exchange succeeded, result must report success: %v", result.Err)
	}

	state := f.store.State()
	if state.IsAuthenticated || state.Identity != nil || state.Roles != nil {
		t.Fatalf("stale pass leaked into state: %+v", state)
	}

	// The superseded login must not have stored its token either.
	f.gateway.revokeCalls = 0
	f.manager.Logout(context.Background())
	if f.gateway.revokedToken == "tok-1" {
		t.Fatal("stale token must not be retained")
	}
}

func TestRefreshReResolves(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})

	f.profiles.profile.FullName = "Ayu Lestari"
	if err := f.manager.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	state := f.store.State()
	if state.Profile == nil || state.Profile.FullName != "Ayu Lestari" {
		t.Fatalf("expected refreshed profile, got %+v", state.Profile)
	}
	if state.IsLoading {
		t.Fatal("refresh must clear loading")
	}
}

func TestRefreshRequiresAuthentication(t *testing.T) {
	f := newLifecycleFixture(t)

	if err := f.manager.Refresh(context.Background()); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestSignUpRejectsWeakPassword(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.manager.SignUp(context.Background(), port.SignUpInput{
		Email:    "b@x.com",
		Password: "12345678",
		FullName: "Budi",
	})
	if !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if f.gateway.signedUpWith.Email != "" {
		t.Fatal("weak password must not reach the gateway")
	}
}

func TestSignUpNormalizesAndCreates(t *testing.T) {
	f := newLifecycleFixture(t)

	identity, err := f.manager.SignUp(context.Background(), port.SignUpInput{
		Email:    " B@X.com ",
		Password: "k3dip-Lampu!Praktikum26",
		FullName: "Budi",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if identity.ID != "new-user" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if f.gateway.signedUpWith.Email != "b@x.com" {
		t.Fatalf("expected normalized email, got %q", f.gateway.signedUpWith.Email)
	}

	if state := f.store.State(); state.IsAuthenticated {
		t.Fatal("sign-up must not authenticate")
	}
}

func TestHandleSessionEventSignedOut(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})

	err := f.manager.HandleSessionEvent(context.Background(), domain.SessionEvent{
		EventID: "evt-1",
		Kind:    domain.SessionSignedOut,
		Origin:  "other-instance",
		UserID:  "u1",
	})
	if err != nil {
		t.Fatalf("HandleSessionEvent: %v", err)
	}

	state := f.store.State()
	if state.IsAuthenticated || state.Identity != nil {
		t.Fatalf("expected reset state, got %+v", state)
	}

	// Token was cleared, so a later logout has nothing to revoke.
	f.manager.Logout(context.Background())
	if f.gateway.revokeCalls != 0 {
		t.Fatal("token must be cleared by the foreign sign-out")
	}
}

func TestHandleSessionEventSignedInAdoptsIdentity(t *testing.T) {
	f := newLifecycleFixture(t)

	err := f.manager.HandleSessionEvent(context.Background(), domain.SessionEvent{
		EventID: "evt-1",
		Kind:    domain.SessionSignedIn,
		Origin:  "other-instance",
		UserID:  "u1",
		Email:   "a@x.com",
	})
	if err != nil {
		t.Fatalf("HandleSessionEvent: %v", err)
	}

	state := f.store.State()
	if !state.IsAuthenticated || state.Identity == nil || state.Identity.ID != "u1" {
		t.Fatalf("expected adopted session, got %+v", state)
	}
	if len(state.Roles) != 2 {
		t.Fatal("expected full resolution for the adopted identity")
	}
}

func TestHandleSessionEventIdentityMismatchResets(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})

	err := f.manager.HandleSessionEvent(context.Background(), domain.SessionEvent{
		EventID: "evt-1",
		Kind:    domain.SessionSignedIn,
		Origin:  "other-instance",
		UserID:  "u2",
		Email:   "b@x.com",
	})
	if err != nil {
		t.Fatalf("HandleSessionEvent: %v", err)
	}

	state := f.store.State()
	if state.Identity == nil || state.Identity.ID != "u2" {
		t.Fatalf("expected the reported identity adopted after reset, got %+v", state.Identity)
	}
}

func TestHandleSessionEventSkipsOwnOrigin(t *testing.T) {
	f := newLifecycleFixture(t)
	f.manager.Login(context.Background(), port.Credentials{Email: "a@x.com", Password: "secret"})

	err := f.manager.HandleSessionEvent(context.Background(), domain.SessionEvent{
		EventID: "evt-1",
		Kind:    domain.SessionSignedOut,
		Origin:  f.manager.InstanceID(),
		UserID:  "u1",
	})
	if err != nil {
		t.Fatalf("HandleSessionEvent: %v", err)
	}

	if state := f.store.State(); !state.IsAuthenticated {
		t.Fatal("own events must be ignored")
	}
}
