package usecase

import (
	"sync"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// ActionType enumerates the session store transitions.
type ActionType string

const (
	ActionSetLoading     ActionType = "SET_LOADING"
	ActionSetIdentity    ActionType = "SET_IDENTITY"
	ActionSetProfile     ActionType = "SET_PROFILE"
	ActionSetRoles       ActionType = "SET_ROLES"
	ActionSetPermissions ActionType = "SET_PERMISSIONS"
	ActionSetCurrentRole ActionType = "SET_CURRENT_ROLE"
	ActionSetError       ActionType = "SET_ERROR"
	ActionReset          ActionType = "RESET"
)

// Action describes one session store transition. Only the field matching the
// type is read.
type Action struct {
	Type        ActionType
	Loading     bool
	Identity    *domain.Identity
	Profile     *domain.UserProfile
	Roles       []domain.Role
	Permissions []domain.Permission
	CurrentRole string
	Err         error
}

// Reduce applies an action to a state and returns the next state. It is pure:
// no side effects, inputs are never mutated.
func Reduce(state domain.AuthState, action Action) domain.AuthState {
	next := state
	next.Roles = cloneRoles(state.Roles)
	next.Permissions = clonePermissions(state.Permissions)

	switch action.Type {
	case ActionSetLoading:
		next.IsLoading = action.Loading

	case ActionSetIdentity:
		next.Identity = cloneIdentity(action.Identity)
		next.IsAuthenticated = action.Identity != nil
		if action.Identity == nil {
			next.Profile = nil
			next.Roles = nil
			next.Permissions = nil
			next.CurrentRole = ""
		}

	case ActionSetProfile:
		next.Profile = cloneProfile(action.Profile)

	case ActionSetRoles:
		next.Roles = cloneRoles(action.Roles)
		// Permissions are only ever valid for the role set they were
		// computed from; a role change invalidates them until the
		// resolver recomputes.
		next.Permissions = nil
		if next.CurrentRole != "" && !next.HoldsRole(next.CurrentRole) {
			next.CurrentRole = ""
		}

	case ActionSetPermissions:
		next.Permissions = dedupePermissions(action.Permissions)

	case ActionSetCurrentRole:
		if action.CurrentRole == "" {
			next.CurrentRole = ""
			break
		}
		// A current role outside the held set would violate the
		// aggregate invariant; the transition is a no-op instead.
		if next.HoldsRole(action.CurrentRole) {
			next.CurrentRole = action.CurrentRole
		}

	case ActionSetError:
		next.Err = action.Err
		next.IsLoading = false

	case ActionReset:
		next = domain.AuthState{}
	}

	return next
}

// SessionStore holds the canonical AuthState behind an atomic snapshot.
// Every read observes a complete transition, never a partial one.
type SessionStore struct {
	mu      sync.RWMutex
	state   domain.AuthState
	subs    map[int]chan domain.AuthState
	nextSub int
}

// NewSessionStore constructs a store in the initial loading state.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		state: domain.EmptyAuthState(),
		subs:  make(map[int]chan domain.AuthState),
	}
}

// Dispatch applies the action and notifies subscribers with the new snapshot.
func (s *SessionStore) Dispatch(action Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, action)
	snapshot := s.state
	subs := make([]chan domain.AuthState, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
			// Slow subscribers drop intermediate snapshots; they
			// re-sync on the next dispatch.
		}
	}
}

// State returns a consistent snapshot of the current state.
func (s *SessionStore) State() domain.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state
	snapshot.Identity = cloneIdentity(s.state.Identity)
	snapshot.Profile = cloneProfile(s.state.Profile)
	snapshot.Roles = cloneRoles(s.state.Roles)
	snapshot.Permissions = clonePermissions(s.state.Permissions)
	return snapshot
}

// Subscribe registers for state snapshots. The returned cancel func must be
// called when the consumer goes away.
func (s *SessionStore) Subscribe() (<-chan domain.AuthState, func()) {
	ch := make(chan domain.AuthState, 8)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}

	return ch, cancel
}

func cloneIdentity(identity *domain.Identity) *domain.Identity {
	if identity == nil {
		return nil
	}
	copied := *identity
	return &copied
}

func cloneProfile(profile *domain.UserProfile) *domain.UserProfile {
	if profile == nil {
		return nil
	}
	copied := *profile
	return &copied
}

func cloneRoles(roles []domain.Role) []domain.Role {
	if roles == nil {
		return nil
	}
	copied := make([]domain.Role, len(roles))
	copy(copied, roles)
	return copied
}

func clonePermissions(permissions []domain.Permission) []domain.Permission {
	if permissions == nil {
		return nil
	}
	copied := make([]domain.Permission, len(permissions))
	copy(copied, permissions)
	return copied
}

func dedupePermissions(permissions []domain.Permission) []domain.Permission {
	if permissions == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(permissions))
	result := make([]domain.Permission, 0, len(permissions))
	for _, permission := range permissions {
		if _, ok := seen[permission.ID]; ok {
			continue
		}
		seen[permission.ID] = struct{}{}
		result = append(result, permission)
	}
	return result
}
