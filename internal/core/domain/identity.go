package domain

import "time"

// Identity is the authenticated principal issued by the external identity
// service. The core only caches it for the lifetime of the session.
type Identity struct {
	ID    string
	Email string
}

// UserProfile mirrors the user_profiles directory record. One-to-one with
// Identity; only the resolver and explicit profile updates mutate it.
type UserProfile struct {
	ID          string
	Email       string
	FullName    string
	NIMNIP      *string
	Phone       *string
	AvatarURL   *string
	RoleDefault *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Phase enumerates the session lifecycle states.
type Phase string

const (
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticating  Phase = "authenticating"
	PhaseAuthenticated   Phase = "authenticated"
	PhaseError           Phase = "error"
)

// AuthState is the canonical session aggregate. It is always replaced as a
// whole so readers never observe a partially applied transition.
type AuthState struct {
	Identity        *Identity
	Profile         *UserProfile
	Roles           []Role
	Permissions     []Permission
	CurrentRole     string
	IsAuthenticated bool
	IsLoading       bool
	Err             error
}

// EmptyAuthState returns the state a session starts from at process start,
// before the first session check completes.
func EmptyAuthState() AuthState {
	return AuthState{IsLoading: true}
}

// Phase derives the lifecycle state from the aggregate flags.
func (s AuthState) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseAuthenticating
	case s.IsAuthenticated:
		return PhaseAuthenticated
	case s.Err != nil:
		return PhaseError
	default:
		return PhaseUnauthenticated
	}
}

// RoleCodes returns the codes of the held roles in server order.
func (s AuthState) RoleCodes() []string {
	if len(s.Roles) == 0 {
		return nil
	}
	codes := make([]string, 0, len(s.Roles))
	for _, role := range s.Roles {
		codes = append(codes, role.Code)
	}
	return codes
}

// HoldsRole reports whether the identity holds the supplied role code.
func (s AuthState) HoldsRole(code string) bool {
	for _, role := range s.Roles {
		if role.Code == code {
			return true
		}
	}
	return false
}
