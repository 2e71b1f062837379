package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/logger"
	"github.com/arklim/practicum-auth/internal/repository"
)

// Resolution is the outcome of one resolution pass. ProfileErr and
// PermissionErr are non-fatal: the pass commits what succeeded.
type Resolution struct {
	Profile       *domain.UserProfile
	Roles         []domain.Role
	Permissions   []domain.Permission
	CurrentRole   string
	ProfileErr    error
	PermissionErr error
}

// Err returns the first recorded non-fatal error, if any.
func (r Resolution) Err() error {
	if r.ProfileErr != nil {
		return r.ProfileErr
	}
	return r.PermissionErr
}

// ProfileRoleResolver turns an authenticated identity into the profile, role
// and permission state the session runs on.
type ProfileRoleResolver struct {
	profiles    port.ProfileRepository
	roles       port.RoleRepository
	permissions port.PermissionRepository
	logger      *zap.Logger
}

// NewProfileRoleResolver constructs a resolver over the directory ports.
func NewProfileRoleResolver(profiles port.ProfileRepository, roles port.RoleRepository, permissions port.PermissionRepository, log *zap.Logger) *ProfileRoleResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileRoleResolver{
		profiles:    profiles,
		roles:       roles,
		permissions: permissions,
		logger:      log,
	}
}

// Resolve fetches profile, active roles and the permission union for the
// identity. When dispatch is non-nil each piece is committed into the store
// as it lands, in the fixed order profile, roles, permissions, current role.
// Only a role fetch failure is fatal; profile and permission failures are
// recorded on the resolution and the rest still commits.
func (r *ProfileRoleResolver) Resolve(ctx context.Context, identity domain.Identity, dispatch func(Action)) (Resolution, error) {
	if identity.ID == "" {
		return Resolution{}, fmt.Errorf("identity id is required")
	}
	if dispatch == nil {
		dispatch = func(Action) {}
	}

	var res Resolution

	profile, err := r.profiles.GetByID(ctx, identity.ID)
	if err != nil {
		// Identity verification already succeeded; a missing profile
		// degrades the session instead of ending it.
		res.ProfileErr = fmt.Errorf("%w: %v", domain.ErrProfileNotFound, err)
		if errors.Is(err, repository.ErrNotFound) {
			res.ProfileErr = domain.ErrProfileNotFound
		}
		r.logger.Warn("profile resolution failed",
			zap.String("user_id", identity.ID),
			zap.String("email", logger.MaskEmail(identity.Email)),
			zap.Error(err),
		)
	} else {
		res.Profile = profile
	}
	dispatch(Action{Type: ActionSetProfile, Profile: res.Profile})

	roles, err := r.resolveRoles(ctx, identity.ID)
	if err != nil {
		return res, err
	}
	res.Roles = roles
	dispatch(Action{Type: ActionSetRoles, Roles: roles})

	permissions, err := r.PermissionsForRoles(ctx, roleIDs(roles))
	if err != nil {
		res.PermissionErr = fmt.Errorf("%w: %v", domain.ErrPermissionFetch, err)
		r.logger.Warn("permission resolution failed",
			zap.String("user_id", identity.ID),
			zap.Error(err),
		)
		permissions = nil
	}
	res.Permissions = permissions
	dispatch(Action{Type: ActionSetPermissions, Permissions: permissions})

	res.CurrentRole = defaultRole(res.Profile, roles)
	dispatch(Action{Type: ActionSetCurrentRole, CurrentRole: res.CurrentRole})

	return res, nil
}

// PermissionsForRoles returns the deduplicated permission union reachable
// from exactly the supplied roles.
func (r *ProfileRoleResolver) PermissionsForRoles(ctx context.Context, roleIDs []string) ([]domain.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	permissions, err := r.permissions.ListByRoleIDs(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("list permissions by roles: %w", err)
	}

	return dedupePermissions(permissions), nil
}

// UpdateProfile persists profile changes and returns the refreshed record.
func (r *ProfileRoleResolver) UpdateProfile(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	if profile.ID == "" {
		return nil, fmt.Errorf("profile id is required")
	}

	if err := r.profiles.Update(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	updated, err := r.profiles.GetByID(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("reload profile: %w", err)
	}

	return updated, nil
}

func (r *ProfileRoleResolver) resolveRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	assignments, err := r.roles.ListAssignments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		if !assignment.IsActive {
			continue
		}
		ids = append(ids, assignment.RoleID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := r.roles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch roles: %w", err)
	}

	byID := make(map[string]domain.Role, len(records))
	for _, role := range records {
		byID[role.ID] = role
	}

	// Assignments whose role record has drifted away are dropped rather
	// than surfaced as errors.
	roles := make([]domain.Role, 0, len(ids))
	for _, id := range ids {
		role, ok := byID[id]
		if !ok {
			r.logger.Warn("role assignment references missing role",
				zap.String("user_id", userID),
				zap.String("role_id", id),
			)
			continue
		}
		if !role.IsActive {
			continue
		}
		roles = append(roles, role)
	}

	return roles, nil
}

// defaultRole picks the profile's declared default when the identity holds
// it, otherwise the first fetched role, otherwise none.
func defaultRole(profile *domain.UserProfile, roles []domain.Role) string {
	if len(roles) == 0 {
		return ""
	}
	if profile != nil && profile.RoleDefault != nil {
		declared := strings.TrimSpace(*profile.RoleDefault)
		for _, role := range roles {
			if strings.EqualFold(role.Code, declared) {
				return role.Code
			}
		}
	}
	return roles[0].Code
}

func roleIDs(roles []domain.Role) []string {
	if len(roles) == 0 {
		return nil
	}
	ids := make([]string, 0, len(roles))
	for _, role := range roles {
		ids = append(ids, role.ID)
	}
	return ids
}
