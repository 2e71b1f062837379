package port

import (
	"context"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// PermissionRepository reads the permissions granted through roles.
type PermissionRepository interface {
	// ListByRoleIDs returns every permission reachable from the supplied
	// roles. Duplicates across roles may be returned; callers deduplicate.
	ListByRoleIDs(ctx context.Context, roleIDs []string) ([]domain.Permission, error)
}
