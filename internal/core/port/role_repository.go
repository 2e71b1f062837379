package port

import (
	"context"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// RoleRepository reads role assignments and role records from the directory.
type RoleRepository interface {
	// ListAssignments returns the identity's active role assignments in
	// server order.
	ListAssignments(ctx context.Context, userID string) ([]domain.RoleAssignment, error)
	// GetByIDs returns the active role records for the supplied ids.
	// Missing ids are omitted, not errors.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Role, error)
}
