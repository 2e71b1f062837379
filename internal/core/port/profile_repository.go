package port

import (
	"context"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// ProfileRepository exposes read and update behaviour for user profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.UserProfile, error)
	Update(ctx context.Context, profile domain.UserProfile) error
}
