package port

import (
	"context"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// SessionEventPublisher broadcasts session lifecycle changes to other
// instances consuming the same sessions.
type SessionEventPublisher interface {
	PublishSignedIn(ctx context.Context, event domain.SessionEvent) error
	PublishSignedOut(ctx context.Context, event domain.SessionEvent) error
}
