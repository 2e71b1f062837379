package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(event domain.SessionEvent) {
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", event.Kind),
		zap.String("origin", event.Origin),
		zap.String("user_id", event.UserID),
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.Time("timestamp", at.UTC()),
	)
}

// PublishSignedIn logs auth.session.signed_in events.
func (p *StubPublisher) PublishSignedIn(_ context.Context, event domain.SessionEvent) error {
	event.Kind = domain.SessionSignedIn
	p.logEvent(event)
	return nil
}

// PublishSignedOut logs auth.session.signed_out events.
func (p *StubPublisher) PublishSignedOut(_ context.Context, event domain.SessionEvent) error {
	event.Kind = domain.SessionSignedOut
	p.logEvent(event)
	return nil
}

var _ port.SessionEventPublisher = (*StubPublisher)(nil)
