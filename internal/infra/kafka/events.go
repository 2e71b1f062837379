package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// SessionEventPublisher implements port.SessionEventPublisher using Kafka.
type SessionEventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewSessionEventPublisher constructs a Kafka-backed session event publisher.
func NewSessionEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *SessionEventPublisher {
	return &SessionEventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Origin    string           `json:"origin"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type sessionPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
}

func (p *SessionEventPublisher) publish(ctx context.Context, event domain.SessionEvent) error {
	ts := event.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := event.EventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: event.Kind,
		Origin:    event.Origin,
		UserID:    event.UserID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   sessionPayload{UserID: event.UserID, Email: event.Email},
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(event.Kind),
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSignedIn publishes auth.session.signed_in events.
func (p *SessionEventPublisher) PublishSignedIn(ctx context.Context, event domain.SessionEvent) error {
	event.Kind = domain.SessionSignedIn
	return p.publish(ctx, event)
}

// PublishSignedOut publishes auth.session.signed_out events.
func (p *SessionEventPublisher) PublishSignedOut(ctx context.Context, event domain.SessionEvent) error {
	event.Kind = domain.SessionSignedOut
	return p.publish(ctx, event)
}

var _ port.SessionEventPublisher = (*SessionEventPublisher)(nil)
