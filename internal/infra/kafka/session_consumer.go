package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// SessionEventHandler reacts to session lifecycle events from other instances.
type SessionEventHandler interface {
	HandleSessionEvent(ctx context.Context, event domain.SessionEvent) error
}

// SessionConsumer keeps the local session state consistent with events
// produced by other instances sharing the same sessions.
type SessionConsumer struct {
	handler SessionEventHandler
	origin  string
	logger  *zap.Logger
}

// NewSessionConsumer constructs a consumer that forwards foreign session
// events to the handler. Events carrying the consumer's own origin are
// skipped so an instance never re-processes its own publishes.
func NewSessionConsumer(handler SessionEventHandler, origin string, logger *zap.Logger) *SessionConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionConsumer{handler: handler, origin: origin, logger: logger}
}

// HandleMessage decodes a Kafka message prior to processing.
func (c *SessionConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
		Origin    string `json:"origin"`
		UserID    string `json:"user_id"`
		Timestamp string `json:"timestamp"`
		Payload   struct {
			UserID string `json:"user_id"`
			Email  string `json:"email"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode session event: %w", err)
	}

	event := domain.SessionEvent{
		EventID: envelope.EventID,
		Kind:    envelope.EventType,
		Origin:  envelope.Origin,
		UserID:  envelope.UserID,
		Email:   envelope.Payload.Email,
	}
	if event.UserID == "" {
		event.UserID = envelope.Payload.UserID
	}
	event.At = msg.Timestamp

	return c.HandleEvent(ctx, event)
}

// HandleEvent forwards decoded foreign events to the session handler.
func (c *SessionConsumer) HandleEvent(ctx context.Context, event domain.SessionEvent) error {
	if c.handler == nil {
		return nil
	}

	if event.Origin != "" && event.Origin == c.origin {
		c.logger.Debug("skip own session event", zap.String("event_id", event.EventID))
		return nil
	}

	switch event.Kind {
	case domain.SessionSignedIn, domain.SessionSignedOut:
	default:
		c.logger.Debug("skip unknown session event kind", zap.String("event_type", event.Kind))
		return nil
	}

	if err := c.handler.HandleSessionEvent(ctx, event); err != nil {
		return fmt.Errorf("handle session event: %w", err)
	}
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *SessionConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *SessionConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler. Decode failures are
// logged and the offset is committed anyway; a malformed event never wedges
// the partition.
func (c *SessionConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.HandleMessage(session.Context(), msg); err != nil {
			c.logger.Error("session event processing failed",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
			)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

var _ sarama.ConsumerGroupHandler = (*SessionConsumer)(nil)

// RunSessionConsumer joins the consumer group and processes session topics
// until the context is cancelled.
func RunSessionConsumer(ctx context.Context, brokers []string, groupID string, topics []string, consumer *SessionConsumer, logger *zap.Logger) error {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, saramaConfig)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			logger.Error("Kafka consumer group error", zap.Error(err))
		}
	}()

	for {
		if err := group.Consume(ctx, topics, consumer); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consume session events: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
