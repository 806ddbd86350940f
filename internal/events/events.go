package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/accounthub/apiserver/config"
)

// User lifecycle event types published to the broker.
const (
	TypeUserCreated     = "user.created"
	TypeUserUpdated     = "user.updated"
	TypeUserDeactivated = "user.deactivated"
	TypeUserReactivated = "user.reactivated"
	TypeUserDeleted     = "user.deleted"
)

// Attribute key carrying the event type, so subscribers can route without
// decoding the payload.
const attrEventType = "event_type"

// UserEvent describes a change to a user record.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Username   string    `json:"username,omitempty"`
	AvatarURL  string    `json:"avatar_url,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a raw message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the bus.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Bus publishes and consumes user lifecycle events on a fixed topic.
type Bus struct {
	backend Backend
	topic   string
}

// NewBus constructs a Bus over the provided backend and topic.
func NewBus(backend Backend, topic string) *Bus {
	return &Bus{backend: backend, topic: topic}
}

// Publish encodes the event as JSON and sends it to the configured topic.
func (b *Bus) Publish(ctx context.Context, event UserEvent) (string, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return b.backend.Publish(ctx, b.topic, data, map[string]string{attrEventType: event.Type})
}

// Subscribe consumes events from the configured topic, decoding each payload
// before handing it to fn. A decode failure is acked and dropped; redelivery
// cannot fix a malformed payload.
func (b *Bus) Subscribe(ctx context.Context, fn func(ctx context.Context, event UserEvent) error) error {
	return b.backend.Subscribe(ctx, b.topic, func(ctx context.Context, msg Message) error {
		var event UserEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}

// NewBusFromConfig builds a Bus for the configured backend. An empty backend
// disables events: the returned bus is nil, which publishers must tolerate.
func NewBusFromConfig(ctx context.Context, cfg config.EventsConfig) (*Bus, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "pubsub":
		backend, err := NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return NewBus(backend, cfg.Topic), nil
	case "rabbitmq":
		backend, err := NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return NewBus(backend, cfg.Topic), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
