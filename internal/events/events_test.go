package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/accounthub/apiserver/config"
)

type stubBackend struct {
	published []Message
	closed    bool
}

func (b *stubBackend) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	b.published = append(b.published, Message{ID: "msg-1", Data: data, Attributes: attrs})
	return "msg-1", nil
}

func (b *stubBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range b.published {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *stubBackend) Close() error {
	b.closed = true
	return nil
}

func TestBus_PublishEncodesEvent(t *testing.T) {
	backend := &stubBackend{}
	bus := NewBus(backend, "user-events")

	id, err := bus.Publish(context.Background(), UserEvent{
		Type:     TypeUserCreated,
		UserID:   "u1",
		Email:    "alice@example.com",
		Username: "alice",
	})
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("unexpected message id: %q", id)
	}

	if len(backend.published) != 1 {
		t.Fatalf("expected one message, got %d", len(backend.published))
	}
	msg := backend.published[0]
	if msg.Attributes[attrEventType] != TypeUserCreated {
		t.Fatalf("missing event type attribute: %v", msg.Attributes)
	}

	var event UserEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if event.UserID != "u1" || event.Email != "alice@example.com" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be stamped")
	}
}

func TestBus_SubscribeRoundtrip(t *testing.T) {
	backend := &stubBackend{}
	bus := NewBus(backend, "user-events")

	if _, err := bus.Publish(context.Background(), UserEvent{Type: TypeUserDeleted, UserID: "u1"}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	var received []UserEvent
	err := bus.Subscribe(context.Background(), func(_ context.Context, event UserEvent) error {
		received = append(received, event)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if len(received) != 1 || received[0].Type != TypeUserDeleted {
		t.Fatalf("unexpected events: %+v", received)
	}
}

func TestBus_SubscribeDropsMalformedPayloads(t *testing.T) {
	backend := &stubBackend{published: []Message{{ID: "bad", Data: []byte("not-json")}}}
	bus := NewBus(backend, "user-events")

	err := bus.Subscribe(context.Background(), func(context.Context, UserEvent) error {
		t.Fatalf("handler should not be called for malformed payloads")
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
}

func TestNewBusFromConfig(t *testing.T) {
	bus, err := NewBusFromConfig(context.Background(), config.EventsConfig{})
	if err != nil || bus != nil {
		t.Fatalf("empty backend: expected nil bus, got (%v, %v)", bus, err)
	}

	if _, err := NewBusFromConfig(context.Background(), config.EventsConfig{Backend: "kafka"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
