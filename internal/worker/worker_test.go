package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/accounthub/apiserver/internal/events"
)

type stubBackend struct {
	published []events.Message
}

func (b *stubBackend) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	b.published = append(b.published, events.Message{Data: data, Attributes: attrs})
	return "msg-1", nil
}

func (b *stubBackend) Subscribe(ctx context.Context, _ string, handler events.Handler) error {
	for _, msg := range b.published {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *stubBackend) Close() error { return nil }

type memObjectStore struct {
	objects map[string][]byte
}

func (s *memObjectStore) EnsureBucket(context.Context) error { return nil }

func (s *memObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *memObjectStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *memObjectStore) Bucket() string { return "test-bucket" }

func TestWorker_DeletesOrphanedAvatar(t *testing.T) {
	backend := &stubBackend{}
	bus := events.NewBus(backend, "user-events")
	objects := &memObjectStore{objects: map[string][]byte{
		"avatars/u1.png": []byte("png-bytes"),
	}}

	_, err := bus.Publish(context.Background(), events.UserEvent{
		Type:      events.TypeUserDeleted,
		UserID:    "u1",
		AvatarURL: "/avatars/u1.png",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := New(bus, objects, zerolog.Nop()).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, ok := objects.objects["avatars/u1.png"]; ok {
		t.Fatalf("avatar object was not deleted")
	}
}

func TestWorker_IgnoresOtherEvents(t *testing.T) {
	backend := &stubBackend{}
	bus := events.NewBus(backend, "user-events")
	objects := &memObjectStore{objects: map[string][]byte{
		"avatars/u1.png": []byte("png-bytes"),
	}}

	for _, eventType := range []string{events.TypeUserCreated, events.TypeUserUpdated, events.TypeUserDeactivated} {
		if _, err := bus.Publish(context.Background(), events.UserEvent{Type: eventType, UserID: "u1"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	if err := New(bus, objects, zerolog.Nop()).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if _, ok := objects.objects["avatars/u1.png"]; !ok {
		t.Fatalf("avatar object should not have been touched")
	}
}

func TestWorker_DeletionWithoutAvatar(t *testing.T) {
	backend := &stubBackend{}
	bus := events.NewBus(backend, "user-events")

	if _, err := bus.Publish(context.Background(), events.UserEvent{Type: events.TypeUserDeleted, UserID: "u1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// No object store configured at all.
	if err := New(bus, nil, zerolog.Nop()).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}
