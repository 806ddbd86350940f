package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/accounthub/apiserver/internal/store"
	"github.com/accounthub/apiserver/types"
)

type memObjectStore struct {
	objects map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
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

func newAvatarFixture(t *testing.T, baseURL string) (*AvatarService, *stubUserRepo, *memObjectStore, types.User) {
	t.Helper()
	repo := newStubUserRepo()
	objects := newMemObjectStore()

	userService := NewUserService(repo, nil, zerolog.Nop())
	user, err := userService.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return NewAvatarService(repo, objects, baseURL), repo, objects, user
}

func TestAvatarService_Upload(t *testing.T) {
	svc, _, objects, user := newAvatarFixture(t, "")

	payload := strings.NewReader("png-bytes")
	updated, err := svc.Upload(context.Background(), user.ID, payload, int64(payload.Len()), "image/png")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	wantURL := "/avatars/" + user.ID + ".png"
	if updated.AvatarURL == nil || *updated.AvatarURL != wantURL {
		t.Fatalf("unexpected avatar url: %v", updated.AvatarURL)
	}
	if string(objects.objects["avatars/"+user.ID+".png"]) != "png-bytes" {
		t.Fatalf("object not stored")
	}
}

func TestAvatarService_Upload_PublicBaseURL(t *testing.T) {
	svc, _, _, user := newAvatarFixture(t, "https://cdn.example.com/")

	payload := strings.NewReader("jpeg-bytes")
	updated, err := svc.Upload(context.Background(), user.ID, payload, int64(payload.Len()), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	wantURL := "https://cdn.example.com/avatars/" + user.ID + ".jpg"
	if updated.AvatarURL == nil || *updated.AvatarURL != wantURL {
		t.Fatalf("unexpected avatar url: %v", updated.AvatarURL)
	}
}

func TestAvatarService_Upload_ReplacesOldObject(t *testing.T) {
	svc, _, objects, user := newAvatarFixture(t, "")

	first := strings.NewReader("png-bytes")
	if _, err := svc.Upload(context.Background(), user.ID, first, int64(first.Len()), "image/png"); err != nil {
		t.Fatalf("first Upload returned error: %v", err)
	}

	second := strings.NewReader("webp-bytes")
	if _, err := svc.Upload(context.Background(), user.ID, second, int64(second.Len()), "image/webp"); err != nil {
		t.Fatalf("second Upload returned error: %v", err)
	}

	if _, ok := objects.objects["avatars/"+user.ID+".png"]; ok {
		t.Fatalf("old avatar object was not removed")
	}
	if _, ok := objects.objects["avatars/"+user.ID+".webp"]; !ok {
		t.Fatalf("new avatar object missing")
	}
}

func TestAvatarService_Upload_UnsupportedType(t *testing.T) {
	svc, _, _, user := newAvatarFixture(t, "")

	payload := strings.NewReader("exe-bytes")
	_, err := svc.Upload(context.Background(), user.ID, payload, int64(payload.Len()), "application/octet-stream")
	if !errors.Is(err, ErrUnsupportedAvatarType) {
		t.Fatalf("expected ErrUnsupportedAvatarType, got %v", err)
	}
}

func TestAvatarService_Upload_UnknownUser(t *testing.T) {
	svc, _, _, _ := newAvatarFixture(t, "")

	payload := strings.NewReader("png-bytes")
	_, err := svc.Upload(context.Background(), "missing", payload, int64(payload.Len()), "image/png")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAvatarService_Open(t *testing.T) {
	svc, _, _, user := newAvatarFixture(t, "")

	if _, _, err := svc.Open(context.Background(), user.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without avatar, got %v", err)
	}

	payload := strings.NewReader("png-bytes")
	if _, err := svc.Upload(context.Background(), user.ID, payload, int64(payload.Len()), "image/png"); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	rc, contentType, err := svc.Open(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer rc.Close()

	if contentType != "image/png" {
		t.Fatalf("unexpected content type: %q", contentType)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read avatar: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected avatar data: %q", data)
	}
}

func TestAvatarService_Remove(t *testing.T) {
	svc, repo, objects, user := newAvatarFixture(t, "")

	// Removing when no avatar exists is a no-op.
	if err := svc.Remove(context.Background(), user.ID); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}

	payload := strings.NewReader("png-bytes")
	if _, err := svc.Upload(context.Background(), user.ID, payload, int64(payload.Len()), "image/png"); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}

	if err := svc.Remove(context.Background(), user.ID); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if repo.users[user.ID].AvatarURL != nil {
		t.Fatalf("avatar url was not cleared")
	}
	if len(objects.objects) != 0 {
		t.Fatalf("avatar object was not deleted")
	}
}

func TestAvatarObjectKey(t *testing.T) {
	cases := []struct {
		url     string
		wantKey string
		wantOK  bool
	}{
		{"/avatars/abc.png", "avatars/abc.png", true},
		{"https://cdn.example.com/avatars/abc.webp", "avatars/abc.webp", true},
		{"", "", false},
		{"/avatars/abc.exe", "", false},
		{"/", "", false},
	}
	for _, tc := range cases {
		key, ok := AvatarObjectKey(tc.url)
		if ok != tc.wantOK || key != tc.wantKey {
			t.Fatalf("AvatarObjectKey(%q) = (%q, %v), want (%q, %v)", tc.url, key, ok, tc.wantKey, tc.wantOK)
		}
	}
}
