package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/accounthub/apiserver/internal/storage"
	"github.com/accounthub/apiserver/internal/store"
	"github.com/accounthub/apiserver/types"
)

const avatarKeyPrefix = "avatars/"

// ErrUnsupportedAvatarType is returned for uploads that are not images the
// service knows how to serve.
var ErrUnsupportedAvatarType = errors.New("unsupported avatar content type")

var avatarExtByType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var avatarTypeByExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// AvatarService stores avatar images in object storage and keeps the
// avatar_url column pointing at the current object.
type AvatarService struct {
	repo          UserRepository
	objects       storage.ObjectStore
	publicBaseURL string
}

// NewAvatarService constructs an AvatarService. publicBaseURL, when set, is
// prefixed onto object keys to form externally reachable avatar URLs;
// otherwise URLs are stored as paths relative to the storage origin.
func NewAvatarService(repo UserRepository, objects storage.ObjectStore, publicBaseURL string) *AvatarService {
	return &AvatarService{
		repo:          repo,
		objects:       objects,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Upload stores a new avatar for the user and updates avatar_url. A previous
// avatar stored under a different key is removed best-effort.
func (s *AvatarService) Upload(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (types.User, error) {
	ext, ok := avatarExtByType[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return types.User{}, fmt.Errorf("%w: %q", ErrUnsupportedAvatarType, contentType)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	key := avatarKeyPrefix + userID + ext
	if err := s.objects.Put(ctx, key, r, size, contentType); err != nil {
		return types.User{}, err
	}

	if user.AvatarURL != nil {
		if oldKey, ok := AvatarObjectKey(*user.AvatarURL); ok && oldKey != key {
			_ = s.objects.Delete(ctx, oldKey)
		}
	}

	url := s.publicURL(key)
	if err := s.repo.SetAvatarURL(ctx, userID, &url); err != nil {
		return types.User{}, err
	}
	return s.repo.GetByID(ctx, userID)
}

// Open returns a reader over the user's current avatar and its content type.
func (s *AvatarService) Open(ctx context.Context, userID string) (io.ReadCloser, string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if user.AvatarURL == nil {
		return nil, "", store.ErrNotFound
	}

	key, ok := AvatarObjectKey(*user.AvatarURL)
	if !ok {
		return nil, "", store.ErrNotFound
	}
	rc, err := s.objects.Get(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return rc, avatarTypeByExt[path.Ext(key)], nil
}

// Remove deletes the user's avatar object and clears avatar_url. Removing an
// absent avatar is a no-op.
func (s *AvatarService) Remove(ctx context.Context, userID string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.AvatarURL == nil {
		return nil
	}

	if key, ok := AvatarObjectKey(*user.AvatarURL); ok {
		_ = s.objects.Delete(ctx, key)
	}
	return s.repo.SetAvatarURL(ctx, userID, nil)
}

func (s *AvatarService) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return "/" + key
}

// AvatarObjectKey recovers the object key from a stored avatar URL. The
// worker uses it to clean up objects after hard deletes.
func AvatarObjectKey(avatarURL string) (string, bool) {
	name := path.Base(avatarURL)
	if name == "." || name == "/" || name == "" {
		return "", false
	}
	if _, ok := avatarTypeByExt[path.Ext(name)]; !ok {
		return "", false
	}
	return avatarKeyPrefix + name, true
}
