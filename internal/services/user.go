package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/accounthub/apiserver/internal/events"
	"github.com/accounthub/apiserver/internal/store"
	"github.com/accounthub/apiserver/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ErrInvalidInput wraps payload validation failures.
var ErrInvalidInput = errors.New("invalid input")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context, active *bool, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, id string, firstName, lastName *string) (types.User, error)
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	SetAvatarURL(ctx context.Context, id string, avatarURL *string) error
	SetActive(ctx context.Context, id string, active bool) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// CreateUserInput carries the fields needed to register a user. PasswordHash
// is precomputed by the external authentication collaborator.
type CreateUserInput struct {
	ID           string  `json:"id" validate:"omitempty,max=128"`
	Email        string  `json:"email" validate:"required,email"`
	Username     string  `json:"username" validate:"required,min=3,max=64"`
	PasswordHash string  `json:"password_hash" validate:"required"`
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
}

// UpdateProfileInput carries the mutable profile fields. Nil clears a column.
type UpdateProfileInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// UserService encapsulates user use-cases on top of the repository, and
// publishes lifecycle events when a bus is configured.
type UserService struct {
	repo     UserRepository
	bus      *events.Bus
	validate *validator.Validate
	log      zerolog.Logger
}

// NewUserService constructs a UserService. bus may be nil, in which case no
// events are published.
func NewUserService(repo UserRepository, bus *events.Bus, log zerolog.Logger) *UserService {
	return &UserService{
		repo:     repo,
		bus:      bus,
		validate: validator.New(),
		log:      log,
	}
}

// Create registers a new user. The id is minted as a UUIDv4 unless the
// caller supplies one; is_active starts true.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (types.User, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Username = strings.TrimSpace(input.Username)
	input.ID = strings.TrimSpace(input.ID)

	if err := s.validate.Struct(input); err != nil {
		return types.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Pre-check for friendlier conflicts; the unique constraints still win
	// any race at insert time.
	if exists, err := s.repo.EmailExists(ctx, input.Email); err != nil {
		return types.User{}, err
	} else if exists {
		return types.User{}, store.ErrDuplicateEmail
	}
	if exists, err := s.repo.UsernameExists(ctx, input.Username); err != nil {
		return types.User{}, err
	} else if exists {
		return types.User{}, store.ErrDuplicateUsername
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           id,
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: input.PasswordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		IsActive:     true,
	})
	if err != nil {
		return types.User{}, err
	}

	s.publish(ctx, events.UserEvent{
		Type:     events.TypeUserCreated,
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// List returns a page of users plus the total count, optionally filtered by
// is_active.
func (s *UserService) List(ctx context.Context, active *bool, offset, limit int) ([]types.User, int, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, active, offset, limit)
}

// UpdateProfile replaces the optional name columns.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (types.User, error) {
	user, err := s.repo.UpdateProfile(ctx, id, input.FirstName, input.LastName)
	if err != nil {
		return types.User{}, err
	}
	s.publish(ctx, events.UserEvent{
		Type:     events.TypeUserUpdated,
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	return user, nil
}

// RotatePassword replaces the stored hash with one precomputed by the
// external authentication collaborator.
func (s *UserService) RotatePassword(ctx context.Context, id, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return fmt.Errorf("%w: password_hash is required", ErrInvalidInput)
	}
	return s.repo.SetPasswordHash(ctx, id, passwordHash)
}

// SetActive toggles the is_active flag; deactivation is the soft-delete path.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) (types.User, error) {
	user, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return types.User{}, err
	}

	eventType := events.TypeUserDeactivated
	if active {
		eventType = events.TypeUserReactivated
	}
	s.publish(ctx, events.UserEvent{
		Type:     eventType,
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	return user, nil
}

// Delete removes the row entirely. The deletion event carries the avatar
// location so the worker can clean up the orphaned object.
func (s *UserService) Delete(ctx context.Context, id string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	event := events.UserEvent{
		Type:     events.TypeUserDeleted,
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	}
	if user.AvatarURL != nil {
		event.AvatarURL = *user.AvatarURL
	}
	s.publish(ctx, event)
	return nil
}

func (s *UserService) publish(ctx context.Context, event events.UserEvent) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Str("user_id", event.UserID).
			Msg("failed to publish user event")
	}
}
