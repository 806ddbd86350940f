package types

import "time"

// User represents an account record in the users table.
type User struct {
	// ID is the opaque unique identifier of the user. The service mints
	// UUIDv4 strings, but the column accepts any non-empty text id.
	ID string `json:"id" db:"id"`

	// Email is the user's email address. Unique across all records.
	Email string `json:"email" db:"email"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the precomputed hash supplied by the external
	// authentication collaborator. This service never sees plaintext
	// credentials, and the field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// FirstName is the user's optional given name.
	FirstName *string `json:"first_name,omitempty" db:"first_name"`

	// LastName is the user's optional family name.
	LastName *string `json:"last_name,omitempty" db:"last_name"`

	// AvatarURL points at the user's avatar object, when one is set.
	AvatarURL *string `json:"avatar_url,omitempty" db:"avatar_url"`

	// IsActive marks whether the account is active. Deactivation is the
	// soft-delete path; hard deletion removes the row entirely.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp when the record was created. Immutable.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent mutation. Every write
	// path refreshes it.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName derives a display name from whichever name parts are present,
// falling back to the username.
func (u User) FullName() string {
	switch {
	case u.FirstName != nil && u.LastName != nil:
		return *u.FirstName + " " + *u.LastName
	case u.FirstName != nil:
		return *u.FirstName
	case u.LastName != nil:
		return *u.LastName
	default:
		return u.Username
	}
}

// Profile is the compact public view of a user handed to other services.
type Profile struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Profile returns the public view of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FullName:  u.FullName(),
		AvatarURL: u.AvatarURL,
	}
}
