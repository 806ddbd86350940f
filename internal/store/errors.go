package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a write would violate the email
// uniqueness constraint.
var ErrDuplicateEmail = errors.New("email already exists")

// ErrDuplicateUsername is returned when a write would violate the username
// uniqueness constraint.
var ErrDuplicateUsername = errors.New("username already exists")

// Postgres class 23 integrity-constraint violation codes.
const (
	pgUniqueViolation = pq.ErrorCode("23505")
)

// Constraint names declared by the users migration.
const (
	constraintUsersEmail    = "users_email_key"
	constraintUsersUsername = "users_username_key"
)

// translateConstraint maps unique-violation errors raised by the engine onto
// the store's sentinels. Any other error is passed through verbatim.
func translateConstraint(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case constraintUsersEmail:
		return ErrDuplicateEmail
	case constraintUsersUsername:
		return ErrDuplicateUsername
	}
	return err
}
