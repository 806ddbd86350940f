package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/accounthub/apiserver/types"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, avatar_url, is_active, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns a page of users plus the total count. When active is non-nil
// the result is filtered by is_active, served by idx_users_active.
func (r *UserRepository) List(ctx context.Context, active *bool, offset, limit int) ([]types.User, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	countQuery := `SELECT COUNT(1) FROM users`
	listQuery := `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2`
	countArgs := []any{}
	listArgs := []any{offset, limit}
	if active != nil {
		countQuery = `SELECT COUNT(1) FROM users WHERE is_active = $1`
		listQuery = `
			SELECT ` + userColumns + `
			FROM users
			WHERE is_active = $1
			ORDER BY created_at, id
			OFFSET $2 LIMIT $3`
		countArgs = []any{*active}
		listArgs = []any{*active, offset, limit}
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]types.User, 0, limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Username,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, translateConstraint(err)
	}
	return user, nil
}

// UpdateProfile replaces the optional name columns. created_at is never
// touched; updated_at is refreshed as part of the same statement.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, firstName, lastName *string) (types.User, error) {
	const query = `
		UPDATE users
		SET first_name = $1,
			last_name = $2,
			updated_at = $3
		WHERE id = $4
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, firstName, lastName, time.Now().UTC(), id))
}

// SetPasswordHash replaces the stored credential material with a hash
// precomputed by the external authentication collaborator.
func (r *UserRepository) SetPasswordHash(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			updated_at = $2
		WHERE id = $3`
	return r.execExpectingRow(ctx, query, passwordHash, time.Now().UTC(), id)
}

// SetAvatarURL stores or clears (nil) the avatar location.
func (r *UserRepository) SetAvatarURL(ctx context.Context, id string, avatarURL *string) error {
	const query = `
		UPDATE users
		SET avatar_url = $1,
			updated_at = $2
		WHERE id = $3`
	return r.execExpectingRow(ctx, query, avatarURL, time.Now().UTC(), id)
}

// SetActive toggles the is_active flag and returns the updated record.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) (types.User, error) {
	const query = `
		UPDATE users
		SET is_active = $1,
			updated_at = $2
		WHERE id = $3
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, active, time.Now().UTC(), id))
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) execExpectingRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateConstraint(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
