package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
)

const userColumns = `id, username, email, password_hash, role, created_at`

// CreateUser inserts a user. A duplicate username or email surfaces as a
// unique violation, translated to a conflict by the caller's transaction.
func CreateUser(ctx context.Context, q Querier, u models.User) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + userColumns

	err := q.QueryRowContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.Role).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q Querier, id int64) (*models.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id),
		func() error { return apperr.NotFound("user", id) })
}

func GetUserByUsername(ctx context.Context, q Querier, username string) (*models.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username),
		func() error {
			return &apperr.Error{
				Kind:    apperr.KindNotFound,
				Message: fmt.Sprintf("user %q not found", username),
				Details: apperr.Details{Entity: "user"},
			}
		})
}

// UsernameOrEmailTaken reports whether either identifier is already in use.
func UsernameOrEmailTaken(ctx context.Context, q Querier, username, email string) (bool, error) {
	var taken bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return taken, nil
}

func scanUser(row *sql.Row, notFound func() error) (*models.User, error) {
	user := &models.User{}

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound()
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
