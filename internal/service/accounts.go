package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"net/mail"
	"strings"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/auth"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/store"
	"go.uber.org/zap"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type AccountService struct {
	deps     Deps
	tokens   *auth.TokenManager
	adminKey string
}

func NewAccountService(deps Deps, tokens *auth.TokenManager, adminKey string) *AccountService {
	return &AccountService{deps: deps.withDefaults(), tokens: tokens, adminKey: adminKey}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.register(ctx, in, models.RoleCustomer)
}

// RegisterAdmin creates an admin account when key matches the configured
// registration key.
func (s *AccountService) RegisterAdmin(ctx context.Context, in RegisterInput, key string) (*models.User, error) {
	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		return nil, apperr.Forbidden("invalid admin secret key")
	}
	return s.register(ctx, in, models.RoleAdmin)
}

func (s *AccountService) register(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(strings.ToLower(in.Email))

	if username == "" {
		return nil, apperr.Invalid("username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Invalid("a valid email is required")
	}
	if len(in.Password) < 6 {
		return nil, apperr.Invalid("password must be at least 6 characters")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.deps.inTx(ctx, func(tx *sql.Tx) error {
		taken, err := store.UsernameOrEmailTaken(ctx, tx, username, email)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("username or email already exists", nil)
		}

		user, err = store.CreateUser(ctx, tx, models.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			Role:         role,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(role)))
	return user, nil
}

// Login verifies credentials and issues a bearer token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	invalid := apperr.Unauthorized("invalid username or password")

	user, err := store.GetUserByUsername(ctx, s.deps.DB, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil, invalid
	}
	if err != nil {
		return "", nil, err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, invalid
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}
