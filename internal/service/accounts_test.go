package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/auth"
	"github.com/safar/order-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccounts(f *fixture) (*AccountService, *auth.TokenManager) {
	tokens := auth.NewTokenManager("test-secret", 30*time.Minute)
	return NewAccountService(f.deps, tokens, "letmein"), tokens
}

func TestRegister_CreatesCustomer(t *testing.T) {
	f := newFixture(t)
	svc, _ := newAccounts(f)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qUserTaken).
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.mock.ExpectQuery(qInsertUser).
		WithArgs("alice", "alice@example.com", sqlmock.AnyArg(), "customer").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(int64(1), "alice", "alice@example.com", "hash", "customer", time.Now()))
	f.mock.ExpectCommit()

	user, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "Alice@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	svc, _ := newAccounts(f)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(qUserTaken).
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	f.mock.ExpectRollback()

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegister_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	svc, _ := newAccounts(f)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "not-an-email", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@example.com", Password: "123"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestRegisterAdmin_WrongKey(t *testing.T) {
	f := newFixture(t)
	svc, _ := newAccounts(f)

	_, err := svc.RegisterAdmin(context.Background(), RegisterInput{Username: "root", Email: "root@example.com", Password: "secret1"}, "guess")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	svc, tokens := newAccounts(f)

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		f.mock.ExpectQuery(qUserByUsername).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(int64(3), "alice", "alice@example.com", hash, "admin", time.Now()))
	}
	f.mock.ExpectQuery(qUserByUsername).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(userColumns))

	token, user, err := svc.Login(context.Background(), "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)

	id, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: 3, Username: "alice", Role: models.RoleAdmin}, id)

	_, _, err = svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, _, err = svc.Login(context.Background(), "bob", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}
