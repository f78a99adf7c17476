package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("down")
	require.NoError(t, err)
	assert.Equal(t, Down, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestMigrationVersions(t *testing.T) {
	up, err := migrationVersions(Up)
	require.NoError(t, err)
	require.NotEmpty(t, up)
	assert.Equal(t, "0001_init", up[0])

	down, err := migrationVersions(Down)
	require.NoError(t, err)
	assert.Len(t, down, len(up))
	assert.Equal(t, up[len(up)-1], down[0])
}

func TestMigrate_SkipsAppliedVersions(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations")).
		WithArgs("0001_init").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ran, err := Migrate(context.Background(), db, Up)
	require.NoError(t, err)
	assert.Empty(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AppliesPendingVersion(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations")).
		WithArgs("0001_init").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
		WithArgs("0001_init").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ran, err := Migrate(context.Background(), db, Up)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init"}, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}
