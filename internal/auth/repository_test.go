// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

var refreshTokenRowColumns = []string{
	"id", "user_id", "token_hash", "family_id", "issued_at", "expires_at",
	"revoked_at", "replaced_by_id", "persistent", "user_agent", "ip_address",
}

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func refreshRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(refreshTokenRowColumns).AddRow(
		"tok-1", "user-1", "hash-1", "fam-1", now, now.Add(time.Hour),
		nil, nil, true, "agent", "10.0.0.1",
	)
}

func TestRepository_Create(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	token := &RefreshToken{
		ID:         "tok-1",
		UserID:     "user-1",
		TokenHash:  "hash-1",
		FamilyID:   "fam-1",
		ExpiresAt:  now.Add(time.Hour),
		Persistent: true,
		UserAgent:  "agent",
		IPAddress:  "10.0.0.1",
	}

	mock.ExpectQuery(`INSERT INTO refresh_tokens`).
		WithArgs("tok-1", "user-1", "hash-1", "fam-1", token.ExpiresAt, true, "agent", "10.0.0.1").
		WillReturnRows(sqlmock.NewRows([]string{"issued_at"}).AddRow(now))

	require.NoError(t, repo.Create(context.Background(), token))
	assert.Equal(t, now, token.IssuedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindByHash(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM refresh_tokens\s+WHERE token_hash = \$1$`).
		WithArgs("hash-1").
		WillReturnRows(refreshRow(now))

	token, err := repo.FindByHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.ID)
	assert.Equal(t, "fam-1", token.FamilyID)
	assert.True(t, token.Persistent)
	assert.False(t, token.IsRevoked())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindByHash_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`FROM refresh_tokens`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InTx_LocksRow(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE token_hash = \$1 FOR UPDATE`).
		WithArgs("hash-1").
		WillReturnRows(refreshRow(now))
	mock.ExpectExec(`UPDATE refresh_tokens\s+SET revoked_at = NOW\(\), replaced_by_id = \$2`).
		WithArgs("tok-1", "tok-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InTx(context.Background(), func(tx Repository) error {
		token, err := tx.FindByHash(context.Background(), "hash-1")
		if err != nil {
			return err
		}
		next := "tok-2"
		return tx.Revoke(context.Background(), token.ID, &next)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_InTx_RollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.InTx(context.Background(), func(Repository) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Revoke_AlreadyRevoked(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`UPDATE refresh_tokens`).
		WithArgs("tok-1", nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Revoke(context.Background(), "tok-1", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RevokeFamily(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`WHERE family_id = \$1 AND revoked_at IS NULL`).
		WithArgs("fam-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeFamily(context.Background(), "fam-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RevokeAllForUser(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`WHERE user_id = \$1 AND revoked_at IS NULL`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.RevokeAllForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListActiveForUser(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`AND revoked_at IS NULL\s+AND expires_at > NOW\(\)`).
		WithArgs("user-1").
		WillReturnRows(refreshRow(now))

	tokens, err := repo.ListActiveForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "tok-1", tokens[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
