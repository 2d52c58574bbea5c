// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	Revoke(ctx context.Context, id string, replacedByID *string) error
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	ListActiveForUser(ctx context.Context, userID string) ([]RefreshToken, error)
	InTx(ctx context.Context, fn func(Repository) error) error
}

const refreshTokenColumns = `
	id, user_id, token_hash, family_id, issued_at, expires_at,
	revoked_at, replaced_by_id, persistent, user_agent, ip_address`

type repository struct {
	db       core.DBTX
	beginner *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db, beginner: db}
}

// InTx runs fn against a repository bound to one transaction. Nested
// calls reuse the outer transaction.
func (r *repository) InTx(ctx context.Context, fn func(Repository) error) error {
	if r.beginner == nil {
		return fn(r)
	}
	return core.InTx(ctx, r.beginner, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx})
	})
}

func (r *repository) inTx() bool {
	return r.beginner == nil
}

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, family_id, expires_at,
			persistent, user_agent, ip_address
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING issued_at`

	err := r.db.GetContext(ctx, &token.IssuedAt, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.FamilyID,
		token.ExpiresAt,
		token.Persistent,
		token.UserAgent,
		token.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

// FindByHash locks the row when called inside a transaction so two
// rotations of one token serialize on it.
func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	query := `SELECT` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1`
	if r.inTx() {
		query += ` FOR UPDATE`
	}

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*RefreshToken, error) {
	query := `SELECT` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE id = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

// Revoke flags one active record. It reports core.ErrNotFound when the
// record is missing or was already revoked.
func (r *repository) Revoke(
	ctx context.Context,
	id string,
	replacedByID *string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), replaced_by_id = $2
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, replacedByID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("revoke refresh token: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RevokeFamily(
	ctx context.Context,
	familyID string,
) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE family_id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, familyID)
	if err != nil {
		return 0, fmt.Errorf("revoke token family: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke token family: %w", err)
	}

	return rows, nil
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) ListActiveForUser(
	ctx context.Context,
	userID string,
) ([]RefreshToken, error) {
	query := `SELECT` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
		ORDER BY issued_at DESC`

	tokens := []RefreshToken{}
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	return tokens, nil
}
