// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationTokenHash(ctx context.Context, tokenHash string) (*User, error)
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) error
	SetVerificationToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	MarkEmailVerified(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, passwordHash string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	Stats(ctx context.Context) (*Stats, error)
	InTx(ctx context.Context, fn func(repo Repository, tx core.DBTX) error) error
}

type Stats struct {
	Total    int `db:"total"    json:"total"`
	Active   int `db:"active"   json:"active"`
	Verified int `db:"verified" json:"verified"`
}

const userColumns = `
	id, email, password_hash, first_name, last_name, role, is_active,
	email_verified, verification_token_hash, verification_expires_at,
	reset_token_hash, reset_expires_at, created_at, updated_at`

type repository struct {
	db       core.DBTX
	beginner *sqlx.DB
}

func NewRepository(db core.DBTX) Repository {
	r := &repository{db: db}
	if pool, ok := db.(*sqlx.DB); ok {
		r.beginner = pool
	}
	return r
}

// InTx hands fn a repository and a raw handle bound to one transaction so
// other packages can write on it too. Without a pool fn runs on r as is.
func (r *repository) InTx(
	ctx context.Context,
	fn func(repo Repository, tx core.DBTX) error,
) error {
	if r.beginner == nil {
		return fn(r, r.db)
	}
	return core.InTx(ctx, r.beginner, func(tx *sqlx.Tx) error {
		return fn(&repository{db: tx}, tx)
	})
}

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING is_active, email_verified, created_at, updated_at`

	err := r.db.GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.Role,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "get user", "id = $1", id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "get user by email", "email = $1", email)
}

func (r *repository) GetByVerificationTokenHash(
	ctx context.Context,
	tokenHash string,
) (*User, error) {
	return r.getOne(ctx, "get user by verification token", "verification_token_hash = $1", tokenHash)
}

func (r *repository) GetByResetTokenHash(
	ctx context.Context,
	tokenHash string,
) (*User, error) {
	return r.getOne(ctx, "get user by reset token", "reset_token_hash = $1", tokenHash)
}

func (r *repository) getOne(
	ctx context.Context,
	op, where string,
	arg any,
) (*User, error) {
	query := `SELECT` + userColumns + `
		FROM users
		WHERE ` + where

	var user User
	err := r.db.GetContext(ctx, &user, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, role = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Role,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE users
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set user status", query, id, active)
}

// SetVerificationToken replaces any earlier verification token.
func (r *repository) SetVerificationToken(
	ctx context.Context,
	id, tokenHash string,
	expiresAt time.Time,
) error {
	query := `
		UPDATE users
		SET verification_token_hash = $2, verification_expires_at = $3, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set verification token", query, id, tokenHash, expiresAt)
}

// SetResetToken replaces any earlier reset token.
func (r *repository) SetResetToken(
	ctx context.Context,
	id, tokenHash string,
	expiresAt time.Time,
) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_expires_at = $3, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set reset token", query, id, tokenHash, expiresAt)
}

func (r *repository) MarkEmailVerified(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET email_verified = TRUE,
		    verification_token_hash = NULL,
		    verification_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark email verified", query, id)
}

// ResetPassword stores the new hash and consumes the reset token.
func (r *repository) ResetPassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_expires_at = NULL,
		    updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "reset password", query, id, passwordHash)
}

func (r *repository) execOne(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	conditions := []string{"TRUE"}
	var args []any
	argIdx := 1

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)",
			argIdx, argIdx, argIdx))
		args = append(args, "%"+escapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *params.Active)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	users := []User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE is_active) AS active,
		       COUNT(*) FILTER (WHERE email_verified) AS verified
		FROM users`

	var stats Stats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}

	return &stats, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
