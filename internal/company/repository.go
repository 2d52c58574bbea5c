// AngelaMos | 2026
// repository.go

package company

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

type Repository interface {
	Create(ctx context.Context, company *Company) error
	AddMember(ctx context.Context, member *Member) error
	GetMembership(ctx context.Context, companyID, userID string) (*Member, error)
	ListMembershipsForUser(ctx context.Context, userID string) ([]Member, error)
}

type repository struct {
	db core.DBTX
}

// NewRepository binds the repository to db, which may be a pool or an
// open transaction owned by the caller.
func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, company *Company) error {
	query := `
		INSERT INTO companies (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &company.CreatedAt, query,
		company.ID,
		company.Name,
		company.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("create company: %w", err)
	}

	return nil
}

func (r *repository) AddMember(ctx context.Context, member *Member) error {
	query := `
		INSERT INTO company_members (company_id, user_id, role, permissions)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &member.CreatedAt, query,
		member.CompanyID,
		member.UserID,
		member.Role,
		member.Permissions,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("add company member: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("add company member: %w", err)
	}

	return nil
}

func (r *repository) GetMembership(
	ctx context.Context,
	companyID, userID string,
) (*Member, error) {
	query := `
		SELECT m.company_id, c.name AS company_name, m.user_id, m.role,
		       m.permissions, m.created_at
		FROM company_members m
		JOIN companies c ON c.id = m.company_id
		WHERE m.company_id = $1 AND m.user_id = $2`

	var member Member
	err := r.db.GetContext(ctx, &member, query, companyID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get company membership: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get company membership: %w", err)
	}

	return &member, nil
}

func (r *repository) ListMembershipsForUser(
	ctx context.Context,
	userID string,
) ([]Member, error) {
	query := `
		SELECT m.company_id, c.name AS company_name, m.user_id, m.role,
		       m.permissions, m.created_at
		FROM company_members m
		JOIN companies c ON c.id = m.company_id
		WHERE m.user_id = $1
		ORDER BY m.created_at ASC`

	members := []Member{}
	if err := r.db.SelectContext(ctx, &members, query, userID); err != nil {
		return nil, fmt.Errorf("list company memberships: %w", err)
	}

	return members, nil
}
