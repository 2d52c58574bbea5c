// AngelaMos | 2026
// service.go

package company

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/go-auth/internal/auth"
	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateOwnedTx creates a company and enrols ownerID as its owner on the
// caller's transaction. Commit and rollback stay with the caller.
func (s *Service) CreateOwnedTx(
	ctx context.Context,
	tx core.DBTX,
	ownerID, name string,
) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("create company: %w", core.ErrInvalidInput)
	}

	company := &Company{
		ID:      uuid.New().String(),
		Name:    name,
		OwnerID: ownerID,
	}
	member := &Member{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		UserID:      ownerID,
		Role:        RoleOwner,
		Permissions: append(Permissions{}, OwnerPermissions...),
	}

	repo := NewRepository(tx)
	if err := repo.Create(ctx, company); err != nil {
		return fmt.Errorf("create owned company: %w", err)
	}
	if err := repo.AddMember(ctx, member); err != nil {
		return fmt.Errorf("create owned company: %w", err)
	}

	return nil
}

func (s *Service) ListMemberships(
	ctx context.Context,
	userID string,
) ([]auth.Membership, error) {
	members, err := s.repo.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]auth.Membership, 0, len(members))
	for i := range members {
		out = append(out, *toMembership(&members[i]))
	}
	return out, nil
}

func (s *Service) GetMembership(
	ctx context.Context,
	companyID, userID string,
) (*auth.Membership, error) {
	member, err := s.repo.GetMembership(ctx, companyID, userID)
	if err != nil {
		return nil, err
	}
	return toMembership(member), nil
}

func toMembership(m *Member) *auth.Membership {
	perms := []string(m.Permissions)
	if perms == nil {
		perms = []string{}
	}
	return &auth.Membership{
		CompanyID:   m.CompanyID,
		CompanyName: m.CompanyName,
		Role:        m.Role,
		Permissions: perms,
	}
}
