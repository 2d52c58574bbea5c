// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/go-auth/internal/auth"
	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

// SessionRevoker ends every session of a user when the account is
// deactivated.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) (int64, error)
}

// CompanyCreator writes a company owned by a new user on the same
// transaction as the user row.
type CompanyCreator interface {
	CreateOwnedTx(ctx context.Context, tx core.DBTX, ownerID, name string) error
}

type Option func(*Service)

func WithCompanies(companies CompanyCreator) Option {
	return func(s *Service) {
		s.companies = companies
	}
}

type Service struct {
	repo      Repository
	sessions  SessionRevoker
	companies CompanyCreator
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetSessionRevoker breaks the construction cycle with the auth service,
// which itself depends on this one as its user store.
func (s *Service) SetSessionRevoker(sessions SessionRevoker) {
	s.sessions = sessions
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(ctx context.Context, in auth.NewUser) (*auth.UserInfo, error) {
	role := in.Role
	if role == "" {
		role = RoleUser
	}

	user := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(in.Email),
		PasswordHash: in.PasswordHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
	}

	if in.CompanyName == "" {
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, err
		}
		return toUserInfo(user), nil
	}

	if s.companies == nil {
		return nil, fmt.Errorf("create user %s: no company store configured", user.Email)
	}

	err := s.repo.InTx(ctx, func(repo Repository, tx core.DBTX) error {
		if err := repo.Create(ctx, user); err != nil {
			return err
		}
		return s.companies.CreateOwnedTx(ctx, tx, user.ID, in.CompanyName)
	})
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) SetVerificationToken(
	ctx context.Context,
	userID, tokenHash string,
	expiresAt time.Time,
) error {
	return s.repo.SetVerificationToken(ctx, userID, tokenHash, expiresAt)
}

func (s *Service) SetResetToken(
	ctx context.Context,
	userID, tokenHash string,
	expiresAt time.Time,
) error {
	return s.repo.SetResetToken(ctx, userID, tokenHash, expiresAt)
}

func (s *Service) GetByVerificationToken(
	ctx context.Context,
	tokenHash string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByVerificationTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) GetByResetToken(
	ctx context.Context,
	tokenHash string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByResetTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.repo.MarkEmailVerified(ctx, userID)
}

func (s *Service) ResetPassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.ResetPassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	switch role {
	case RoleUser, RoleOwner, RoleAdmin:
	default:
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// SetUserStatus activates or deactivates an account. Deactivation also
// revokes every refresh token the user holds.
func (s *Service) SetUserStatus(
	ctx context.Context,
	id string,
	active bool,
) (*User, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}

	if !active && s.sessions != nil {
		if _, err := s.sessions.RevokeUserSessions(ctx, id); err != nil {
			return nil, fmt.Errorf("revoke sessions: %w", err)
		}
	}

	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateUser(ctx, userID, req)
}

// DeleteMe deactivates the caller's account. Records are kept so the
// refresh ledger stays intact.
func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("delete me: %w", core.ErrUnauthorized)
	}

	_, err := s.SetUserStatus(ctx, userID, false)
	return err
}

// CanChangeStatus stops admins from locking themselves or other admins out.
func (s *Service) CanChangeStatus(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return fmt.Errorf("change own status: %w", core.ErrForbidden)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot change admin status: %w", core.ErrForbidden)
	}

	return nil
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:                    u.ID,
		Email:                 u.Email,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		PasswordHash:          u.PasswordHash,
		Role:                  u.Role,
		IsActive:              u.IsActive,
		EmailVerified:         u.EmailVerified,
		CreatedAt:             u.CreatedAt,
		VerificationExpiresAt: u.VerificationExpiresAt,
		ResetExpiresAt:        u.ResetExpiresAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ auth.UserProvider = (*Service)(nil)
