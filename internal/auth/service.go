// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", core.ErrUnauthorized)
	ErrEmailExists        = fmt.Errorf("email already exists: %w", core.ErrConflict)
)

const (
	opLogin          = "login"
	opRegister       = "register"
	opRefresh        = "refresh"
	opLogout         = "logout"
	opLogoutAll      = "logout_all"
	opForgotPassword = "forgot_password"
	opResetPassword  = "reset_password"
	opVerifyEmail    = "verify_email"
	opCurrentUser    = "current_user"
	opListSessions   = "list_sessions"
	opRevokeSession  = "revoke_session"
	opChangePassword = "change_password"

	defaultRole = "user"
)

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, user NewUser) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetVerificationToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	GetByVerificationToken(ctx context.Context, tokenHash string) (*UserInfo, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*UserInfo, error)
	MarkEmailVerified(ctx context.Context, userID string) error
	ResetPassword(ctx context.Context, userID, passwordHash string) error
}

type CompanyProvider interface {
	ListMemberships(ctx context.Context, userID string) ([]Membership, error)
	GetMembership(ctx context.Context, companyID, userID string) (*Membership, error)
}

type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

type Metrics interface {
	AuthSucceeded(operation string)
	AuthFailed(operation, reason string)
}

type ServiceConfig struct {
	Ledger          *Ledger
	Codec           *TokenCodec
	Users           UserProvider
	Companies       CompanyProvider
	Mailer          Mailer
	Metrics         Metrics
	Logger          *slog.Logger
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

// AuthResult pairs the response body with the tokens the handler moves
// into cookies.
type AuthResult struct {
	Response AuthResponse
	Tokens   *IssuedTokens
}

type Service struct {
	ledger          *Ledger
	codec           *TokenCodec
	users           UserProvider
	companies       CompanyProvider
	mailer          Mailer
	metrics         Metrics
	logger          *slog.Logger
	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		ledger:          cfg.Ledger,
		codec:           cfg.Codec,
		users:           cfg.Users,
		companies:       cfg.Companies,
		mailer:          cfg.Mailer,
		metrics:         metrics,
		logger:          logger.With("component", "auth_service"),
		verificationTTL: cfg.VerificationTTL,
		resetTTL:        cfg.ResetTTL,
		now:             cfg.Codec.now,
	}
}

func (s *Service) observe(operation string, err *error) {
	if *err == nil {
		s.metrics.AuthSucceeded(operation)
		return
	}
	s.metrics.AuthFailed(operation, core.FailureReason(*err))
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	meta SessionMeta,
) (result *AuthResult, err error) {
	defer s.observe(opLogin, &err)

	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, core.NewAuthFailure(core.ReasonInvalidCredentials, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive {
		//nolint:errcheck // timing attack prevention
		_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
		return nil, core.NewAuthFailure(core.ReasonAccountDeactivated, ErrInvalidCredentials)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, core.NewAuthFailure(core.ReasonInvalidCredentials, ErrInvalidCredentials)
	}

	if newHash != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
			s.logger.WarnContext(ctx, "password rehash failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return s.startSession(ctx, user, req.RememberMe, meta)
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	meta SessionMeta,
) (result *AuthResult, err error) {
	defer s.observe(opRegister, &err)

	email := normalizeEmail(req.Email)

	if err := checkPasswordStrength("password", req.Password); err != nil {
		return nil, err
	}

	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailExists
	case !errors.Is(err, core.ErrNotFound):
		return nil, fmt.Errorf("check email: %w", err)
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = defaultRole
	}

	user, err := s.users.Create(ctx, NewUser{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		CompanyName:  strings.TrimSpace(req.CompanyName),
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	result, err = s.startSession(ctx, user, false, meta)
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user)

	return result, nil
}

func (s *Service) sendVerification(ctx context.Context, user *UserInfo) {
	token, err := core.GenerateOneTimeToken()
	if err != nil {
		s.logger.ErrorContext(ctx, "generate verification token failed", "error", err)
		return
	}

	expiresAt := s.now().Add(s.verificationTTL)
	if err := s.users.SetVerificationToken(ctx, user.ID, s.codec.HashToken(token), expiresAt); err != nil {
		s.logger.ErrorContext(ctx, "store verification token failed",
			"user_id", user.ID,
			"error", err,
		)
		return
	}

	if err := s.mailer.SendVerification(ctx, user.Email, user.FirstName, token); err != nil {
		s.logger.ErrorContext(ctx, "send verification email failed",
			"user_id", user.ID,
			"error", err,
		)
	}
}

// Refresh rotates raw and mints a fresh access token for the same
// session. Every failure is an authentication failure.
func (s *Service) Refresh(
	ctx context.Context,
	raw string,
	meta SessionMeta,
) (result *AuthResult, err error) {
	defer s.observe(opRefresh, &err)

	if raw == "" {
		return nil, core.NewAuthFailure(
			core.ReasonMissingToken,
			fmt.Errorf("refresh: %w", core.ErrTokenInvalid),
		)
	}

	rotation, err := s.ledger.Rotate(ctx, raw, meta)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, rotation.UserID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil || !user.IsActive {
		if err := s.ledger.RevokeFamily(ctx, rotation.FamilyID); err != nil {
			return nil, fmt.Errorf("revoke family: %w", err)
		}
		return nil, core.NewAuthFailure(
			core.ReasonAccountDeactivated,
			fmt.Errorf("refresh: %w", core.ErrTokenRevoked),
		)
	}

	memberships, err := s.companies.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	accessToken, accessExp, err := s.codec.IssueAccessToken(accessClaims(user, memberships))
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	tokens := &IssuedTokens{
		UserID:           user.ID,
		SessionID:        rotation.SessionID,
		FamilyID:         rotation.FamilyID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rotation.RefreshToken,
		RefreshExpiresAt: rotation.RefreshExpiresAt,
		Persistent:       rotation.Persistent,
	}

	return &AuthResult{
		Response: buildAuthResponse(user, memberships, nil, &accessExp),
		Tokens:   tokens,
	}, nil
}

// Logout revokes the presented refresh token only. Missing, unknown and
// foreign tokens succeed so repeated calls are safe.
func (s *Service) Logout(ctx context.Context, userID, raw string) (err error) {
	defer s.observe(opLogout, &err)

	if raw == "" {
		return nil
	}

	if err := s.ledger.Revoke(ctx, raw, userID); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) (err error) {
	defer s.observe(opLogoutAll, &err)

	revoked, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		"user_id", userID,
		"revoked", revoked,
	)
	return nil
}

// ForgotPassword never reports whether the address is known.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	defer s.observe(opForgotPassword, &err)

	user, lookupErr := s.users.GetByEmail(ctx, normalizeEmail(email))
	if lookupErr != nil {
		if !errors.Is(lookupErr, core.ErrNotFound) {
			s.logger.ErrorContext(ctx, "forgot password lookup failed", "error", lookupErr)
		}
		return nil
	}

	if !user.IsActive {
		return nil
	}

	token, genErr := core.GenerateOneTimeToken()
	if genErr != nil {
		s.logger.ErrorContext(ctx, "generate reset token failed", "error", genErr)
		return nil
	}

	expiresAt := s.now().Add(s.resetTTL)
	if setErr := s.users.SetResetToken(ctx, user.ID, s.codec.HashToken(token), expiresAt); setErr != nil {
		s.logger.ErrorContext(ctx, "store reset token failed",
			"user_id", user.ID,
			"error", setErr,
		)
		return nil
	}

	if sendErr := s.mailer.SendPasswordReset(ctx, user.Email, user.FirstName, token); sendErr != nil {
		s.logger.ErrorContext(ctx, "send password reset email failed",
			"user_id", user.ID,
			"error", sendErr,
		)
	}

	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (err error) {
	defer s.observe(opResetPassword, &err)

	user, err := s.users.GetByResetToken(ctx, s.codec.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return invalidOneTimeToken()
		}
		return fmt.Errorf("find reset token: %w", err)
	}

	if user.ResetExpiresAt == nil || !s.now().Before(*user.ResetExpiresAt) {
		return invalidOneTimeToken()
	}

	if err := checkPasswordStrength("password", req.Password); err != nil {
		return err
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.ResetPassword(ctx, user.ID, passwordHash); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if _, err := s.ledger.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (err error) {
	defer s.observe(opVerifyEmail, &err)

	user, err := s.users.GetByVerificationToken(ctx, s.codec.HashToken(token))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return invalidOneTimeToken()
		}
		return fmt.Errorf("find verification token: %w", err)
	}

	if user.VerificationExpiresAt == nil || !s.now().Before(*user.VerificationExpiresAt) {
		return invalidOneTimeToken()
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	return nil
}

// CurrentUser returns the caller's profile. A non-empty companyID scopes
// the companies and permissions to that company.
func (s *Service) CurrentUser(
	ctx context.Context,
	userID, companyID string,
) (resp *AuthResponse, err error) {
	defer s.observe(opCurrentUser, &err)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil || !user.IsActive {
		return nil, core.NewAuthFailure(
			core.ReasonAccountDeactivated,
			fmt.Errorf("current user: %w", core.ErrUnauthorized),
		)
	}

	if companyID != "" {
		membership, err := s.companies.GetMembership(ctx, companyID, userID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, core.NewAuthFailure(
					core.ReasonForbidden,
					fmt.Errorf("company %s: %w", companyID, core.ErrForbidden),
				)
			}
			return nil, fmt.Errorf("get membership: %w", err)
		}

		out := buildAuthResponse(user, []Membership{*membership}, membership, nil)
		return &out, nil
	}

	memberships, err := s.companies.ListMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	out := buildAuthResponse(user, memberships, nil, nil)
	return &out, nil
}

// ListSessions marks the session behind currentRaw, if any.
func (s *Service) ListSessions(
	ctx context.Context,
	userID, currentRaw string,
) (sessions []SessionInfo, err error) {
	defer s.observe(opListSessions, &err)

	tokens, err := s.ledger.ActiveSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	currentHash := ""
	if currentRaw != "" {
		currentHash = s.codec.HashToken(currentRaw)
	}

	sessions = make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.IssuedAt,
			ExpiresAt: t.ExpiresAt,
			Current:   currentHash != "" && t.TokenHash == currentHash,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) (err error) {
	defer s.observe(opRevokeSession, &err)

	if err := s.ledger.RevokeSession(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// ChangePassword revokes every session of the user and starts a new one
// for the caller.
func (s *Service) ChangePassword(
	ctx context.Context,
	userID string,
	req ChangePasswordRequest,
	meta SessionMeta,
) (result *AuthResult, err error) {
	defer s.observe(opChangePassword, &err)

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.NewAuthFailure(core.ReasonAccountDeactivated, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, core.NewAuthFailure(core.ReasonInvalidCredentials, ErrInvalidCredentials)
	}

	if err := checkPasswordStrength("newPassword", req.NewPassword); err != nil {
		return nil, err
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}

	if _, err := s.ledger.RevokeAllForUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("revoke sessions: %w", err)
	}

	return s.startSession(ctx, user, false, meta)
}

// RevokeUserSessions is used when an account is deactivated outside the
// auth flow.
func (s *Service) RevokeUserSessions(ctx context.Context, userID string) (int64, error) {
	return s.ledger.RevokeAllForUser(ctx, userID)
}

func (s *Service) startSession(
	ctx context.Context,
	user *UserInfo,
	persistent bool,
	meta SessionMeta,
) (*AuthResult, error) {
	memberships, err := s.companies.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}

	tokens, err := s.ledger.Issue(ctx, accessClaims(user, memberships), "", persistent, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Response: buildAuthResponse(user, memberships, nil, &tokens.AccessExpiresAt),
		Tokens:   tokens,
	}, nil
}

func accessClaims(user *UserInfo, memberships []Membership) AccessTokenClaims {
	claims := AccessTokenClaims{UserID: user.ID, Role: user.Role}
	if len(memberships) > 0 {
		claims.CompanyID = memberships[0].CompanyID
	}
	return claims
}

// buildAuthResponse merges membership permissions in order, without
// duplicates. With scope set only that membership's permissions count.
func buildAuthResponse(
	user *UserInfo,
	memberships []Membership,
	scope *Membership,
	accessExp *time.Time,
) AuthResponse {
	companies := make([]CompanyResponse, 0, len(memberships))
	permissions := []string{}
	seen := make(map[string]struct{})

	for _, m := range memberships {
		perms := m.Permissions
		if perms == nil {
			perms = []string{}
		}
		companies = append(companies, CompanyResponse{
			ID:          m.CompanyID,
			Name:        m.CompanyName,
			Role:        m.Role,
			Permissions: perms,
		})

		if scope != nil && m.CompanyID != scope.CompanyID {
			continue
		}
		for _, p := range perms {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			permissions = append(permissions, p)
		}
	}

	return AuthResponse{
		User: UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			FirstName:     user.FirstName,
			LastName:      user.LastName,
			Role:          user.Role,
			EmailVerified: user.EmailVerified,
			CreatedAt:     user.CreatedAt,
		},
		Companies:            companies,
		Permissions:          permissions,
		AccessTokenExpiresAt: accessExp,
	}
}

func checkPasswordStrength(field, password string) error {
	ok, reasons := core.ValidatePasswordStrength(password)
	if ok {
		return nil
	}
	return core.ValidationError("password does not meet requirements", map[string]string{
		field: strings.Join(reasons, "; "),
	})
}

func invalidOneTimeToken() error {
	return core.ValidationError("invalid or expired token", map[string]string{
		"token": "invalid",
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type noopMetrics struct{}

func (noopMetrics) AuthSucceeded(string)      {}
func (noopMetrics) AuthFailed(string, string) {}
