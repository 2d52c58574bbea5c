// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

const testPassword = "Corr3ct-Horse!"

func TestService_Login(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)

	result, err := env.service.Login(context.Background(), LoginRequest{
		Email:      "  ADA@example.com ",
		Password:   testPassword,
		RememberMe: true,
	}, SessionMeta{})
	require.NoError(t, err)

	assert.Equal(t, user.ID, result.Response.User.ID)
	assert.Equal(t, "user", result.Response.User.Role)
	assert.NotNil(t, result.Response.Permissions)
	assert.Empty(t, result.Response.Permissions)
	assert.NotNil(t, result.Response.Companies)
	require.NotNil(t, result.Response.AccessTokenExpiresAt)
	assert.True(t, result.Tokens.Persistent)
	assert.True(t, env.repo.get(result.Tokens.SessionID).Persistent)

	assert.Equal(t, outcome{operation: opLogin, success: true}, env.metrics.lastOutcome())
}

func TestService_Login_Failures(t *testing.T) {
	env := newTestEnv(t)
	inactive := env.users.add(t, "gone@example.com", testPassword)
	env.users.setActive(inactive.ID, false)
	env.users.add(t, "ada@example.com", testPassword)

	tests := []struct {
		name   string
		email  string
		pass   string
		reason string
	}{
		{"unknown email", "nobody@example.com", testPassword, core.ReasonInvalidCredentials},
		{"wrong password", "ada@example.com", "Wr0ng-Password!", core.ReasonInvalidCredentials},
		{"deactivated", "gone@example.com", testPassword, core.ReasonAccountDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Login(context.Background(), LoginRequest{
				Email:    tt.email,
				Password: tt.pass,
			}, SessionMeta{})

			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.ErrorIs(t, err, core.ErrUnauthorized)
			assertFailureReason(t, err, tt.reason)
			assert.Equal(t,
				outcome{operation: opLogin, reason: tt.reason},
				env.metrics.lastOutcome(),
			)
		})
	}
}

func TestService_Login_ScopesClaimsToFirstCompany(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)
	env.companies.join(user.ID, Membership{
		CompanyID: "c-1", CompanyName: "One", Role: "owner",
		Permissions: []string{"a", "b"},
	})
	env.companies.join(user.ID, Membership{
		CompanyID: "c-2", CompanyName: "Two", Role: "member",
		Permissions: []string{"b", "c"},
	})

	result, err := env.service.Login(context.Background(), LoginRequest{
		Email: "ada@example.com", Password: testPassword,
	}, SessionMeta{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, result.Response.Permissions)
	assert.Len(t, result.Response.Companies, 2)

	claims, err := env.codec.VerifyAccessToken(context.Background(), result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "c-1", claims.CompanyID)
}

func TestService_Register(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.service.Register(context.Background(), RegisterRequest{
		Email:           "New@Example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		FirstName:       " Grace ",
		LastName:        "Hopper",
		CompanyName:     "Navy",
	}, SessionMeta{})
	require.NoError(t, err)

	assert.Equal(t, "new@example.com", result.Response.User.Email)
	assert.Equal(t, "Grace", result.Response.User.FirstName)
	assert.Equal(t, "user", result.Response.User.Role)
	assert.False(t, result.Tokens.Persistent)
	require.Len(t, result.Response.Companies, 1)
	assert.Equal(t, "Navy", result.Response.Companies[0].Name)
	assert.Equal(t, []string{"company:manage", "members:invite"}, result.Response.Permissions)

	require.Equal(t, 1, env.mailer.count())
	mail := env.mailer.last()
	assert.Equal(t, "verification", mail.kind)
	assert.Equal(t, "new@example.com", mail.to)

	require.NoError(t, env.service.VerifyEmail(context.Background(), mail.token))
	assert.True(t, env.users.snapshot(result.Response.User.ID).EmailVerified)

	err = env.service.VerifyEmail(context.Background(), mail.token)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.users.add(t, "ada@example.com", testPassword)

	_, err := env.service.Register(context.Background(), RegisterRequest{
		Email:    "ADA@example.com",
		Password: testPassword,
	}, SessionMeta{})
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, outcome{operation: opRegister, reason: core.ReasonConflict}, env.metrics.lastOutcome())
}

func TestService_Register_CompanyFailureLeavesNoUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := RegisterRequest{
		Email:           "grace@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		CompanyName:     "Navy",
	}

	env.companies.failCreates(errors.New("companies unavailable"))
	_, err := env.service.Register(ctx, req, SessionMeta{})
	require.Error(t, err)

	_, err = env.users.GetByEmail(ctx, "grace@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, 0, env.mailer.count())

	env.companies.failCreates(nil)
	result, err := env.service.Register(ctx, req, SessionMeta{})
	require.NoError(t, err)
	require.Len(t, result.Response.Companies, 1)
}

func TestService_Register_VerificationMailFailureKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.failWith(errors.New("smtp down"))

	result, err := env.service.Register(context.Background(), RegisterRequest{
		Email:           "grace@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	}, SessionMeta{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	assert.Equal(t, 1, env.mailer.count())
}

func TestService_Register_WeakPassword(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Register(context.Background(), RegisterRequest{
		Email:    "ada@example.com",
		Password: "password123",
	}, SessionMeta{})
	require.Error(t, err)

	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
	assert.Contains(t, appErr.Details, "password")
	assert.Equal(t, 0, env.mailer.count())
}

func TestService_Refresh(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)

	login, err := env.service.Login(context.Background(), LoginRequest{
		Email: "ada@example.com", Password: testPassword, RememberMe: true,
	}, SessionMeta{})
	require.NoError(t, err)

	result, err := env.service.Refresh(context.Background(), login.Tokens.RefreshToken, SessionMeta{})
	require.NoError(t, err)

	assert.Equal(t, user.ID, result.Response.User.ID)
	assert.Equal(t, login.Tokens.FamilyID, result.Tokens.FamilyID)
	assert.True(t, result.Tokens.Persistent)
	assert.NotEqual(t, login.Tokens.RefreshToken, result.Tokens.RefreshToken)

	_, err = env.service.Refresh(context.Background(), login.Tokens.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, core.ErrTokenReuse)
	assert.Equal(t,
		outcome{operation: opRefresh, reason: core.ReasonTokenReuse},
		env.metrics.lastOutcome(),
	)

	_, err = env.service.Refresh(context.Background(), result.Tokens.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestService_Refresh_MissingToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Refresh(context.Background(), "", SessionMeta{})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assertFailureReason(t, err, core.ReasonMissingToken)
}

func TestService_Refresh_DeactivatedUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)

	login, err := env.service.Login(context.Background(), LoginRequest{
		Email: "ada@example.com", Password: testPassword,
	}, SessionMeta{})
	require.NoError(t, err)

	env.users.setActive(user.ID, false)

	_, err = env.service.Refresh(context.Background(), login.Tokens.RefreshToken, SessionMeta{})
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
	assertFailureReason(t, err, core.ReasonAccountDeactivated)
	assert.Equal(t, 0, env.repo.activeInFamily(login.Tokens.FamilyID))
}

func TestService_Logout(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)
	ctx := context.Background()

	first, err := env.service.Login(ctx, LoginRequest{Email: "ada@example.com", Password: testPassword}, SessionMeta{})
	require.NoError(t, err)
	second, err := env.service.Login(ctx, LoginRequest{Email: "ada@example.com", Password: testPassword}, SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(ctx, user.ID, first.Tokens.RefreshToken))
	require.NoError(t, env.service.Logout(ctx, user.ID, first.Tokens.RefreshToken))
	require.NoError(t, env.service.Logout(ctx, user.ID, ""))

	assert.True(t, env.repo.get(first.Tokens.SessionID).IsRevoked())
	assert.False(t, env.repo.get(second.Tokens.SessionID).IsRevoked())

	require.NoError(t, env.service.LogoutAll(ctx, user.ID))
	assert.True(t, env.repo.get(second.Tokens.SessionID).IsRevoked())
}

func TestService_ForgotAndResetPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)
	ctx := context.Background()

	login, err := env.service.Login(ctx, LoginRequest{Email: "ada@example.com", Password: testPassword}, SessionMeta{})
	require.NoError(t, err)

	require.NoError(t, env.service.ForgotPassword(ctx, "nobody@example.com"))
	assert.Equal(t, 0, env.mailer.count())

	require.NoError(t, env.service.ForgotPassword(ctx, "Ada@Example.com"))
	require.Equal(t, 1, env.mailer.count())
	mail := env.mailer.last()
	assert.Equal(t, "reset", mail.kind)

	const newPassword = "N3w-Secret-Pass!"
	require.NoError(t, env.service.ResetPassword(ctx, ResetPasswordRequest{
		Token:           mail.token,
		Password:        newPassword,
		ConfirmPassword: newPassword,
	}))

	assert.True(t, env.repo.get(login.Tokens.SessionID).IsRevoked())

	ok, err := core.VerifyPassword(newPassword, env.users.snapshot(user.ID).PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	err = env.service.ResetPassword(ctx, ResetPasswordRequest{
		Token:    mail.token,
		Password: newPassword,
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestService_ResetPassword_Expired(t *testing.T) {
	env := newTestEnv(t)
	env.users.add(t, "ada@example.com", testPassword)
	ctx := context.Background()

	require.NoError(t, env.service.ForgotPassword(ctx, "ada@example.com"))
	mail := env.mailer.last()

	env.clock.Advance(2 * time.Hour)

	err := env.service.ResetPassword(ctx, ResetPasswordRequest{
		Token:    mail.token,
		Password: "N3w-Secret-Pass!",
	})
	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, map[string]string{"token": "invalid"}, appErr.Details)
}

func TestService_ForgotPassword_MailFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.users.add(t, "ada@example.com", testPassword)
	env.mailer.failWith(errors.New("smtp down"))

	require.NoError(t, env.service.ForgotPassword(context.Background(), "ada@example.com"))
	assert.Equal(t, 1, env.mailer.count())
}

func TestService_ForgotPassword_InactiveUserGetsNoMail(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)
	env.users.setActive(user.ID, false)

	require.NoError(t, env.service.ForgotPassword(context.Background(), "ada@example.com"))
	assert.Equal(t, 0, env.mailer.count())
}

func TestService_CurrentUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)
	env.companies.join(user.ID, Membership{
		CompanyID: "c-1", CompanyName: "One", Role: "owner",
		Permissions: []string{"a", "b"},
	})
	env.companies.join(user.ID, Membership{
		CompanyID: "c-2", CompanyName: "Two", Role: "member",
		Permissions: []string{"c"},
	})
	ctx := context.Background()

	resp, err := env.service.CurrentUser(ctx, user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, resp.Permissions)
	assert.Nil(t, resp.AccessTokenExpiresAt)

	resp, err = env.service.CurrentUser(ctx, user.ID, "c-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, resp.Permissions)
	require.Len(t, resp.Companies, 1)
	assert.Equal(t, "c-2", resp.Companies[0].ID)

	_, err = env.service.CurrentUser(ctx, user.ID, "c-foreign")
	assert.ErrorIs(t, err, core.ErrForbidden)

	env.users.setActive(user.ID, false)
	_, err = env.service.CurrentUser(ctx, user.ID, "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestService_ListSessions(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)
	ctx := context.Background()

	first, err := env.service.Login(ctx, LoginRequest{Email: "ada@example.com", Password: testPassword}, SessionMeta{UserAgent: "laptop"})
	require.NoError(t, err)
	_, err = env.service.Login(ctx, LoginRequest{Email: "ada@example.com", Password: testPassword}, SessionMeta{UserAgent: "phone"})
	require.NoError(t, err)

	sessions, err := env.service.ListSessions(ctx, user.ID, first.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	current := 0
	for _, s := range sessions {
		if s.Current {
			current++
			assert.Equal(t, first.Tokens.SessionID, s.ID)
			assert.Equal(t, "laptop", s.UserAgent)
		}
	}
	assert.Equal(t, 1, current)

	require.NoError(t, env.service.RevokeSession(ctx, user.ID, first.Tokens.SessionID))

	sessions, err = env.service.ListSessions(ctx, user.ID, "")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].Current)
}

func TestService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.users.add(t, "ada@example.com", testPassword)
	ctx := context.Background()

	login, err := env.service.Login(ctx, LoginRequest{Email: "ada@example.com", Password: testPassword}, SessionMeta{})
	require.NoError(t, err)

	_, err = env.service.ChangePassword(ctx, user.ID, ChangePasswordRequest{
		CurrentPassword: "Wr0ng-Password!",
		NewPassword:     "N3w-Secret-Pass!",
	}, SessionMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := env.service.ChangePassword(ctx, user.ID, ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "N3w-Secret-Pass!",
	}, SessionMeta{})
	require.NoError(t, err)

	assert.True(t, env.repo.get(login.Tokens.SessionID).IsRevoked())
	assert.False(t, env.repo.get(result.Tokens.SessionID).IsRevoked())
	assert.NotEqual(t, login.Tokens.FamilyID, result.Tokens.FamilyID)
}

func TestBuildAuthResponse_NeverNil(t *testing.T) {
	resp := buildAuthResponse(&UserInfo{ID: "u"}, nil, nil, nil)

	assert.NotNil(t, resp.Companies)
	assert.NotNil(t, resp.Permissions)
}
