// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/go-auth/internal/config"
	"github.com/carterperez-dev/templates/go-auth/internal/core"
	"github.com/carterperez-dev/templates/go-auth/internal/middleware"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	claimType      = "type"
	claimRole      = "role"
	claimCompanyID = "cid"
	claimFamilyID  = "fid"
)

// TokenCodec signs and verifies access and refresh JWTs with one HMAC key
// and hashes refresh tokens for storage with a second one.
type TokenCodec struct {
	key     jwk.Key
	hashKey []byte
	config  config.JWTConfig
	now     func() time.Time
}

type CodecOption func(*TokenCodec)

func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

func NewTokenCodec(
	secrets config.SecretsConfig,
	cfg config.JWTConfig,
	opts ...CodecOption,
) (*TokenCodec, error) {
	key, err := jwk.Import([]byte(secrets.AccessTokenKey))
	if err != nil {
		return nil, fmt.Errorf("import signing key: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	c := &TokenCodec{
		key:     key,
		hashKey: []byte(secrets.TokenHashKey),
		config:  cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type AccessTokenClaims struct {
	UserID    string
	Role      string
	CompanyID string
}

func (c *TokenCodec) IssueAccessToken(
	claims AccessTokenClaims,
) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.config.AccessTokenExpire)

	builder := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(c.config.Issuer).
		Audience([]string{c.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(expiresAt).
		Claim(claimRole, claims.Role).
		Claim(claimType, tokenTypeAccess)

	if claims.CompanyID != "" {
		builder = builder.Claim(claimCompanyID, claims.CompanyID)
	}

	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), c.key))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), expiresAt, nil
}

func (c *TokenCodec) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := c.parse(tokenString, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var role string
	if err := token.Get(claimRole, &role); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var companyID string
	if token.Has(claimCompanyID) {
		//nolint:errcheck // optional claim, empty on mismatch
		_ = token.Get(claimCompanyID, &companyID)
	}

	jti, _ := token.JwtID()
	exp, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		UserID:    subject,
		Role:      role,
		CompanyID: companyID,
		TokenID:   jti,
		ExpiresAt: exp,
	}, nil
}

type RefreshTokenData struct {
	ID        string
	Token     string
	Hash      string
	ExpiresAt time.Time
	FamilyID  string
}

type RefreshClaims struct {
	UserID    string
	FamilyID  string
	TokenID   string
	ExpiresAt time.Time
}

// IssueRefreshToken mints a refresh JWT. The jti doubles as the ledger
// record id. An empty familyID starts a new family.
func (c *TokenCodec) IssueRefreshToken(
	userID, familyID string,
) (*RefreshTokenData, error) {
	if familyID == "" {
		familyID = uuid.New().String()
	}

	id := uuid.New().String()
	now := c.now()
	expiresAt := now.Add(c.config.RefreshTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(id).
		Issuer(c.config.Issuer).
		Audience([]string{c.config.Audience}).
		Subject(userID).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim(claimFamilyID, familyID).
		Claim(claimType, tokenTypeRefresh).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build refresh token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), c.key))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	raw := string(signed)

	return &RefreshTokenData{
		ID:        id,
		Token:     raw,
		Hash:      c.HashToken(raw),
		ExpiresAt: expiresAt,
		FamilyID:  familyID,
	}, nil
}

func (c *TokenCodec) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := c.parse(tokenString, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify refresh token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var familyID string
	if err := token.Get(claimFamilyID, &familyID); err != nil || familyID == "" {
		return nil, fmt.Errorf(
			"verify refresh token: missing family claim: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, _ := token.JwtID()
	exp, _ := token.Expiration()

	return &RefreshClaims{
		UserID:    subject,
		FamilyID:  familyID,
		TokenID:   jti,
		ExpiresAt: exp,
	}, nil
}

func (c *TokenCodec) HashToken(raw string) string {
	return core.HashToken(c.hashKey, raw)
}

func (c *TokenCodec) AccessTokenTTL() time.Duration {
	return c.config.AccessTokenExpire
}

func (c *TokenCodec) RefreshTokenTTL() time.Duration {
	return c.config.RefreshTokenExpire
}

func (c *TokenCodec) parse(tokenString, wantType string) (jwt.Token, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("verify token: empty: %w", core.ErrTokenInvalid)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), c.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(c.now)),
		jwt.WithIssuer(c.config.Issuer),
		jwt.WithAudience(c.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get(claimType, &tokenType); err != nil ||
		tokenType != wantType {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	return token, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return (strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")) ||
		strings.Contains(errStr, "expired")
}
