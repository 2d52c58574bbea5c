// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is one link in a rotation chain. Records are revoked,
// never deleted.
type RefreshToken struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	TokenHash    string     `db:"token_hash"`
	FamilyID     string     `db:"family_id"`
	IssuedAt     time.Time  `db:"issued_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ReplacedByID *string    `db:"replaced_by_id"`
	Persistent   bool       `db:"persistent"`
	UserAgent    string     `db:"user_agent"`
	IPAddress    string     `db:"ip_address"`
}

func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

func (t *RefreshToken) IsActiveAt(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpiredAt(now)
}

type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// IssuedTokens is what a successful login, registration or refresh hands
// to the session transport.
type IssuedTokens struct {
	UserID           string
	SessionID        string
	FamilyID         string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Persistent       bool
}

// Rotation is the refresh half of a successful rotation.
type Rotation struct {
	UserID           string
	SessionID        string
	FamilyID         string
	RefreshToken     string
	RefreshExpiresAt time.Time
	Persistent       bool
}

type UserInfo struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string
	Role          string
	IsActive      bool
	EmailVerified bool
	CreatedAt     time.Time

	VerificationExpiresAt *time.Time
	ResetExpiresAt        *time.Time
}

type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string

	// CompanyName, when set, makes the user owner of a new company. The
	// user and the company are committed together or not at all.
	CompanyName string
}

type Membership struct {
	CompanyID   string
	CompanyName string
	Role        string
	Permissions []string
}
