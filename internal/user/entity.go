// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                    string     `db:"id"`
	Email                 string     `db:"email"`
	PasswordHash          string     `db:"password_hash"`
	FirstName             string     `db:"first_name"`
	LastName              string     `db:"last_name"`
	Role                  string     `db:"role"`
	IsActive              bool       `db:"is_active"`
	EmailVerified         bool       `db:"email_verified"`
	VerificationTokenHash *string    `db:"verification_token_hash"`
	VerificationExpiresAt *time.Time `db:"verification_expires_at"`
	ResetTokenHash        *string    `db:"reset_token_hash"`
	ResetExpiresAt        *time.Time `db:"reset_expires_at"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

const (
	RoleUser  = "user"
	RoleOwner = "owner"
	RoleAdmin = "admin"
)
