// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email      string `json:"email"      validate:"required,email,max=255"`
	Password   string `json:"password"   validate:"required,max=128"`
	RememberMe bool   `json:"rememberMe"`
}

type RegisterRequest struct {
	Email           string `json:"email"           validate:"required,email,max=255"`
	Password        string `json:"password"        validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	FirstName       string `json:"firstName"       validate:"required,min=1,max=100"`
	LastName        string `json:"lastName"        validate:"required,min=1,max=100"`
	CompanyName     string `json:"companyName"     validate:"omitempty,max=200"`
	Role            string `json:"role"            validate:"omitempty,oneof=user owner"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token"           validate:"required,max=256"`
	Password        string `json:"password"        validate:"required,min=8,max=128"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword"     validate:"required,min=8,max=128"`
}

type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CompanyResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// AuthResponse never carries tokens; they travel in cookies.
type AuthResponse struct {
	User                 UserResponse      `json:"user"`
	Companies            []CompanyResponse `json:"companies"`
	Permissions          []string          `json:"permissions"`
	AccessTokenExpiresAt *time.Time        `json:"accessTokenExpiresAt,omitempty"`
}

type SessionInfo struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent"`
	IPAddress string    `json:"ipAddress"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Current   bool      `json:"current"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
