// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
	ErrRateLimited  = errors.New("rate limited")

	ErrInvalidInput = fmt.Errorf("invalid input: %w", ErrValidation)
	ErrDuplicateKey = fmt.Errorf("duplicate key: %w", ErrConflict)

	ErrTokenInvalid = fmt.Errorf("token invalid: %w", ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("token expired: %w", ErrUnauthorized)
	ErrTokenRevoked = fmt.Errorf("token revoked: %w", ErrUnauthorized)
	ErrTokenReuse   = fmt.Errorf("token reuse detected: %w", ErrUnauthorized)
	ErrCSRFInvalid  = fmt.Errorf("csrf token invalid: %w", ErrForbidden)
)

// Failure reasons recorded in metrics and logs. Never written to a response.
const (
	ReasonInvalidCredentials = "invalid_credentials"
	ReasonAccountDeactivated = "account_deactivated"
	ReasonMissingToken       = "missing_token"
	ReasonInvalidToken       = "invalid_token"
	ReasonExpiredToken       = "expired_token"
	ReasonTokenReuse         = "token_reuse_detected"
	ReasonValidation         = "validation_failed"
	ReasonConflict           = "email_taken"
	ReasonForbidden          = "forbidden"
	ReasonInternal           = "internal_error"
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
	Details    map[string]string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AuthFailure tags an authentication error with the reason it happened.
type AuthFailure struct {
	Reason string
	Err    error
}

func (f *AuthFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *AuthFailure) Unwrap() error {
	return f.Err
}

func NewAuthFailure(reason string, err error) *AuthFailure {
	if err == nil {
		err = ErrUnauthorized
	}
	return &AuthFailure{Reason: reason, Err: err}
}

// FailureReason extracts the reason label for metrics. Unknown errors map
// onto the broadest matching category.
func FailureReason(err error) string {
	var f *AuthFailure
	if errors.As(err, &f) {
		return f.Reason
	}

	switch {
	case errors.Is(err, ErrTokenReuse):
		return ReasonTokenReuse
	case errors.Is(err, ErrTokenExpired):
		return ReasonExpiredToken
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenRevoked):
		return ReasonInvalidToken
	case errors.Is(err, ErrUnauthorized):
		return ReasonInvalidCredentials
	case errors.Is(err, ErrValidation):
		return ReasonValidation
	case errors.Is(err, ErrConflict):
		return ReasonConflict
	case errors.Is(err, ErrForbidden):
		return ReasonForbidden
	default:
		return ReasonInternal
	}
}

func ValidationError(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Details:    details,
	}
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, "UNAUTHORIZED")
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		fmt.Sprintf("%s not found", resource),
		http.StatusNotFound,
		"NOT_FOUND",
	)
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrConflict,
		fmt.Sprintf("%s already exists", field),
		http.StatusConflict,
		"CONFLICT",
	)
}

func InternalError() *AppError {
	return NewAppError(
		ErrInternal,
		"an internal error occurred",
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
	)
}

func TokenExpiredError() *AppError {
	return NewAppError(ErrTokenExpired, "token has expired", http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TokenRevokedError() *AppError {
	return NewAppError(ErrTokenRevoked, "token has been revoked", http.StatusUnauthorized, "TOKEN_REVOKED")
}

func TokenInvalidError() *AppError {
	return NewAppError(ErrTokenInvalid, "invalid token", http.StatusUnauthorized, "TOKEN_INVALID")
}

// SessionInvalidError is the single response for every refresh failure,
// including detected token reuse.
func SessionInvalidError() *AppError {
	return NewAppError(
		ErrUnauthorized,
		"session is invalid or has expired",
		http.StatusUnauthorized,
		"SESSION_INVALID",
	)
}

func CSRFInvalidError() *AppError {
	return NewAppError(
		ErrCSRFInvalid,
		"CSRF token missing or invalid",
		http.StatusForbidden,
		"CSRF_INVALID",
	)
}

func RateLimitedError(message string) *AppError {
	return NewAppError(ErrRateLimited, message, http.StatusTooManyRequests, "RATE_LIMITED")
}
