// AngelaMos | 2026
// csrf.go

package middleware

import (
	"net/http"
	"strings"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

const RefreshTokenHeader = "X-Refresh-Token"

type CSRFValidator interface {
	ValidateRequest(r *http.Request) error
}

// CSRF enforces the double-submit check on unsafe methods. Requests that
// authenticate by header (bearer or refresh token) are not cookie flows
// and pass through.
func CSRF(validator CSRFValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafeMethod(r.Method) || isHeaderAuthenticated(r) {
				next.ServeHTTP(w, r)
				return
			}

			if err := validator.ValidateRequest(r); err != nil {
				core.JSONError(w, core.CSRFInvalidError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isUnsafeMethod(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func isHeaderAuthenticated(r *http.Request) bool {
	if _, ok := BearerToken(r); ok {
		return true
	}
	return strings.TrimSpace(r.Header.Get(RefreshTokenHeader)) != ""
}
