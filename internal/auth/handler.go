// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
	"github.com/carterperez-dev/templates/go-auth/internal/middleware"
	"github.com/carterperez-dev/templates/go-auth/internal/session"
)

const (
	forgotPasswordMessage = "if that email is registered, a reset link has been sent"
	maxBodyBytes          = 1 << 20
)

// CookieClearer drops a cookie the handler does not own, such as the CSRF
// cookie on logout.
type CookieClearer interface {
	ClearCookie(w http.ResponseWriter)
}

type Handler struct {
	service   *Service
	transport *session.Transport
	csrf      CookieClearer
	validator *validator.Validate
}

func NewHandler(
	service *Service,
	transport *session.Transport,
	csrf CookieClearer,
) *Handler {
	return &Handler{
		service:   service,
		transport: transport,
		csrf:      csrf,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/reset-password", h.ResetPassword)
		r.Post("/verify-email", h.VerifyEmail)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/user", h.GetUser)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.GetSessions)
			r.Delete("/sessions/{sessionID}", h.RevokeSession)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req, sessionMeta(r))
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			core.JSONError(w, core.UnauthorizedError("invalid email or password"))
			return
		}
		core.InternalServerError(w, r, err)
		return
	}

	h.writeSession(w, result)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			core.JSONError(w, core.DuplicateError("email"))
		case core.IsAppError(err):
			core.JSONError(w, err)
		default:
			core.InternalServerError(w, r, err)
		}
		return
	}

	h.writeSession(w, result)
}

// Refresh answers every rejected token with the same body so callers
// cannot tell reuse from expiry.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, _ := h.transport.RefreshTokenFromRequest(r)

	result, err := h.service.Refresh(r.Context(), raw, sessionMeta(r))
	if err != nil {
		if errors.Is(err, core.ErrUnauthorized) {
			h.transport.ClearAuthCookies(w)
			core.JSONError(w, core.SessionInvalidError())
			return
		}
		core.InternalServerError(w, r, err)
		return
	}

	h.writeSession(w, result)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	raw, _ := h.transport.RefreshTokenFromRequest(r)
	if err := h.service.Logout(r.Context(), userID, raw); err != nil {
		core.InternalServerError(w, r, err)
		return
	}

	h.clearSession(w)
	core.OK(w, MessageResponse{Message: "logged out"})
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.LogoutAll(r.Context(), userID); err != nil {
		core.InternalServerError(w, r, err)
		return
	}

	h.clearSession(w)
	core.OK(w, MessageResponse{Message: "all sessions logged out"})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, MessageResponse{Message: forgotPasswordMessage})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}

	core.OK(w, MessageResponse{Message: "password has been reset"})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}

	core.OK(w, MessageResponse{Message: "email verified"})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	resp, err := h.service.CurrentUser(
		r.Context(),
		userID,
		r.URL.Query().Get("companyId"),
	)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "no access to this company")
		case errors.Is(err, core.ErrUnauthorized):
			core.Unauthorized(w, "")
		default:
			core.InternalServerError(w, r, err)
		}
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	raw, _ := h.transport.RefreshTokenFromRequest(r)
	sessions, err := h.service.ListSessions(r.Context(), userID, raw)
	if err != nil {
		core.InternalServerError(w, r, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		core.BadRequest(w, "session ID required")
		return
	}

	if err := h.service.RevokeSession(r.Context(), userID, sessionID); err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "session")
		case errors.Is(err, core.ErrForbidden):
			core.Forbidden(w, "cannot revoke another user's session")
		default:
			core.InternalServerError(w, r, err)
		}
		return
	}

	core.OK(w, MessageResponse{Message: "session revoked"})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.ChangePassword(r.Context(), userID, req, sessionMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrUnauthorized):
			core.JSONError(w, core.UnauthorizedError("current password is incorrect"))
		case core.IsAppError(err):
			core.JSONError(w, err)
		default:
			core.InternalServerError(w, r, err)
		}
		return
	}

	h.writeSession(w, result)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.ValidationFailed(w, err)
		return false
	}

	return true
}

func (h *Handler) writeSession(w http.ResponseWriter, result *AuthResult) {
	t := result.Tokens
	h.transport.SetAuthCookies(
		w,
		t.AccessToken,
		t.RefreshToken,
		t.AccessExpiresAt,
		t.RefreshExpiresAt,
		t.Persistent,
	)
	core.OK(w, result.Response)
}

func (h *Handler) clearSession(w http.ResponseWriter) {
	h.transport.ClearAuthCookies(w)
	if h.csrf != nil {
		h.csrf.ClearCookie(w)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}
	core.InternalServerError(w, r, err)
}

func sessionMeta(r *http.Request) SessionMeta {
	return SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	}
}
