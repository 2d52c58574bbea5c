// AngelaMos | 2026
// handler.go

package csrf

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/go-auth/internal/core"
)

type TokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/csrf-token", h.GetToken)
}

func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.manager.Issue()
	if err != nil {
		core.InternalServerError(w, r, err)
		return
	}

	h.manager.SetCookie(w, token)
	w.Header().Set("Cache-Control", "no-store")
	core.OK(w, TokenResponse{CSRFToken: token.Value})
}
