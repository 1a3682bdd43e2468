package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlens/ledgerlens/internal/platform/httpx"
)

// PermissionsHandler exposes the caller's effective permissions so the UI
// can hide controls it may not use. Rendering hints only; every operation
// behind a control re-checks on the server.
type PermissionsHandler struct {
	logger    *slog.Logger
	evaluator *Evaluator
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, evaluator *Evaluator) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, evaluator: evaluator}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromRequest(r)
	perms, err := h.evaluator.Permissions(r.Context(), principal)
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "please retry")
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}
