package members

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ledgerlens/ledgerlens/internal/platform/httpx"
	"github.com/ledgerlens/ledgerlens/internal/rbac"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Handler exposes the member management endpoints. The route guard in front
// of these routes is advisory; the service re-checks the permission at the
// top of every operation.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers member routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermUserManage))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Put("/{profileID}/role", h.updateRole)
		r.Delete("/{principal}", h.remove)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := rbac.PrincipalFromRequest(r)
	list, err := h.service.ListMembers(r.Context(), actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": list})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var input CreateMemberInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := rbac.PrincipalFromRequest(r)
	member, err := h.service.CreateMember(r.Context(), actor, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, member)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	profileID, err := uuid.Parse(chi.URLParam(r, "profileID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "profile id must be a uuid")
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor := rbac.PrincipalFromRequest(r)
	if err := h.service.UpdateRole(r.Context(), actor, profileID, tenant.ParseRole(req.Role)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	target := tenant.Principal(strings.TrimSpace(chi.URLParam(r, "principal")))
	if target == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principal is required")
		return
	}
	actor := rbac.PrincipalFromRequest(r)
	if err := h.service.RemoveMember(r.Context(), actor, target); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrPermissionDenied), errors.Is(err, ErrNotPermitted):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrMemberNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "member not found")
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "email already registered")
	case errors.Is(err, ErrSelfRemoval), errors.Is(err, ErrLastAdmin), errors.Is(err, ErrNoCompany):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUpstream):
		httpx.RespondError(w, httpx.ErrUnavailable)
	default:
		h.logger.Error("members handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
