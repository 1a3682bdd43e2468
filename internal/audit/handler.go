package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerlens/ledgerlens/internal/platform/httpx"
	"github.com/ledgerlens/ledgerlens/internal/rbac"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Handler serves the admin panel's audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	store   tenant.Store
	guard   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, store tenant.Store, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, store: store, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(rbac.PermAdminPanel))
		r.Get("/", h.timeline)
	})
}

type timelineRow struct {
	ID       string         `json:"id"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromRequest(r)
	profile, err := h.store.GetProfile(r.Context(), principal)
	if err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
			return
		}
		h.logger.Error("audit timeline profile", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}

	q := r.URL.Query()
	filters := TimelineFilters{
		CompanyID: profile.CompanyID,
		Action:    q.Get("action"),
	}
	if v := q.Get("page"); v != "" {
		filters.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		filters.PageSize, _ = strconv.Atoi(v)
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}

	rows := make([]timelineRow, 0, len(result.Rows))
	for _, e := range result.Rows {
		rows = append(rows, timelineRow{
			ID:       e.ID.String(),
			Actor:    string(e.Actor),
			Action:   e.Action,
			Entity:   e.Entity,
			EntityID: e.EntityID,
			Meta:     e.Meta,
			At:       e.At,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"rows": rows,
		"paging": map[string]any{
			"page":      result.Paging.Page,
			"page_size": result.Paging.PageSize,
			"has_next":  result.Paging.HasNext,
			"prev_page": result.Paging.PrevPage,
			"next_page": result.Paging.NextPage,
		},
	})
}
