package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerlens/ledgerlens/internal/audit"
	"github.com/ledgerlens/ledgerlens/internal/auth"
	"github.com/ledgerlens/ledgerlens/internal/members"
	"github.com/ledgerlens/ledgerlens/internal/observability"
	"github.com/ledgerlens/ledgerlens/internal/platform/httpx"
	"github.com/ledgerlens/ledgerlens/internal/rbac"
	"github.com/ledgerlens/ledgerlens/internal/records"
	"github.com/ledgerlens/ledgerlens/internal/shared"
	"github.com/ledgerlens/ledgerlens/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	RBACMiddleware rbac.Middleware
	Evaluator      *rbac.Evaluator

	AuthHandler        *auth.Handler
	MembersHandler     *members.Handler
	RecordsHandler     *records.Handler
	AuditHandler       *audit.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// The dashboard is the safe landing spot denied page requests are sent
	// to, so its own gate redirects to /auth instead.
	dashGuard := params.RBACMiddleware
	dashGuard.DeniedPath = "/auth/login"
	r.Group(func(r chi.Router) {
		r.Use(dashGuard.RequirePage(rbac.PermDashboardView))
		r.Get("/dashboard", params.dashboard)
	})

	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.RecordsHandler != nil {
		r.Route("/records", params.RecordsHandler.MountRoutes)
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequirePage(rbac.PermAdminPanel))
		if params.MembersHandler != nil {
			r.Route("/members", params.MembersHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func (p RouterParams) dashboard(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromRequest(r)
	perms, err := p.Evaluator.Permissions(r.Context(), principal)
	if err != nil {
		p.Logger.Error("dashboard permissions", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}
	granted := make([]string, 0, len(perms))
	for _, perm := range perms {
		granted = append(granted, string(perm))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"principal":   string(principal),
		"permissions": granted,
	})
}
