package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/platform/httpx"
	"github.com/ledgerlens/ledgerlens/internal/shared"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Middleware wires permission guards for HTTP handlers. RequirePage is the
// advisory navigation gate; Require is the enforcement gate every mutating
// route carries. Services re-check with Evaluator.Require regardless, so a
// handler reached through an unguarded path still cannot mutate.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
	// DeniedPath is the safe view a denied page request is redirected to.
	DeniedPath string
	// DenialHook is invoked with the first guarded permission on every
	// denial. Optional; the app wires it to the denial counter.
	DenialHook func(permission string)
}

func (m Middleware) recordDenial(perms ...Permission) {
	if m.DenialHook == nil || len(perms) == 0 {
		return
	}
	m.DenialHook(string(perms[0]))
}

// PrincipalFromRequest resolves the authenticated principal from the request
// session. The empty principal means unauthenticated.
func PrincipalFromRequest(r *http.Request) tenant.Principal {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return ""
	}
	return tenant.Principal(strings.TrimSpace(sess.User()))
}

// RequirePage gates the rendering of a protected view, redirecting to the
// safe default on denial. Navigation only: the mutating routes behind the
// page enforce their own permissions.
func (m Middleware) RequirePage(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromRequest(r)
			ok, err := m.Evaluator.HasPermission(r.Context(), principal, perm)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac page guard", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "please retry")
				return
			}
			if !ok {
				m.recordDenial(perm)
				http.Redirect(w, r, m.deniedPath(), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require ensures the current principal holds every listed permission before
// the handler runs. Denials are 403 with no detail; store failures are 503.
// An empty permission list still requires a role, so a misconfigured route
// fails closed for unauthenticated principals.
func (m Middleware) Require(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromRequest(r)
			ok, err := m.Evaluator.HasAll(r.Context(), principal, perms...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "please retry")
				return
			}
			if !ok {
				m.recordDenial(perms...)
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny ensures the current principal holds at least one of the listed
// permissions. An empty list satisfies nobody and denies every request.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromRequest(r)
			ok, err := m.Evaluator.HasAny(r.Context(), principal, perms...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require any", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusServiceUnavailable, "Temporarily Unavailable", "please retry")
				return
			}
			if !ok {
				m.recordDenial(perms...)
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deniedPath() string {
	if m.DeniedPath != "" {
		return m.DeniedPath
	}
	return "/dashboard"
}
