package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/shared"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

func requestAs(principal string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/members", nil)
	sess := &shared.Session{}
	if principal != "" {
		sess.SetUser(principal)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func guardWithStore(store *stubStore) Middleware {
	return Middleware{Evaluator: newTestEvaluator(store), DeniedPath: "/dashboard"}
}

func TestRequirePageRedirectsOnDenial(t *testing.T) {
	store := &stubStore{profiles: map[tenant.Principal]tenant.Profile{
		"user-1": {ID: uuid.New(), Principal: "user-1", Role: tenant.RoleUser},
	}}
	guard := guardWithStore(store)

	var called bool
	handler := guard.RequirePage(PermAdminPanel)(okHandler(&called))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("user-1"))

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/dashboard", res.Header().Get("Location"))
	require.False(t, called)
}

func TestRequirePagePassesWhenGranted(t *testing.T) {
	store := &stubStore{profiles: map[tenant.Principal]tenant.Profile{
		"admin-1": {ID: uuid.New(), Principal: "admin-1", Role: tenant.RoleAdmin},
	}}
	guard := guardWithStore(store)

	var called bool
	handler := guard.RequirePage(PermAdminPanel)(okHandler(&called))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("admin-1"))

	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, called)
}

func TestRequireRejectsWithForbidden(t *testing.T) {
	store := &stubStore{profiles: map[tenant.Principal]tenant.Profile{
		"user-1": {ID: uuid.New(), Principal: "user-1", Role: tenant.RoleUser},
	}}
	guard := guardWithStore(store)

	var called bool
	handler := guard.Require(PermUserManage)(okHandler(&called))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("user-1"))

	require.Equal(t, http.StatusForbidden, res.Code)
	require.False(t, called)
}

func TestRequireRejectsUnauthenticated(t *testing.T) {
	guard := guardWithStore(&stubStore{})

	var called bool
	handler := guard.Require(PermDashboardView)(okHandler(&called))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(""))

	require.Equal(t, http.StatusForbidden, res.Code)
	require.False(t, called)

	// Missing session entirely behaves the same.
	res = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/members", nil)
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
	require.False(t, called)
}

func TestRequireAnyPassesOnPartialGrant(t *testing.T) {
	store := &stubStore{profiles: map[tenant.Principal]tenant.Profile{
		"user-1": {ID: uuid.New(), Principal: "user-1", Role: tenant.RoleUser},
	}}
	guard := guardWithStore(store)

	var called bool
	handler := guard.RequireAny(PermUserManage, PermDashboardView)(okHandler(&called))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("user-1"))

	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, called)
}

func TestGuardWithNoPermissionsFailsClosed(t *testing.T) {
	store := &stubStore{profiles: map[tenant.Principal]tenant.Profile{
		"user-1": {ID: uuid.New(), Principal: "user-1", Role: tenant.RoleUser},
	}}
	guard := guardWithStore(store)

	var called bool
	handler := guard.Require()(okHandler(&called))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs(""))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.False(t, called)

	// Any role satisfies an empty conjunction.
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("user-1"))
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, called)

	// The empty disjunction denies everyone.
	called = false
	handler = guard.RequireAny()(okHandler(&called))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, requestAs("user-1"))
	require.Equal(t, http.StatusForbidden, res.Code)
	require.False(t, called)
}

func TestPrincipalFromRequest(t *testing.T) {
	require.Equal(t, tenant.Principal("p-1"), PrincipalFromRequest(requestAs("p-1")))
	require.Equal(t, tenant.Principal(""), PrincipalFromRequest(requestAs("")))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.Background())
	require.Equal(t, tenant.Principal(""), PrincipalFromRequest(req))
}
