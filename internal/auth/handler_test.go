package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/identity"
	"github.com/ledgerlens/ledgerlens/internal/shared"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

type stubProvider struct {
	principals map[string]tenant.Principal // email -> principal
	password   string
}

func (p *stubProvider) CreateIdentity(ctx context.Context, email, credential string) (tenant.Principal, error) {
	return "", identity.ErrEmailTaken
}

func (p *stubProvider) DeleteIdentity(ctx context.Context, principal tenant.Principal) error {
	return nil
}

func (p *stubProvider) ListIdentities(ctx context.Context) ([]identity.Identity, error) {
	return nil, nil
}

func (p *stubProvider) Authenticate(ctx context.Context, email, credential string) (tenant.Principal, error) {
	principal, ok := p.principals[email]
	if !ok || credential != p.password {
		return "", identity.ErrInvalidCredentials
	}
	return principal, nil
}

type stubProvisioner struct {
	profiles map[tenant.Principal]tenant.Profile
	ensured  int
}

func (p *stubProvisioner) EnsureProfile(ctx context.Context, principal tenant.Principal, companyName string) (tenant.Profile, error) {
	p.ensured++
	if existing, ok := p.profiles[principal]; ok {
		return existing, nil
	}
	profile := tenant.Profile{
		ID:        uuid.New(),
		Principal: principal,
		CompanyID: uuid.New(),
		Role:      tenant.RoleAdmin,
	}
	if p.profiles == nil {
		p.profiles = make(map[tenant.Principal]tenant.Profile)
	}
	p.profiles[principal] = profile
	return profile, nil
}

func newAuthHandler(t *testing.T) (*Handler, *stubProvisioner) {
	t.Helper()
	provider := &stubProvider{
		principals: map[string]tenant.Principal{"owner@acme.test": "p-owner"},
		password:   "correct-horse",
	}
	provisioner := &stubProvisioner{}
	service := NewService(provider, provisioner, nil)
	return NewHandler(nil, service, shared.NewSessionManager(nil, "lls", 0, false)), provisioner
}

func postLogin(t *testing.T, h *Handler, body any) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	sess := &shared.Session{}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)
	return rec, sess
}

func TestLoginSuccessBindsSession(t *testing.T) {
	h, provisioner := newAuthHandler(t)

	rec, sess := postLogin(t, h, map[string]string{
		"email":    "owner@acme.test",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "p-owner", sess.User())
	require.Equal(t, 1, provisioner.ensured)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "p-owner", resp.Principal)
	require.Equal(t, string(tenant.RoleAdmin), resp.Role)
	require.Contains(t, resp.Permissions, "admin.panel")
	require.Contains(t, resp.Permissions, "users.manage")
}

func TestLoginInvalidCredentials(t *testing.T) {
	h, provisioner := newAuthHandler(t)

	rec, sess := postLogin(t, h, map[string]string{
		"email":    "owner@acme.test",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, sess.User())
	require.Zero(t, provisioner.ensured)
}

func TestLoginValidation(t *testing.T) {
	h, _ := newAuthHandler(t)

	rec, _ := postLogin(t, h, map[string]string{"email": "not-an-email", "password": "short"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginProvisionsAdminOnFirstAccess(t *testing.T) {
	h, provisioner := newAuthHandler(t)

	rec, _ := postLogin(t, h, map[string]string{
		"email":    "owner@acme.test",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	profile := provisioner.profiles["p-owner"]
	require.Equal(t, tenant.RoleAdmin, profile.Role)

	// second login reuses the provisioned profile
	rec, _ = postLogin(t, h, map[string]string{
		"email":    "owner@acme.test",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, profile.ID, provisioner.profiles["p-owner"].ID)
}

func TestCompanyNameFor(t *testing.T) {
	require.Equal(t, "acme.test", companyNameFor("owner@acme.test"))
	require.Equal(t, "opaque-id", companyNameFor("opaque-id"))
}

func TestLogoutDestroysSession(t *testing.T) {
	h, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	sess := &shared.Session{}
	sess.SetUser("p-owner")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	h.handleLogout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, sess.User())
}
