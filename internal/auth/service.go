package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerlens/ledgerlens/internal/identity"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// Provisioner ensures a tenant profile exists for an authenticated
// principal. First access creates the company with the principal as admin.
type Provisioner interface {
	EnsureProfile(ctx context.Context, principal tenant.Principal, companyName string) (tenant.Profile, error)
}

// Service wraps authentication business rules.
type Service struct {
	identities identity.Provider
	provision  Provisioner
	logger     *slog.Logger
}

// NewService constructs a new Service.
func NewService(identities identity.Provider, provision Provisioner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{identities: identities, provision: provision, logger: logger}
}

// Login validates credentials and resolves the caller's tenant profile,
// provisioning company and admin profile on first access.
func (s *Service) Login(ctx context.Context, email, credential string) (tenant.Profile, error) {
	principal, err := s.identities.Authenticate(ctx, email, credential)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return tenant.Profile{}, identity.ErrInvalidCredentials
		}
		s.logger.Error("authenticate", slog.Any("error", err))
		return tenant.Profile{}, fmt.Errorf("auth: authenticate: %w", err)
	}

	profile, err := s.provision.EnsureProfile(ctx, principal, companyNameFor(email))
	if err != nil {
		s.logger.Error("ensure profile", slog.Any("error", err))
		return tenant.Profile{}, fmt.Errorf("auth: provision profile: %w", err)
	}
	return profile, nil
}

// companyNameFor derives the default workspace name for a first login. The
// admin can rename it later; the domain part keeps it recognizable.
func companyNameFor(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 && at+1 < len(email) {
		return email[at+1:]
	}
	return email
}
