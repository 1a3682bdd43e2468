package members

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerlens/ledgerlens/internal/audit"
	"github.com/ledgerlens/ledgerlens/internal/identity"
	"github.com/ledgerlens/ledgerlens/internal/rbac"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// CleanupEnqueuer schedules a deferred identity cleanup when the inline
// compensation of a partially completed CreateMember fails.
type CleanupEnqueuer interface {
	EnqueueIdentityCleanup(ctx context.Context, principal tenant.Principal) error
}

// Service implements the tenant-scoped member mutators. Every operation
// starts with a permission check; no statement with side effects runs
// before it succeeds.
type Service struct {
	evaluator  *rbac.Evaluator
	store      tenant.Store
	identities identity.Provider
	audit      audit.Recorder
	cache      *Cache
	cleanup    CleanupEnqueuer
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewService constructs the member service. Cache, recorder and cleanup
// enqueuer may be nil; the mutators degrade to direct reads and inline-only
// compensation.
func NewService(evaluator *rbac.Evaluator, store tenant.Store, identities identity.Provider, recorder audit.Recorder, cache *Cache, cleanup CleanupEnqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		evaluator:  evaluator,
		store:      store,
		identities: identities,
		audit:      recorder,
		cache:      cache,
		cleanup:    cleanup,
		validate:   validator.New(),
		logger:     logger,
	}
}

// CreateMember registers a new identity and binds it to the caller's
// company. If the profile insert fails after the identity was created, the
// identity is rolled back best-effort; an orphaned identity is less harmful
// than failing the caller twice.
func (s *Service) CreateMember(ctx context.Context, actor tenant.Principal, input CreateMemberInput) (Member, error) {
	if err := s.evaluator.Require(ctx, actor, rbac.PermUserManage); err != nil {
		return Member{}, err
	}

	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Member{}, fmt.Errorf("%w: %s", ErrValidation, validationMessage(fieldErrs[0]))
		}
		return Member{}, fmt.Errorf("%w: invalid input", ErrValidation)
	}
	role := tenant.ParseRole(input.Role)
	if !role.Valid() {
		return Member{}, fmt.Errorf("%w: role must be admin or user", ErrValidation)
	}

	caller, err := s.store.GetProfile(ctx, actor)
	if err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			return Member{}, ErrNoCompany
		}
		s.logger.Error("create member: resolve caller", slog.Any("error", err))
		return Member{}, ErrUpstream
	}

	principal, err := s.identities.CreateIdentity(ctx, input.Email, input.Credential)
	if err != nil {
		if identity.IsEmailTaken(err) {
			return Member{}, ErrEmailTaken
		}
		s.logger.Error("create member: create identity", slog.Any("error", err))
		return Member{}, ErrUpstream
	}

	profile, err := s.store.InsertProfile(ctx, tenant.Profile{
		Principal: principal,
		CompanyID: caller.CompanyID,
		Role:      role,
	})
	if err != nil {
		s.compensateIdentity(ctx, principal)
		s.logger.Error("create member: insert profile", slog.Any("error", err))
		return Member{}, ErrUpstream
	}

	s.recordAudit(ctx, audit.Entry{
		Actor:     actor,
		Action:    audit.ActionMemberCreate,
		Entity:    "profile",
		EntityID:  profile.ID.String(),
		CompanyID: caller.CompanyID,
		Meta:      map[string]any{"email": input.Email, "role": string(role)},
	})
	s.invalidateCache(ctx, caller.CompanyID)

	return Member{
		ProfileID: profile.ID,
		Principal: principal,
		Email:     input.Email,
		Role:      role,
		CreatedAt: profile.CreatedAt,
	}, nil
}

// UpdateRole changes a member's role. The admin-count check and the role
// write run inside one serializable store transaction, so two concurrent
// demotions cannot strand a company without administrators.
func (s *Service) UpdateRole(ctx context.Context, actor tenant.Principal, targetProfileID uuid.UUID, newRole tenant.Role) error {
	if err := s.evaluator.Require(ctx, actor, rbac.PermUserManage); err != nil {
		return err
	}
	if !newRole.Valid() {
		return fmt.Errorf("%w: role must be admin or user", ErrValidation)
	}

	var companyID uuid.UUID
	var noop bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx tenant.TxStore) error {
		caller, err := tx.GetProfile(ctx, actor)
		if err != nil {
			if errors.Is(err, tenant.ErrProfileNotFound) {
				return ErrNoCompany
			}
			return err
		}
		target, err := tx.GetProfileByID(ctx, targetProfileID)
		if err != nil {
			if errors.Is(err, tenant.ErrProfileNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if target.CompanyID != caller.CompanyID {
			s.denyCrossTenant(ctx, actor, caller.CompanyID, target.CompanyID, audit.ActionRoleUpdate, target.ID.String())
			return ErrNotPermitted
		}
		companyID = caller.CompanyID

		if target.Role == newRole {
			noop = true
			return nil
		}
		if target.Principal == actor && target.Role == tenant.RoleAdmin && newRole == tenant.RoleUser {
			others, err := tx.CountAdmins(ctx, caller.CompanyID, target.ID)
			if err != nil {
				return err
			}
			if others == 0 {
				return ErrLastAdmin
			}
		}
		return tx.UpdateProfileRole(ctx, target.ID, newRole)
	})
	if err != nil {
		return s.mapTxError(err, "update role")
	}
	if noop {
		return nil
	}

	s.recordAudit(ctx, audit.Entry{
		Actor:     actor,
		Action:    audit.ActionRoleUpdate,
		Entity:    "profile",
		EntityID:  targetProfileID.String(),
		CompanyID: companyID,
		Meta:      map[string]any{"new_role": string(newRole)},
	})
	s.invalidateCache(ctx, companyID)
	return nil
}

// RemoveMember deletes a member's identity; profile removal cascades at the
// storage layer. The guards run inside a serializable transaction, but the
// identity delete itself is a second system: the window between commit and
// delete is the documented non-atomicity of this operation.
func (s *Service) RemoveMember(ctx context.Context, actor tenant.Principal, targetPrincipal tenant.Principal) error {
	if err := s.evaluator.Require(ctx, actor, rbac.PermUserManage); err != nil {
		return err
	}

	var companyID uuid.UUID
	var targetProfileID uuid.UUID
	err := s.store.WithTx(ctx, func(ctx context.Context, tx tenant.TxStore) error {
		caller, err := tx.GetProfile(ctx, actor)
		if err != nil {
			if errors.Is(err, tenant.ErrProfileNotFound) {
				return ErrNoCompany
			}
			return err
		}
		target, err := tx.GetProfile(ctx, targetPrincipal)
		if err != nil {
			if errors.Is(err, tenant.ErrProfileNotFound) {
				return ErrMemberNotFound
			}
			return err
		}
		if target.CompanyID != caller.CompanyID {
			s.denyCrossTenant(ctx, actor, caller.CompanyID, target.CompanyID, audit.ActionMemberRemove, target.ID.String())
			return ErrNotPermitted
		}
		if target.Principal == actor {
			return ErrSelfRemoval
		}
		if target.Role == tenant.RoleAdmin {
			others, err := tx.CountAdmins(ctx, caller.CompanyID, target.ID)
			if err != nil {
				return err
			}
			if others == 0 {
				return ErrLastAdmin
			}
		}
		companyID = caller.CompanyID
		targetProfileID = target.ID
		return nil
	})
	if err != nil {
		return s.mapTxError(err, "remove member")
	}

	if err := s.identities.DeleteIdentity(ctx, targetPrincipal); err != nil {
		s.logger.Error("remove member: delete identity", slog.Any("error", err))
		return ErrUpstream
	}

	s.recordAudit(ctx, audit.Entry{
		Actor:     actor,
		Action:    audit.ActionMemberRemove,
		Entity:    "profile",
		EntityID:  targetProfileID.String(),
		CompanyID: companyID,
		Meta:      map[string]any{"principal": string(targetPrincipal)},
	})
	s.invalidateCache(ctx, companyID)
	return nil
}

// ListMembers returns the caller's company members joined with their login
// emails, served from the Redis cache when warm.
func (s *Service) ListMembers(ctx context.Context, actor tenant.Principal) ([]Member, error) {
	if err := s.evaluator.Require(ctx, actor, rbac.PermUserManage); err != nil {
		return nil, err
	}

	caller, err := s.store.GetProfile(ctx, actor)
	if err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			return nil, ErrNoCompany
		}
		s.logger.Error("list members: resolve caller", slog.Any("error", err))
		return nil, ErrUpstream
	}

	if cached, ok := s.cache.Get(ctx, caller.CompanyID); ok {
		return cached, nil
	}

	var (
		profiles   []tenant.Profile
		identities []identity.Identity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = s.store.ListProfilesByCompany(gctx, caller.CompanyID)
		return err
	})
	g.Go(func() error {
		var err error
		identities, err = s.identities.ListIdentities(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("list members: fetch", slog.Any("error", err))
		return nil, ErrUpstream
	}
	emails := make(map[tenant.Principal]string, len(identities))
	for _, id := range identities {
		emails[id.Principal] = id.Email
	}

	members := make([]Member, 0, len(profiles))
	for _, p := range profiles {
		members = append(members, Member{
			ProfileID: p.ID,
			Principal: p.Principal,
			Email:     emails[p.Principal],
			Role:      p.Role,
			CreatedAt: p.CreatedAt,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Email < members[j].Email })

	s.cache.Set(ctx, caller.CompanyID, members)
	return members, nil
}

// compensateIdentity rolls back a minted identity after a failed profile
// insert. Failure is logged and handed to the background cleanup queue,
// never escalated: the primary failure is already on its way to the caller.
func (s *Service) compensateIdentity(ctx context.Context, principal tenant.Principal) {
	err := s.identities.DeleteIdentity(ctx, principal)
	if err == nil {
		return
	}
	s.logger.Error("create member: compensation failed, identity orphaned",
		slog.String("principal", string(principal)), slog.Any("error", err))
	if s.cleanup == nil {
		return
	}
	if err := s.cleanup.EnqueueIdentityCleanup(ctx, principal); err != nil {
		s.logger.Error("create member: enqueue identity cleanup", slog.Any("error", err))
	}
}

func (s *Service) denyCrossTenant(ctx context.Context, actor tenant.Principal, callerCompany, targetCompany uuid.UUID, action, targetID string) {
	// Full detail stays internal; the caller only sees ErrNotPermitted.
	s.logger.Warn("cross-tenant access denied",
		slog.String("actor", string(actor)),
		slog.String("action", action),
		slog.String("caller_company", callerCompany.String()),
		slog.String("target_company", targetCompany.String()),
		slog.String("target_profile", targetID))
	s.recordAudit(ctx, audit.Entry{
		Actor:     actor,
		Action:    action + ".denied",
		Entity:    "profile",
		EntityID:  targetID,
		CompanyID: callerCompany,
		Meta: map[string]any{
			"reason":         "cross-tenant target",
			"target_company": targetCompany.String(),
		},
	})
}

func (s *Service) mapTxError(err error, op string) error {
	switch {
	case errors.Is(err, ErrNoCompany),
		errors.Is(err, ErrMemberNotFound),
		errors.Is(err, ErrNotPermitted),
		errors.Is(err, ErrSelfRemoval),
		errors.Is(err, ErrLastAdmin),
		errors.Is(err, ErrValidation):
		return err
	default:
		s.logger.Error(op, slog.Any("error", err))
		return ErrUpstream
	}
}

func (s *Service) recordAudit(ctx context.Context, entry audit.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

func (s *Service) invalidateCache(ctx context.Context, companyID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, companyID); err != nil {
		s.logger.Warn("invalidate member cache", slog.Any("error", err))
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldName(fe))
	case "email":
		return "email must be a valid address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fieldName(fe), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fieldName(fe), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fieldName(fe))
	}
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "Email":
		return "email"
	case "Credential":
		return "credential"
	case "Role":
		return "role"
	default:
		return fe.Field()
	}
}
