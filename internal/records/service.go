package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/ledgerlens/ledgerlens/internal/audit"
	"github.com/ledgerlens/ledgerlens/internal/rbac"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

// RepositoryPort describes record persistence used by Service.
type RepositoryPort interface {
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	Insert(ctx context.Context, record Record) (Record, error)
	Update(ctx context.Context, record Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	// InsertBatch persists all rows inside one transaction; an import is
	// all-or-nothing.
	InsertBatch(ctx context.Context, records []Record) error
}

// Service implements the financial-data operations. Like the member
// mutators, every operation begins with its permission check.
type Service struct {
	evaluator *rbac.Evaluator
	store     tenant.Store
	repo      RepositoryPort
	audit     audit.Recorder
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService constructs the records service.
func NewService(evaluator *rbac.Evaluator, store tenant.Store, repo RepositoryPort, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		evaluator: evaluator,
		store:     store,
		repo:      repo,
		audit:     recorder,
		validate:  validator.New(),
		logger:    logger,
	}
}

// ListRecords returns the caller's company records.
func (s *Service) ListRecords(ctx context.Context, actor tenant.Principal) ([]Record, error) {
	if err := s.evaluator.Require(ctx, actor, rbac.PermFinanceView); err != nil {
		return nil, err
	}
	caller, err := s.callerProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListByCompany(ctx, caller.CompanyID)
	if err != nil {
		s.logger.Error("list records", slog.Any("error", err))
		return nil, ErrUpstream
	}
	return list, nil
}

// CreateRecord persists one record in the caller's company.
func (s *Service) CreateRecord(ctx context.Context, actor tenant.Principal, input RecordInput) (Record, error) {
	if err := s.evaluator.Require(ctx, actor, rbac.PermFinanceCreate); err != nil {
		return Record{}, err
	}
	if err := s.validateInput(input); err != nil {
		return Record{}, err
	}
	caller, err := s.callerProfile(ctx, actor)
	if err != nil {
		return Record{}, err
	}
	created, err := s.repo.Insert(ctx, s.toRecord(caller, actor, input))
	if err != nil {
		s.logger.Error("create record", slog.Any("error", err))
		return Record{}, ErrUpstream
	}
	return created, nil
}

// UpdateRecord mutates a record after the tenant check.
func (s *Service) UpdateRecord(ctx context.Context, actor tenant.Principal, id uuid.UUID, input RecordInput) error {
	if err := s.evaluator.Require(ctx, actor, rbac.PermFinanceUpdate); err != nil {
		return err
	}
	if err := s.validateInput(input); err != nil {
		return err
	}
	caller, err := s.callerProfile(ctx, actor)
	if err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		s.logger.Error("update record: fetch", slog.Any("error", err))
		return ErrUpstream
	}
	if existing.CompanyID != caller.CompanyID {
		s.logger.Warn("cross-tenant record update denied",
			slog.String("actor", string(actor)),
			slog.String("record", id.String()))
		return ErrNotPermitted
	}
	existing.Category = input.Category
	existing.Amount = input.Amount
	existing.Currency = strings.ToUpper(input.Currency)
	existing.OccurredAt = input.OccurredAt
	existing.Note = input.Note
	if err := s.repo.Update(ctx, existing); err != nil {
		s.logger.Error("update record", slog.Any("error", err))
		return ErrUpstream
	}
	return nil
}

// DeleteRecord removes a record after the tenant check.
func (s *Service) DeleteRecord(ctx context.Context, actor tenant.Principal, id uuid.UUID) error {
	if err := s.evaluator.Require(ctx, actor, rbac.PermFinanceDelete); err != nil {
		return err
	}
	caller, err := s.callerProfile(ctx, actor)
	if err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		s.logger.Error("delete record: fetch", slog.Any("error", err))
		return ErrUpstream
	}
	if existing.CompanyID != caller.CompanyID {
		s.logger.Warn("cross-tenant record delete denied",
			slog.String("actor", string(actor)),
			slog.String("record", id.String()))
		return ErrNotPermitted
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("delete record", slog.Any("error", err))
		return ErrUpstream
	}
	return nil
}

// ImportRecords persists a batch of already-parsed rows. Every row is
// validated before anything is written; a bad row fails the whole import
// with its position in the message.
func (s *Service) ImportRecords(ctx context.Context, actor tenant.Principal, rows []RecordInput) (int, error) {
	if err := s.evaluator.RequireAll(ctx, actor, rbac.PermCSVUpload, rbac.PermFinanceCreate); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: import requires at least one row", ErrValidation)
	}
	for i, row := range rows {
		if err := s.validateInput(row); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	caller, err := s.callerProfile(ctx, actor)
	if err != nil {
		return 0, err
	}

	batch := make([]Record, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, s.toRecord(caller, actor, row))
	}
	if err := s.repo.InsertBatch(ctx, batch); err != nil {
		s.logger.Error("import records", slog.Any("error", err))
		return 0, ErrUpstream
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, audit.Entry{
			Actor:     actor,
			Action:    audit.ActionRecordImport,
			Entity:    "records",
			EntityID:  caller.CompanyID.String(),
			CompanyID: caller.CompanyID,
			Meta:      map[string]any{"rows": len(batch)},
		}); err != nil {
			s.logger.Error("audit record import", slog.Any("error", err))
		}
	}
	return len(batch), nil
}

func (s *Service) callerProfile(ctx context.Context, actor tenant.Principal) (tenant.Profile, error) {
	caller, err := s.store.GetProfile(ctx, actor)
	if err != nil {
		if errors.Is(err, tenant.ErrProfileNotFound) {
			return tenant.Profile{}, ErrNoCompany
		}
		s.logger.Error("resolve caller profile", slog.Any("error", err))
		return tenant.Profile{}, ErrUpstream
	}
	return caller, nil
}

func (s *Service) toRecord(caller tenant.Profile, actor tenant.Principal, input RecordInput) Record {
	return Record{
		ID:         uuid.New(),
		CompanyID:  caller.CompanyID,
		Category:   input.Category,
		Amount:     input.Amount,
		Currency:   strings.ToUpper(input.Currency),
		OccurredAt: input.OccurredAt,
		Note:       input.Note,
		CreatedBy:  actor,
	}
}

func (s *Service) validateInput(input RecordInput) error {
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s is invalid", ErrValidation, strings.ToLower(fieldErrs[0].Field()))
		}
		return fmt.Errorf("%w: invalid input", ErrValidation)
	}
	if _, err := currency.ParseISO(input.Currency); err != nil {
		return fmt.Errorf("%w: currency must be an ISO 4217 code", ErrValidation)
	}
	return nil
}
