package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlens/ledgerlens/internal/audit"
	"github.com/ledgerlens/ledgerlens/internal/rbac"
	"github.com/ledgerlens/ledgerlens/internal/tenant"
)

type recordsStore struct {
	profiles map[uuid.UUID]tenant.Profile
}

func newRecordsStore() *recordsStore {
	return &recordsStore{profiles: make(map[uuid.UUID]tenant.Profile)}
}

func (s *recordsStore) addProfile(principal tenant.Principal, companyID uuid.UUID, role tenant.Role) tenant.Profile {
	p := tenant.Profile{
		ID:        uuid.New(),
		Principal: principal,
		CompanyID: companyID,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.profiles[p.ID] = p
	return p
}

func (s *recordsStore) GetProfile(ctx context.Context, principal tenant.Principal) (tenant.Profile, error) {
	for _, p := range s.profiles {
		if p.Principal == principal {
			return p, nil
		}
	}
	return tenant.Profile{}, tenant.ErrProfileNotFound
}

func (s *recordsStore) GetProfileByID(ctx context.Context, id uuid.UUID) (tenant.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return tenant.Profile{}, tenant.ErrProfileNotFound
	}
	return p, nil
}

func (s *recordsStore) GetCompany(ctx context.Context, id uuid.UUID) (tenant.Company, error) {
	return tenant.Company{}, tenant.ErrCompanyNotFound
}

func (s *recordsStore) ListProfilesByCompany(ctx context.Context, companyID uuid.UUID) ([]tenant.Profile, error) {
	var out []tenant.Profile
	for _, p := range s.profiles {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *recordsStore) InsertProfile(ctx context.Context, profile tenant.Profile) (tenant.Profile, error) {
	s.profiles[profile.ID] = profile
	return profile, nil
}

func (s *recordsStore) WithTx(ctx context.Context, fn func(context.Context, tenant.TxStore) error) error {
	return errors.New("not used")
}

type memoryRepo struct {
	records map[uuid.UUID]Record
	calls   int
	failAll bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[uuid.UUID]Record)}
}

func (r *memoryRepo) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Record, error) {
	r.calls++
	if r.failAll {
		return nil, errors.New("boom")
	}
	var out []Record
	for _, rec := range r.records {
		if rec.CompanyID == companyID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	r.calls++
	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryRepo) Insert(ctx context.Context, record Record) (Record, error) {
	r.calls++
	if r.failAll {
		return Record{}, errors.New("boom")
	}
	record.CreatedAt = time.Now()
	r.records[record.ID] = record
	return record, nil
}

func (r *memoryRepo) Update(ctx context.Context, record Record) error {
	r.calls++
	if _, ok := r.records[record.ID]; !ok {
		return ErrRecordNotFound
	}
	r.records[record.ID] = record
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.calls++
	if _, ok := r.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepo) InsertBatch(ctx context.Context, records []Record) error {
	r.calls++
	if r.failAll {
		return errors.New("boom")
	}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return nil
}

type captureRecorder struct {
	entries []audit.Entry
}

func (c *captureRecorder) Record(ctx context.Context, entry audit.Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func newRecordsService(store *recordsStore, repo *memoryRepo, recorder audit.Recorder) *Service {
	evaluator := rbac.NewEvaluator(rbac.NewRoleResolver(store))
	return NewService(evaluator, store, repo, recorder, nil)
}

func validInput() RecordInput {
	return RecordInput{
		Category:   "revenue",
		Amount:     1250.50,
		Currency:   "usd",
		OccurredAt: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Note:       "march invoice",
	}
}

func TestCreateRecordDeniedBeforeRepoTouch(t *testing.T) {
	store := newRecordsStore()
	repo := newMemoryRepo()
	svc := newRecordsService(store, repo, nil)

	_, err := svc.CreateRecord(context.Background(), "ghost", validInput())
	require.ErrorIs(t, err, rbac.ErrPermissionDenied)
	require.Zero(t, repo.calls)
}

func TestCreateRecordUppercasesCurrency(t *testing.T) {
	store := newRecordsStore()
	companyID := uuid.New()
	store.addProfile("u1", companyID, tenant.RoleUser)
	repo := newMemoryRepo()
	svc := newRecordsService(store, repo, nil)

	created, err := svc.CreateRecord(context.Background(), "u1", validInput())
	require.NoError(t, err)
	require.Equal(t, "USD", created.Currency)
	require.Equal(t, companyID, created.CompanyID)
	require.Equal(t, tenant.Principal("u1"), created.CreatedBy)
}

func TestCreateRecordValidation(t *testing.T) {
	store := newRecordsStore()
	store.addProfile("u1", uuid.New(), tenant.RoleUser)
	repo := newMemoryRepo()
	svc := newRecordsService(store, repo, nil)

	bad := validInput()
	bad.Currency = "dollars"
	_, err := svc.CreateRecord(context.Background(), "u1", bad)
	require.ErrorIs(t, err, ErrValidation)

	bad = validInput()
	bad.Currency = "zzz"
	_, err = svc.CreateRecord(context.Background(), "u1", bad)
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "ISO 4217")

	bad = validInput()
	bad.Category = ""
	_, err = svc.CreateRecord(context.Background(), "u1", bad)
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "category")

	require.Zero(t, repo.calls)
}

func TestListRecordsScopedToCompany(t *testing.T) {
	store := newRecordsStore()
	companyA := uuid.New()
	companyB := uuid.New()
	store.addProfile("u1", companyA, tenant.RoleUser)
	store.addProfile("u2", companyB, tenant.RoleUser)
	repo := newMemoryRepo()
	svc := newRecordsService(store, repo, nil)

	_, err := svc.CreateRecord(context.Background(), "u1", validInput())
	require.NoError(t, err)
	_, err = svc.CreateRecord(context.Background(), "u2", validInput())
	require.NoError(t, err)

	list, err := svc.ListRecords(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, companyA, list[0].CompanyID)
}

func TestUpdateRecordCrossTenantDenied(t *testing.T) {
	store := newRecordsStore()
	store.addProfile("u1", uuid.New(), tenant.RoleUser)
	store.addProfile("u2", uuid.New(), tenant.RoleUser)
	repo := newMemoryRepo()
	svc := newRecordsService(store, repo, nil)

	created, err := svc.CreateRecord(context.Background(), "u1", validInput())
	require.NoError(t, err)

	next := validInput()
	next.Amount = 9
	err = svc.UpdateRecord(context.Background(), "u2", created.ID, next)
	require.ErrorIs(t, err, ErrNotPermitted)

	// untouched
	require.Equal(t, created.Amount, repo.records[created.ID].Amount)
}

func TestUpdateRecordApplied(t *testing.T) {
	store := newRecordsStore()
	store.addProfile("u1", uuid.New(), tenant.RoleUser)
	repo := newMemoryRepo()
	svc := newRecordsService(store, repo, nil)

	created, err := svc.CreateRecord(context.Background(), "u1", validInput())
	require.NoError(t, err)

	next := validInput()
	next.Amount = 77.25
	next.Currency = "eur"
	require.NoError(t, svc.UpdateRecord(context.Background(), "u1", created.ID, next))
	require.Equal(t, 77.25, repo.records[created.ID].Amount)
	require.Equal(t, "EUR", repo.records[created.ID].Currency)
}

func TestDeleteRecordCrossTenantDenied(t *testing.T) {
	store := newRecordsStore()
	store.addProfile("u1", uuid.New(), tenant.RoleUser)
	store.addProfile("u2", uuid.New(), tenant.RoleUser)
	repo := newMemoryRepo()
	svc := newRecordsService(store, repo, nil)

	created, err := svc.CreateRecord(context.Background(), "u1", validInput())
	require.NoError(t, err)

	err = svc.DeleteRecord(context.Background(), "u2", created.ID)
	require.ErrorIs(t, err, ErrNotPermitted)
	require.Contains(t, repo.records, created.ID)

	require.NoError(t, svc.DeleteRecord(context.Background(), "u1", created.ID))
	require.NotContains(t, repo.records, created.ID)
}

func TestDeleteRecordNotFound(t *testing.T) {
	store := newRecordsStore()
	store.addProfile("u1", uuid.New(), tenant.RoleUser)
	svc := newRecordsService(store, newMemoryRepo(), nil)

	err := svc.DeleteRecord(context.Background(), "u1", uuid.New())
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestImportRecordsAllOrNothing(t *testing.T) {
	store := newRecordsStore()
	companyID := uuid.New()
	store.addProfile("u1", companyID, tenant.RoleUser)
	repo := newMemoryRepo()
	recorder := &captureRecorder{}
	svc := newRecordsService(store, repo, recorder)

	bad := validInput()
	bad.Amount = 0
	_, err := svc.ImportRecords(context.Background(), "u1", []RecordInput{validInput(), bad, validInput()})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "row 2:")
	require.Empty(t, repo.records)
	require.Empty(t, recorder.entries)

	count, err := svc.ImportRecords(context.Background(), "u1", []RecordInput{validInput(), validInput()})
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Len(t, repo.records, 2)

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	require.Equal(t, audit.ActionRecordImport, entry.Action)
	require.Equal(t, companyID, entry.CompanyID)
	require.Equal(t, map[string]any{"rows": 2}, entry.Meta)
}

func TestImportRecordsEmptyBatch(t *testing.T) {
	store := newRecordsStore()
	store.addProfile("u1", uuid.New(), tenant.RoleUser)
	svc := newRecordsService(store, newMemoryRepo(), nil)

	_, err := svc.ImportRecords(context.Background(), "u1", nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRepoFailureMapsToUpstream(t *testing.T) {
	store := newRecordsStore()
	store.addProfile("u1", uuid.New(), tenant.RoleUser)
	repo := newMemoryRepo()
	repo.failAll = true
	svc := newRecordsService(store, repo, nil)

	_, err := svc.ListRecords(context.Background(), "u1")
	require.ErrorIs(t, err, ErrUpstream)

	_, err = svc.CreateRecord(context.Background(), "u1", validInput())
	require.ErrorIs(t, err, ErrUpstream)
}
