package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubTimelineRepo struct {
	rows       []Entry
	lastLimit  int
	lastOffset int
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if limit > len(s.rows) {
		limit = len(s.rows)
	}
	return s.rows[:limit], nil
}

func TestServiceTimelinePaging(t *testing.T) {
	companyID := uuid.New()
	repo := &stubTimelineRepo{
		rows: []Entry{
			{ID: uuid.New(), Action: ActionRoleUpdate, Entity: "profile", EntityID: "1", CompanyID: companyID, At: time.Now()},
			{ID: uuid.New(), Action: ActionMemberCreate, Entity: "profile", EntityID: "2", CompanyID: companyID, At: time.Now()},
			{ID: uuid.New(), Action: ActionMemberRemove, Entity: "profile", EntityID: "3", CompanyID: companyID, At: time.Now()},
		},
	}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		CompanyID: companyID,
		Page:      1,
		PageSize:  2,
	})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if !result.Paging.HasNext {
		t.Fatalf("expected hasNext true")
	}
	if repo.lastLimit != 3 {
		t.Fatalf("expected limit 3, got %d", repo.lastLimit)
	}
	if repo.lastOffset != 0 {
		t.Fatalf("expected offset 0, got %d", repo.lastOffset)
	}
}

func TestServiceTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)
	if _, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastLimit != 51 {
		t.Fatalf("expected clamped limit 51, got %d", repo.lastLimit)
	}

	if _, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3, PageSize: 10}); err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if repo.lastOffset != 20 {
		t.Fatalf("expected offset 20, got %d", repo.lastOffset)
	}
}
