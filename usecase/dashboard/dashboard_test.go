package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/internal/aggregate"
	"github.com/doorcount/backend/repository"
)

type fakeEventRepo struct {
	events []domain.Event
}

func (f *fakeEventRepo) Insert(_ context.Context, event *domain.Event) (*domain.Event, error) {
	f.events = append(f.events, *event)
	return event, nil
}

func (f *fakeEventRepo) List(_ context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range f.events {
		if filter.BusinessDate != "" && ev.BusinessDate != filter.BusinessDate {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeEventRepo) CountLive(context.Context) (int, error)               { return len(f.events), nil }
func (f *fakeEventRepo) TagForArchive(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeEventRepo) ClearArchiveTag(context.Context, string) error        { return nil }
func (f *fakeEventRepo) DeleteByArchive(context.Context, string) (int64, error) {
	return 0, nil
}
func (f *fakeEventRepo) PurgeCommitted(context.Context) (int64, error) { return 0, nil }
func (f *fakeEventRepo) ReclaimOrphans(context.Context) (int64, error) { return 0, nil }

func newTestUseCase(t *testing.T) (*UseCase, *fakeEventRepo, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	repo := &fakeEventRepo{}
	engine := aggregate.New(aggregate.DefaultWindow(loc), 15*time.Minute, nil)
	return New(repo, engine, time.Millisecond, nil), repo, loc
}

func TestLoadDateBuildsFullReport(t *testing.T) {
	uc, repo, loc := newTestUseCase(t)
	base := time.Date(2024, 5, 1, 18, 0, 0, 0, loc)
	repo.events = []domain.Event{
		{ID: "1", Gender: domain.GenderMale, Kind: domain.KindEntry, OccurredAt: base, BusinessDate: "2024-05-01"},
		{ID: "2", Gender: domain.GenderFemale, Kind: domain.KindEntry, OccurredAt: base.Add(5 * time.Minute), BusinessDate: "2024-05-01"},
		{ID: "3", Gender: domain.GenderMale, Kind: domain.KindExit, OccurredAt: base.Add(20 * time.Minute), BusinessDate: "2024-05-01"},
	}

	report, err := uc.LoadDate(context.Background(), "2024-05-01")
	if err != nil {
		t.Fatalf("LoadDate: %v", err)
	}
	if len(report.Buckets) != 44 {
		t.Errorf("buckets = %d, want full 44-slot grid", len(report.Buckets))
	}
	if report.Events != 3 {
		t.Errorf("events = %d, want 3", report.Events)
	}
	if report.Totals.TotalEntries != 2 || report.Totals.TotalExits != 1 {
		t.Errorf("totals = %+v, want 2 entries / 1 exit", report.Totals)
	}
	if report.Peaks.TotalEntries.Bucket != "18:00" || report.Peaks.TotalEntries.Count != 2 {
		t.Errorf("entries peak = %+v, want {2 18:00}", report.Peaks.TotalEntries)
	}
	if report.Totals.FinalCount != 1 {
		t.Errorf("final count = %d, want 1", report.Totals.FinalCount)
	}

	if cached := uc.Cached(); cached == nil || cached.Date != "2024-05-01" {
		t.Errorf("cached report = %+v, want the loaded date", cached)
	}
}

func TestLoadDateRejectsMalformedDate(t *testing.T) {
	uc, _, _ := newTestUseCase(t)
	_, err := uc.LoadDate(context.Background(), "05/01/2024")
	if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestLoadDateEmptyDayIsAllZero(t *testing.T) {
	uc, _, _ := newTestUseCase(t)
	report, err := uc.LoadDate(context.Background(), "2024-05-01")
	if err != nil {
		t.Fatalf("LoadDate: %v", err)
	}
	if len(report.Buckets) != 44 {
		t.Fatalf("buckets = %d, want 44", len(report.Buckets))
	}
	for _, b := range report.Buckets {
		if b.Entries != 0 || b.Exits != 0 || b.RunningTotal != 0 {
			t.Fatalf("bucket %s not zero: %+v", b.Label, b)
		}
	}
}

func TestDebouncedReloadDoesNotStealNewerSelection(t *testing.T) {
	uc, repo, loc := newTestUseCase(t)
	repo.events = []domain.Event{
		{ID: "1", Gender: domain.GenderMale, Kind: domain.KindEntry,
			OccurredAt: time.Date(2024, 5, 1, 20, 0, 0, 0, loc), BusinessDate: "2024-05-01"},
	}

	if _, err := uc.LoadDate(context.Background(), "2024-05-01"); err != nil {
		t.Fatalf("LoadDate: %v", err)
	}

	// A notification for the old date arrives, then the user switches dates
	// before the debounce fires.
	uc.scheduleReload(context.Background(), "2024-05-01")
	if _, err := uc.LoadDate(context.Background(), "2024-05-02"); err != nil {
		t.Fatalf("LoadDate: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	uc.mu.Lock()
	selected := uc.selected
	uc.mu.Unlock()
	if selected != "2024-05-02" {
		t.Errorf("selected = %s, want 2024-05-02 (stale reload must not re-select)", selected)
	}
	if cached := uc.Cached(); cached == nil || cached.Date != "2024-05-02" {
		t.Errorf("cached = %+v, want 2024-05-02", cached)
	}
}

func TestReloadSkipsDeselectedDate(t *testing.T) {
	uc, _, _ := newTestUseCase(t)
	if _, err := uc.LoadDate(context.Background(), "2024-05-02"); err != nil {
		t.Fatalf("LoadDate: %v", err)
	}

	if err := uc.reload(context.Background(), "2024-05-01"); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cached := uc.Cached(); cached == nil || cached.Date != "2024-05-02" {
		t.Errorf("cached = %+v, want 2024-05-02 untouched", cached)
	}
}

func TestSelectingNewDateDropsStaleCache(t *testing.T) {
	uc, repo, loc := newTestUseCase(t)
	repo.events = []domain.Event{
		{ID: "1", Gender: domain.GenderMale, Kind: domain.KindEntry,
			OccurredAt: time.Date(2024, 5, 1, 20, 0, 0, 0, loc), BusinessDate: "2024-05-01"},
	}

	if _, err := uc.LoadDate(context.Background(), "2024-05-01"); err != nil {
		t.Fatalf("LoadDate: %v", err)
	}

	// Simulate an in-flight load of the old date finishing after the user
	// switched: its generation is stale and must not land in the cache.
	oldGen := uc.generation.Load()
	if _, err := uc.LoadDate(context.Background(), "2024-05-02"); err != nil {
		t.Fatalf("LoadDate: %v", err)
	}
	uc.store(oldGen, "2024-05-01", &DayReport{Date: "2024-05-01"})

	if cached := uc.Cached(); cached == nil || cached.Date != "2024-05-02" {
		t.Fatalf("cached = %+v, want 2024-05-02 (stale write dropped)", cached)
	}
}
