package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/internal/aggregate"
	"github.com/doorcount/backend/repository"
)

type fakeEventRepo struct {
	events    []domain.Event
	archives  *fakeArchiveRepo
	tagErr    error
	deleteErr error
	untagged  []string
}

func (f *fakeEventRepo) committed(archiveID string) bool {
	if f.archives == nil {
		return false
	}
	for i := range f.archives.summaries {
		if f.archives.summaries[i].ID == archiveID {
			return true
		}
	}
	return false
}

func (f *fakeEventRepo) Insert(_ context.Context, event *domain.Event) (*domain.Event, error) {
	f.events = append(f.events, *event)
	return event, nil
}

func (f *fakeEventRepo) List(_ context.Context, filter repository.EventFilter) ([]domain.Event, error) {
	var out []domain.Event
	for _, ev := range f.events {
		if filter.ArchiveID != "" && ev.ArchiveID != filter.ArchiveID {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (f *fakeEventRepo) CountLive(context.Context) (int, error) {
	count := 0
	for _, ev := range f.events {
		if ev.ArchiveID == "" {
			count++
		}
	}
	return count, nil
}

func (f *fakeEventRepo) TagForArchive(_ context.Context, archiveID string) (int64, error) {
	if f.tagErr != nil {
		return 0, f.tagErr
	}
	var tagged int64
	for i := range f.events {
		if f.events[i].ArchiveID == "" {
			f.events[i].ArchiveID = archiveID
			tagged++
		}
	}
	return tagged, nil
}

func (f *fakeEventRepo) ClearArchiveTag(_ context.Context, archiveID string) error {
	f.untagged = append(f.untagged, archiveID)
	for i := range f.events {
		if f.events[i].ArchiveID == archiveID {
			f.events[i].ArchiveID = ""
		}
	}
	return nil
}

func (f *fakeEventRepo) DeleteByArchive(_ context.Context, archiveID string) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var kept []domain.Event
	var deleted int64
	for _, ev := range f.events {
		if ev.ArchiveID == archiveID {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return deleted, nil
}

func (f *fakeEventRepo) PurgeCommitted(context.Context) (int64, error) {
	var kept []domain.Event
	var purged int64
	for _, ev := range f.events {
		if ev.ArchiveID != "" && f.committed(ev.ArchiveID) {
			purged++
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return purged, nil
}

func (f *fakeEventRepo) ReclaimOrphans(context.Context) (int64, error) {
	var reclaimed int64
	for i := range f.events {
		if f.events[i].ArchiveID != "" && !f.committed(f.events[i].ArchiveID) {
			f.events[i].ArchiveID = ""
			reclaimed++
		}
	}
	return reclaimed, nil
}

type fakeArchiveRepo struct {
	summaries []domain.ArchiveSummary
	intervals map[string][]domain.ArchiveInterval
	createErr error
}

func (f *fakeArchiveRepo) Create(_ context.Context, summary *domain.ArchiveSummary, intervals []domain.ArchiveInterval) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.intervals == nil {
		f.intervals = make(map[string][]domain.ArchiveInterval)
	}
	summary.CreatedAt = time.Now()
	f.summaries = append(f.summaries, *summary)
	f.intervals[summary.ID] = intervals
	return nil
}

func (f *fakeArchiveRepo) List(context.Context, int, int) ([]domain.ArchiveSummary, error) {
	return f.summaries, nil
}

func (f *fakeArchiveRepo) Get(_ context.Context, id string) (*domain.ArchiveSummary, []domain.ArchiveInterval, error) {
	for i := range f.summaries {
		if f.summaries[i].ID == id {
			return &f.summaries[i], f.intervals[id], nil
		}
	}
	return nil, nil, domain.ErrArchiveNotFound
}

func newTestUseCase(t *testing.T, events *fakeEventRepo, archives *fakeArchiveRepo) *UseCase {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	events.archives = archives
	engine := aggregate.New(aggregate.DefaultWindow(loc), 15*time.Minute, nil)
	uc := New(events, archives, engine, nil)
	uc.now = func() time.Time {
		return time.Date(2024, 5, 1, 23, 0, 0, 0, loc)
	}
	return uc
}

func seedEvents(t *testing.T, repo *fakeEventRepo, loc *time.Location) {
	t.Helper()
	base := time.Date(2024, 5, 1, 16, 0, 0, 0, loc)
	rows := []struct {
		gender domain.Gender
		kind   domain.Kind
		offset time.Duration
	}{
		{domain.GenderMale, domain.KindEntry, 5 * time.Minute},
		{domain.GenderFemale, domain.KindEntry, 7 * time.Minute},
		{domain.GenderMale, domain.KindEntry, 40 * time.Minute},
		{domain.GenderMale, domain.KindExit, 70 * time.Minute},
		{domain.GenderFemale, domain.KindExit, 80 * time.Minute},
	}
	for i, s := range rows {
		repo.events = append(repo.events, domain.Event{
			ID:           string(rune('a' + i)),
			Gender:       s.gender,
			Kind:         s.kind,
			OccurredAt:   base.Add(s.offset),
			BusinessDate: "2024-05-01",
		})
	}
}

func TestResetRoundTripTotals(t *testing.T) {
	events := &fakeEventRepo{}
	archives := &fakeArchiveRepo{}
	uc := newTestUseCase(t, events, archives)
	seedEvents(t, events, uc.engine.Window().Location)

	// Totals the archive must reproduce, computed independently up front.
	pre, err := events.List(context.Background(), repository.EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	wantCounts := uc.engine.ClassifyCounts(pre)

	summary, err := uc.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if summary == nil {
		t.Fatal("expected a summary")
	}
	if summary.TotalEntries != 3 || summary.TotalExits != 2 {
		t.Errorf("totals = %d/%d, want 3/2", summary.TotalEntries, summary.TotalExits)
	}
	if summary.FinalCount != wantCounts.Total() {
		t.Errorf("final count = %d, want %d", summary.FinalCount, wantCounts.Total())
	}
	if summary.BusinessDate != "2024-05-01" {
		t.Errorf("business date = %s, want 2024-05-01", summary.BusinessDate)
	}
	if summary.StartTime.After(summary.EndTime) {
		t.Errorf("start %v after end %v", summary.StartTime, summary.EndTime)
	}

	if live, _ := events.CountLive(context.Background()); live != 0 {
		t.Errorf("live events = %d, want 0 after reset", live)
	}

	// Only non-trivial buckets are archived, in chronological order.
	intervals := archives.intervals[summary.ID]
	if len(intervals) != 4 {
		t.Fatalf("intervals = %d, want 4", len(intervals))
	}
	if intervals[0].IntervalStart != "16:00" || intervals[0].Entries != 2 {
		t.Errorf("first interval = %+v, want 16:00 with 2 entries", intervals[0])
	}
	if last := intervals[len(intervals)-1]; last.RunningTotal != 1 {
		t.Errorf("last interval running total = %d, want 1", last.RunningTotal)
	}
}

func TestResetEmptyIsNoOp(t *testing.T) {
	events := &fakeEventRepo{}
	archives := &fakeArchiveRepo{}
	uc := newTestUseCase(t, events, archives)

	summary, err := uc.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if summary != nil {
		t.Fatalf("expected nil summary, got %+v", summary)
	}
	if len(archives.summaries) != 0 {
		t.Error("no archive rows should be written")
	}
}

func TestResetAbortsAndUntagsOnArchiveFailure(t *testing.T) {
	events := &fakeEventRepo{}
	archives := &fakeArchiveRepo{createErr: errors.New("disk full")}
	uc := newTestUseCase(t, events, archives)
	seedEvents(t, events, uc.engine.Window().Location)

	if _, err := uc.Reset(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(events.untagged) != 1 {
		t.Errorf("expected one untag call, got %d", len(events.untagged))
	}
	if live, _ := events.CountLive(context.Background()); live != 5 {
		t.Errorf("live events = %d, want 5 (left intact for retry)", live)
	}
}

func TestResetReclaimsTagsFromInterruptedReset(t *testing.T) {
	events := &fakeEventRepo{}
	archives := &fakeArchiveRepo{}
	uc := newTestUseCase(t, events, archives)
	seedEvents(t, events, uc.engine.Window().Location)

	// A crash between tagging and the archive write leaves rows stamped with
	// an id that has no summary. They must rejoin the live set and be
	// archived by the next reset, not vanish.
	for i := range events.events {
		events.events[i].ArchiveID = "11111111-dead-dead-dead-111111111111"
	}

	summary, err := uc.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if summary == nil {
		t.Fatal("expected the orphaned events to be archived, got nothing to archive")
	}
	if summary.TotalEntries != 3 || summary.TotalExits != 2 {
		t.Errorf("totals = %d/%d, want 3/2 from the reclaimed events", summary.TotalEntries, summary.TotalExits)
	}
	if live, _ := events.CountLive(context.Background()); live != 0 {
		t.Errorf("live events = %d, want 0 after reset", live)
	}
	if len(events.events) != 0 {
		t.Errorf("events remaining = %d, want 0 (reclaimed then archived and deleted)", len(events.events))
	}
}

func TestResetSummaryCountsOutOfWindowEvents(t *testing.T) {
	events := &fakeEventRepo{}
	archives := &fakeArchiveRepo{}
	uc := newTestUseCase(t, events, archives)
	loc := uc.engine.Window().Location
	seedEvents(t, events, loc)

	// Recorded before the venue opens: no bucket carries it, but the summary
	// totals and final count must still agree with each other.
	events.events = append(events.events, domain.Event{
		ID:           "early",
		Gender:       domain.GenderFemale,
		Kind:         domain.KindEntry,
		OccurredAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, loc),
		BusinessDate: "2024-05-01",
	})

	summary, err := uc.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if summary.TotalEntries != 4 || summary.FemaleEntries != 2 {
		t.Errorf("entries = %d (female %d), want 4 (female 2) including the early event", summary.TotalEntries, summary.FemaleEntries)
	}
	if got, want := summary.FinalCount, summary.TotalEntries-summary.TotalExits; got != want {
		t.Errorf("final count = %d, want %d (derivable from the summary's own totals)", got, want)
	}
}

func TestResetSurfacesDeleteFailure(t *testing.T) {
	events := &fakeEventRepo{deleteErr: errors.New("timeout")}
	archives := &fakeArchiveRepo{}
	uc := newTestUseCase(t, events, archives)
	seedEvents(t, events, uc.engine.Window().Location)

	if _, err := uc.Reset(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	// Summary committed; rows stay tagged for the next purge, not untagged.
	if len(archives.summaries) != 1 {
		t.Errorf("summaries = %d, want 1", len(archives.summaries))
	}
	if len(events.untagged) != 0 {
		t.Errorf("tagged rows must be kept for purge, got untag calls %v", events.untagged)
	}
}
