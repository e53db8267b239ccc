package aggregate

import (
	"testing"
	"time"

	"github.com/doorcount/backend/domain"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	loc, err := time.LoadLocation("America/Mexico_City")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return New(DefaultWindow(loc), 15*time.Minute, nil)
}

func at(t *testing.T, e *Engine, clock string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02 15:04", clock, e.Window().Location)
	if err != nil {
		t.Fatalf("parse %q: %v", clock, err)
	}
	return parsed
}

func event(gender domain.Gender, kind domain.Kind, occurred time.Time) domain.Event {
	return domain.Event{ID: "ev", Gender: gender, Kind: kind, OccurredAt: occurred}
}

func TestClassifyCountsEmpty(t *testing.T) {
	e := testEngine(t)
	counts := e.ClassifyCounts(nil)
	if counts.Male != 0 || counts.Female != 0 {
		t.Fatalf("expected zero counts, got %+v", counts)
	}
}

func TestClassifyCountsClampsPerEvent(t *testing.T) {
	e := testEngine(t)
	now := at(t, e, "2024-05-01 20:00")
	events := []domain.Event{
		event(domain.GenderMale, domain.KindExit, now), // exit before entry
		event(domain.GenderMale, domain.KindEntry, now.Add(time.Minute)),
		event(domain.GenderFemale, domain.KindEntry, now.Add(2*time.Minute)),
	}
	counts := e.ClassifyCounts(events)
	if counts.Male != 1 {
		t.Errorf("male = %d, want 1 (early exit clamped)", counts.Male)
	}
	if counts.Female != 1 {
		t.Errorf("female = %d, want 1", counts.Female)
	}
}

func TestClassifyCountsSkipsSystemAndMalformed(t *testing.T) {
	e := testEngine(t)
	now := at(t, e, "2024-05-01 21:00")
	events := []domain.Event{
		event(domain.GenderSystem, domain.KindSessionStart, now),
		event(domain.GenderMale, domain.KindEntry, now),
		{ID: "bad", Gender: "unknown", Kind: "entry", OccurredAt: now},
		{ID: "bad2", Gender: "male", Kind: "teleport", OccurredAt: now},
	}
	counts := e.ClassifyCounts(events)
	if counts.Male != 1 || counts.Female != 0 {
		t.Fatalf("counts = %+v, want male=1 female=0", counts)
	}
}

func TestBuildBucketsGridSize(t *testing.T) {
	e := testEngine(t)
	if got := e.GridSize(); got != 44 {
		t.Fatalf("GridSize() = %d, want 44 for 16:00-03:00 at 15m", got)
	}
	for _, events := range [][]domain.Event{
		nil,
		{event(domain.GenderMale, domain.KindEntry, at(t, e, "2024-05-01 18:07"))},
	} {
		buckets := e.BuildBuckets(events, RunningHistorical)
		if len(buckets) != 44 {
			t.Errorf("len(buckets) = %d, want 44", len(buckets))
		}
	}
}

func TestBuildBucketsOrderSpansMidnight(t *testing.T) {
	e := testEngine(t)
	buckets := e.BuildBuckets(nil, RunningHistorical)
	if buckets[0].Label != "16:00" {
		t.Errorf("first bucket = %s, want 16:00", buckets[0].Label)
	}
	if last := buckets[len(buckets)-1]; last.Label != "02:45" || last.EndLabel != "03:00" {
		t.Errorf("last bucket = %s-%s, want 02:45-03:00", last.Label, last.EndLabel)
	}
	// 23:45 must be immediately followed by 00:00.
	for i, b := range buckets {
		if b.Label == "23:45" {
			if next := buckets[i+1].Label; next != "00:00" {
				t.Errorf("bucket after 23:45 = %s, want 00:00", next)
			}
		}
	}
}

func TestBuildBucketsEndToEndScenario(t *testing.T) {
	e := testEngine(t)
	events := []domain.Event{
		event(domain.GenderMale, domain.KindEntry, at(t, e, "2024-05-01 16:05")),
		event(domain.GenderFemale, domain.KindEntry, at(t, e, "2024-05-01 16:07")),
		event(domain.GenderMale, domain.KindExit, at(t, e, "2024-05-01 16:20")),
	}
	buckets := e.BuildBuckets(events, RunningHistorical)

	first := buckets[0]
	if first.Label != "16:00" || first.MaleEntries != 1 || first.FemaleEntries != 1 {
		t.Errorf("16:00 bucket = %+v, want maleEntries=1 femaleEntries=1", first)
	}
	second := buckets[1]
	if second.Label != "16:15" || second.MaleExits != 1 {
		t.Errorf("16:15 bucket = %+v, want maleExits=1", second)
	}
	if second.RunningTotal != 1 {
		t.Errorf("running total at 16:15 = %d, want 1", second.RunningTotal)
	}
}

func TestBuildBucketsDropsOutOfWindowEvents(t *testing.T) {
	e := testEngine(t)
	events := []domain.Event{
		event(domain.GenderMale, domain.KindEntry, at(t, e, "2024-05-01 10:00")), // before open
		event(domain.GenderFemale, domain.KindEntry, at(t, e, "2024-05-02 03:30")), // after close
		event(domain.GenderMale, domain.KindEntry, at(t, e, "2024-05-01 22:00")),
	}
	buckets := e.BuildBuckets(events, RunningHistorical)
	totals := e.Totals(buckets)
	if totals.TotalEntries != 1 {
		t.Fatalf("total entries = %d, want 1 (out-of-window dropped)", totals.TotalEntries)
	}
}

func TestBuildBucketsEntrySumsMatchInGridEvents(t *testing.T) {
	e := testEngine(t)
	var events []domain.Event
	wantEntries, wantExits := 0, 0
	start := at(t, e, "2024-05-01 16:00")
	for i := 0; i < 30; i++ {
		ts := start.Add(time.Duration(i*13) * time.Minute)
		kind := domain.KindEntry
		if i%3 == 0 {
			kind = domain.KindExit
		}
		gender := domain.GenderMale
		if i%2 == 0 {
			gender = domain.GenderFemale
		}
		events = append(events, event(gender, kind, ts))
		if e.Window().Contains(ts.In(e.Window().Location).Hour()) {
			if kind == domain.KindEntry {
				wantEntries++
			} else {
				wantExits++
			}
		}
	}
	totals := e.Totals(e.BuildBuckets(events, RunningHistorical))
	if totals.TotalEntries != wantEntries {
		t.Errorf("total entries = %d, want %d", totals.TotalEntries, wantEntries)
	}
	if totals.TotalExits != wantExits {
		t.Errorf("total exits = %d, want %d", totals.TotalExits, wantExits)
	}
}

func TestRunningTotalHistoricalNeverNegative(t *testing.T) {
	e := testEngine(t)
	now := at(t, e, "2024-05-01 17:00")
	events := []domain.Event{
		event(domain.GenderMale, domain.KindExit, now),
		event(domain.GenderMale, domain.KindExit, now.Add(15*time.Minute)),
		event(domain.GenderMale, domain.KindEntry, now.Add(30*time.Minute)),
		event(domain.GenderFemale, domain.KindEntry, now.Add(45*time.Minute)),
	}
	buckets := e.BuildBuckets(events, RunningHistorical)
	for _, b := range buckets {
		if b.RunningTotal < 0 {
			t.Fatalf("running total went negative at %s", b.Label)
		}
	}
	if final := buckets[len(buckets)-1].RunningTotal; final != 2 {
		t.Errorf("final running total = %d, want 2 (deficits floored)", final)
	}
}

func TestRunningTotalCurrentStateReplicated(t *testing.T) {
	e := testEngine(t)
	now := at(t, e, "2024-05-01 18:00")
	events := []domain.Event{
		event(domain.GenderMale, domain.KindEntry, now),
		event(domain.GenderFemale, domain.KindEntry, now.Add(time.Hour)),
		event(domain.GenderMale, domain.KindExit, now.Add(2*time.Hour)),
	}
	buckets := e.BuildBuckets(events, RunningCurrentState)
	for _, b := range buckets {
		if b.RunningTotal != 1 {
			t.Fatalf("bucket %s running total = %d, want 1 everywhere", b.Label, b.RunningTotal)
		}
	}
}

func TestComputePeaksFirstBucketWinsTies(t *testing.T) {
	e := testEngine(t)
	buckets := []domain.TimeBucket{
		{Label: "18:00", Entries: 5},
		{Label: "18:15", Entries: 5},
		{Label: "18:30", Entries: 3},
	}
	peaks := e.ComputePeaks(buckets)
	if peaks.TotalEntries.Count != 5 || peaks.TotalEntries.Bucket != "18:00" {
		t.Fatalf("peak = %+v, want {5 18:00}", peaks.TotalEntries)
	}
}

func TestComputePeaksPerCategory(t *testing.T) {
	e := testEngine(t)
	events := []domain.Event{
		event(domain.GenderMale, domain.KindEntry, at(t, e, "2024-05-01 20:00")),
		event(domain.GenderMale, domain.KindEntry, at(t, e, "2024-05-01 20:05")),
		event(domain.GenderFemale, domain.KindEntry, at(t, e, "2024-05-01 21:00")),
		event(domain.GenderFemale, domain.KindExit, at(t, e, "2024-05-02 01:30")),
	}
	buckets := e.BuildBuckets(events, RunningHistorical)
	peaks := e.ComputePeaks(buckets)

	if peaks.MaleEntries.Count != 2 || peaks.MaleEntries.Bucket != "20:00" {
		t.Errorf("male entries peak = %+v, want {2 20:00}", peaks.MaleEntries)
	}
	if peaks.FemaleEntries.Count != 1 || peaks.FemaleEntries.Bucket != "21:00" {
		t.Errorf("female entries peak = %+v, want {1 21:00}", peaks.FemaleEntries)
	}
	if peaks.FemaleExits.Count != 1 || peaks.FemaleExits.Bucket != "01:30" {
		t.Errorf("female exits peak = %+v, want {1 01:30}", peaks.FemaleExits)
	}
}
