// Package aggregate turns the raw append-only event log into derived views:
// live per-gender counts, a fixed 15-minute bucket grid with running totals,
// and peak statistics. The engine is stateless; every pass rebuilds its
// output from scratch.
package aggregate

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/doorcount/backend/domain"
)

// RunningMode selects how per-bucket running totals are derived.
type RunningMode int

const (
	// RunningHistorical performs a true cumulative scan: each bucket's total
	// is the previous total plus entries minus exits, floored at zero. Used
	// for historical reconstruction.
	RunningHistorical RunningMode = iota
	// RunningCurrentState replicates the final net occupancy into every
	// bucket. Only meaningful when re-deriving "current state as of now".
	RunningCurrentState
)

// Engine holds the bucketing configuration shared by the live counter, the
// dashboard and the archiver.
type Engine struct {
	window DayWindow
	width  time.Duration
	logger *zap.Logger
}

// New builds an engine for the given day window and bucket width.
func New(window DayWindow, width time.Duration, logger *zap.Logger) *Engine {
	if window.Location == nil {
		window.Location = time.UTC
	}
	if width <= 0 {
		width = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{window: window, width: width, logger: logger}
}

// Window exposes the configured day window.
func (e *Engine) Window() DayWindow {
	return e.window
}

// GridSize returns the fixed number of buckets in a full day grid.
func (e *Engine) GridSize() int {
	return e.window.Hours() * e.slotsPerHour()
}

func (e *Engine) slotsPerHour() int {
	return int(time.Hour / e.width)
}

// ClassifyCounts reduces the event list to net per-gender occupancy.
//
// Clamping policy: each gender's count is clamped at zero after every event,
// uniformly with the bucket cumulative scan. An exit replayed before its
// matching entry is understated rather than ever producing a negative count.
// System rows and malformed gender/kind values are skipped with a warning.
func (e *Engine) ClassifyCounts(events []domain.Event) domain.CurrentCount {
	var counts domain.CurrentCount
	for i := range events {
		ev := &events[i]
		if ev.Gender == domain.GenderSystem {
			continue
		}
		if !ev.Countable() {
			if domain.ValidGender(ev.Gender) && domain.ValidKind(ev.Kind) {
				continue
			}
			e.logger.Warn("skipping malformed event",
				zap.String("event_id", ev.ID),
				zap.String("gender", string(ev.Gender)),
				zap.String("kind", string(ev.Kind)))
			continue
		}
		delta := ev.Delta()
		switch ev.Gender {
		case domain.GenderMale:
			counts.Male += delta
			if counts.Male < 0 {
				counts.Male = 0
			}
		case domain.GenderFemale:
			counts.Female += delta
			if counts.Female < 0 {
				counts.Female = 0
			}
		}
	}
	return counts
}

// BuildBuckets generates the full ordered bucket grid for one business day
// and accumulates the events into it. The grid always has GridSize buckets,
// in chronological order (evening hours first, post-midnight hours last),
// independent of the input; gaps stay at zero instead of being absent.
// Events whose local time falls outside the window are dropped with a log.
func (e *Engine) BuildBuckets(events []domain.Event, mode RunningMode) []domain.TimeBucket {
	buckets, index := e.emptyGrid()

	for i := range events {
		ev := &events[i]
		if !ev.Countable() {
			if ev.Gender != domain.GenderSystem {
				e.logger.Warn("skipping malformed event",
					zap.String("event_id", ev.ID),
					zap.String("gender", string(ev.Gender)),
					zap.String("kind", string(ev.Kind)))
			}
			continue
		}
		local := ev.OccurredAt.In(e.window.Location)
		if !e.window.Contains(local.Hour()) {
			e.logger.Warn("event outside day window",
				zap.String("event_id", ev.ID),
				zap.Time("local_time", local))
			continue
		}
		label := e.bucketLabel(local)
		pos, ok := index[label]
		if !ok {
			// Cannot happen while Contains and the grid agree on the window.
			e.logger.Warn("no bucket for label", zap.String("label", label))
			continue
		}
		b := &buckets[pos]
		switch {
		case ev.Gender == domain.GenderMale && ev.Kind == domain.KindEntry:
			b.MaleEntries++
			b.Entries++
		case ev.Gender == domain.GenderFemale && ev.Kind == domain.KindEntry:
			b.FemaleEntries++
			b.Entries++
		case ev.Gender == domain.GenderMale && ev.Kind == domain.KindExit:
			b.MaleExits++
			b.Exits++
		case ev.Gender == domain.GenderFemale && ev.Kind == domain.KindExit:
			b.FemaleExits++
			b.Exits++
		}
	}

	e.applyRunningTotals(buckets, mode)
	return buckets
}

// Totals sums a bucket grid into day totals. FinalCount is the running total
// of the last bucket.
func (e *Engine) Totals(buckets []domain.TimeBucket) domain.DayTotals {
	var t domain.DayTotals
	for i := range buckets {
		b := &buckets[i]
		t.TotalEntries += b.Entries
		t.TotalExits += b.Exits
		t.MaleEntries += b.MaleEntries
		t.FemaleEntries += b.FemaleEntries
		t.MaleExits += b.MaleExits
		t.FemaleExits += b.FemaleExits
	}
	if len(buckets) > 0 {
		t.FinalCount = buckets[len(buckets)-1].RunningTotal
	}
	return t
}

// ComputePeaks scans the bucket sequence once and records, per category, the
// maximum count and the bucket where it was reached. The first bucket to set
// a strict maximum wins ties.
func (e *Engine) ComputePeaks(buckets []domain.TimeBucket) domain.PeakReport {
	var report domain.PeakReport
	for i := range buckets {
		b := &buckets[i]
		updatePeak(&report.TotalEntries, b.Entries, b.Label)
		updatePeak(&report.TotalExits, b.Exits, b.Label)
		updatePeak(&report.MaleEntries, b.MaleEntries, b.Label)
		updatePeak(&report.FemaleEntries, b.FemaleEntries, b.Label)
		updatePeak(&report.MaleExits, b.MaleExits, b.Label)
		updatePeak(&report.FemaleExits, b.FemaleExits, b.Label)
	}
	return report
}

func updatePeak(stat *domain.PeakStat, count int, label string) {
	if stat.Bucket == "" && stat.Count == 0 {
		stat.Bucket = label
	}
	if count > stat.Count {
		stat.Count = count
		stat.Bucket = label
	}
}

func (e *Engine) applyRunningTotals(buckets []domain.TimeBucket, mode RunningMode) {
	switch mode {
	case RunningCurrentState:
		total := 0
		for i := range buckets {
			total += buckets[i].Entries - buckets[i].Exits
		}
		if total < 0 {
			total = 0
		}
		for i := range buckets {
			buckets[i].RunningTotal = total
		}
	default:
		running := 0
		for i := range buckets {
			running += buckets[i].Entries - buckets[i].Exits
			if running < 0 {
				running = 0
			}
			buckets[i].RunningTotal = running
		}
	}
}

// emptyGrid builds the zeroed grid in chronological order (open hour through
// 23:xx, then 00:xx through the close hour) and an index from label to slot.
func (e *Engine) emptyGrid() ([]domain.TimeBucket, map[string]int) {
	slots := e.slotsPerHour()
	step := int(e.width / time.Minute)
	buckets := make([]domain.TimeBucket, 0, e.GridSize())
	index := make(map[string]int, e.GridSize())

	appendHour := func(hour int) {
		for s := 0; s < slots; s++ {
			start := s * step
			end := start + step
			endHour := hour
			if end >= 60 {
				end = 0
				endHour = (hour + 1) % 24
			}
			b := domain.TimeBucket{
				Label:    fmt.Sprintf("%02d:%02d", hour, start),
				EndLabel: fmt.Sprintf("%02d:%02d", endHour, end),
			}
			index[b.Label] = len(buckets)
			buckets = append(buckets, b)
		}
	}

	for h := e.window.OpenHour; h < 24; h++ {
		appendHour(h)
	}
	for h := 0; h < e.window.CloseHour; h++ {
		appendHour(h)
	}
	return buckets, index
}

func (e *Engine) bucketLabel(local time.Time) string {
	step := int(e.width / time.Minute)
	minute := (local.Minute() / step) * step
	return fmt.Sprintf("%02d:%02d", local.Hour(), minute)
}
