// Package archive implements the session reset: summarize the live event set,
// persist the summary plus its interval breakdown, then clear the live table.
package archive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/internal/aggregate"
	"github.com/doorcount/backend/repository"
)

type UseCase struct {
	events   repository.EventRepository
	archives repository.ArchiveRepository
	engine   *aggregate.Engine
	logger   *zap.Logger
	now      func() time.Time
}

func New(events repository.EventRepository, archives repository.ArchiveRepository, engine *aggregate.Engine, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		events:   events,
		archives: archives,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
	}
}

// Reset archives the live event set and deletes it. Returns (nil, nil) when
// there is nothing to archive.
//
// The operation is made retry-safe by tagging rows with the archive id before
// the summary is written: a delete that fails after the summary committed
// leaves tagged rows behind, and the purge step of the next reset removes
// them instead of counting them twice. Any earlier failure clears the tag and
// leaves the live data intact.
func (uc *UseCase) Reset(ctx context.Context) (*domain.ArchiveSummary, error) {
	if purged, err := uc.events.PurgeCommitted(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to purge committed archives", err)
	} else if purged > 0 {
		uc.logger.Info("purged leftovers from an interrupted reset", zap.Int64("rows", purged))
	}

	// Tags whose summary never committed (crash between tagging and the
	// archive write) are cleared so those rows rejoin the live set and get
	// archived by this pass instead of vanishing.
	if reclaimed, err := uc.events.ReclaimOrphans(ctx); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to reclaim orphaned tags", err)
	} else if reclaimed > 0 {
		uc.logger.Info("reclaimed orphan-tagged events from an interrupted reset", zap.Int64("rows", reclaimed))
	}

	archiveID := uuid.NewString()
	tagged, err := uc.events.TagForArchive(ctx, archiveID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to tag events", err)
	}
	if tagged == 0 {
		return nil, nil
	}

	events, err := uc.events.List(ctx, repository.EventFilter{ArchiveID: archiveID})
	if err != nil {
		uc.untag(ctx, archiveID)
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to read tagged events", err)
	}

	summary, intervals := uc.summarize(archiveID, events)

	if err := uc.archives.Create(ctx, summary, intervals); err != nil {
		uc.untag(ctx, archiveID)
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to write archive", err)
	}

	deleted, err := uc.events.DeleteByArchive(ctx, archiveID)
	if err != nil {
		// Summary is committed; the tagged rows stay behind and the next
		// reset's purge step removes them.
		return nil, domain.WrapError(domain.ErrCodeInternal, "archive saved but event cleanup failed, retry the reset", err)
	}

	uc.logger.Info("session archived",
		zap.String("archive_id", archiveID),
		zap.Int64("events", deleted),
		zap.Int("final_count", summary.FinalCount))
	return summary, nil
}

// summarize reduces the tagged event set to a summary row plus its non-empty
// interval breakdown. Summary totals and the final count are both computed
// over the complete event set, so an event recorded outside the bucket window
// still counts toward the summary even though no interval row carries it.
func (uc *UseCase) summarize(archiveID string, events []domain.Event) (*domain.ArchiveSummary, []domain.ArchiveInterval) {
	counts := uc.engine.ClassifyCounts(events)
	buckets := uc.engine.BuildBuckets(events, aggregate.RunningHistorical)

	summary := &domain.ArchiveSummary{
		ID:           archiveID,
		BusinessDate: uc.engine.Window().ResolveBusinessDate(uc.now()),
		FinalCount:   counts.Total(),
	}
	for i := range events {
		ev := &events[i]
		if summary.StartTime.IsZero() || ev.OccurredAt.Before(summary.StartTime) {
			summary.StartTime = ev.OccurredAt
		}
		if ev.OccurredAt.After(summary.EndTime) {
			summary.EndTime = ev.OccurredAt
		}
		if !ev.Countable() {
			continue
		}
		switch {
		case ev.Gender == domain.GenderMale && ev.Kind == domain.KindEntry:
			summary.MaleEntries++
		case ev.Gender == domain.GenderFemale && ev.Kind == domain.KindEntry:
			summary.FemaleEntries++
		case ev.Gender == domain.GenderMale && ev.Kind == domain.KindExit:
			summary.MaleExits++
		case ev.Gender == domain.GenderFemale && ev.Kind == domain.KindExit:
			summary.FemaleExits++
		}
	}
	summary.TotalEntries = summary.MaleEntries + summary.FemaleEntries
	summary.TotalExits = summary.MaleExits + summary.FemaleExits

	var intervals []domain.ArchiveInterval
	for _, b := range buckets {
		if b.Entries == 0 && b.Exits == 0 {
			continue
		}
		intervals = append(intervals, domain.ArchiveInterval{
			ArchiveID:     archiveID,
			IntervalStart: b.Label,
			IntervalEnd:   b.EndLabel,
			MaleEntries:   b.MaleEntries,
			FemaleEntries: b.FemaleEntries,
			MaleExits:     b.MaleExits,
			FemaleExits:   b.FemaleExits,
			Entries:       b.Entries,
			Exits:         b.Exits,
			RunningTotal:  b.RunningTotal,
		})
	}
	return summary, intervals
}

func (uc *UseCase) untag(ctx context.Context, archiveID string) {
	if err := uc.events.ClearArchiveTag(ctx, archiveID); err != nil {
		uc.logger.Warn("failed to clear archive tag", zap.String("archive_id", archiveID), zap.Error(err))
	}
}

// List returns archive summaries, newest first.
func (uc *UseCase) List(ctx context.Context, limit, offset int) ([]domain.ArchiveSummary, error) {
	return uc.archives.List(ctx, limit, offset)
}

// Get returns one archive summary with its interval breakdown.
func (uc *UseCase) Get(ctx context.Context, id string) (*domain.ArchiveSummary, []domain.ArchiveInterval, error) {
	return uc.archives.Get(ctx, id)
}
