// Package counter implements the live occupancy counter: seeded from a full
// reduction of the event log, optimistically updated on staff actions and
// reconciled by full refetch whenever a change notification arrives.
package counter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/internal/aggregate"
	"github.com/doorcount/backend/internal/snapshot"
	"github.com/doorcount/backend/repository"
)

// ConnectionHealth reports whether the event store is reachable. Mutating
// actions are rejected while offline.
type ConnectionHealth interface {
	IsOnline() bool
}

// Resetter archives and clears the live event set.
type Resetter interface {
	Reset(ctx context.Context) (*domain.ArchiveSummary, error)
}

// State is the snapshot returned to clients.
type State struct {
	Counts       domain.CurrentCount `json:"counts"`
	Total        int                 `json:"total"`
	BusinessDate string              `json:"business_date"`
	Stale        bool                `json:"stale"`
}

type UseCase struct {
	events    repository.EventRepository
	notifier  repository.ChangeNotifier
	archiver  Resetter
	engine    *aggregate.Engine
	health    ConnectionHealth
	snapshots *snapshot.Store
	logger    *zap.Logger
	debounce  time.Duration
	now       func() time.Time

	mu     sync.Mutex
	counts domain.CurrentCount
	seeded bool
	timer  *time.Timer
}

func New(
	events repository.EventRepository,
	notifier repository.ChangeNotifier,
	archiver Resetter,
	engine *aggregate.Engine,
	health ConnectionHealth,
	snapshots *snapshot.Store,
	debounce time.Duration,
	logger *zap.Logger,
) *UseCase {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		events:    events,
		notifier:  notifier,
		archiver:  archiver,
		engine:    engine,
		health:    health,
		snapshots: snapshots,
		logger:    logger,
		debounce:  debounce,
		now:       time.Now,
	}
}

// BusinessDate returns the business-day label for "now".
func (uc *UseCase) BusinessDate() string {
	return uc.engine.Window().ResolveBusinessDate(uc.now())
}

// Seed performs the initial full reduction. Failure leaves the counter
// unseeded; Current then falls back to the persisted snapshot marked stale.
func (uc *UseCase) Seed(ctx context.Context) error {
	return uc.Reconcile(ctx)
}

// Current returns the live counts. When the counter has not been seeded (or
// the store is unreachable) it serves the last persisted snapshot, flagged
// stale, so door staff still see the last known figure.
func (uc *UseCase) Current(ctx context.Context) (State, error) {
	date := uc.BusinessDate()

	uc.mu.Lock()
	seeded := uc.seeded
	counts := uc.counts
	uc.mu.Unlock()

	if seeded {
		return State{Counts: counts, Total: counts.Total(), BusinessDate: date}, nil
	}

	if uc.snapshots != nil {
		snap, err := uc.snapshots.Load(date)
		if err != nil {
			uc.logger.Warn("snapshot load failed", zap.Error(err))
		} else if snap != nil {
			c := snap.Counts()
			return State{Counts: c, Total: c.Total(), BusinessDate: date, Stale: true}, nil
		}
	}
	return State{BusinessDate: date, Stale: true}, nil
}

// Record logs one entry or exit. The local count is updated optimistically
// before the write; if the write fails the delta is rolled back and the error
// surfaced, leaving reconciliation to repair any residual drift.
func (uc *UseCase) Record(ctx context.Context, gender domain.Gender, kind domain.Kind) (*domain.Event, error) {
	if gender != domain.GenderMale && gender != domain.GenderFemale {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "gender must be male or female", nil)
	}
	if kind != domain.KindEntry && kind != domain.KindExit {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "kind must be entry or exit", nil)
	}
	if uc.health != nil && !uc.health.IsOnline() {
		return nil, domain.ErrStoreOffline
	}

	occurred := uc.now()
	event := &domain.Event{
		Gender:       gender,
		Kind:         kind,
		OccurredAt:   occurred,
		BusinessDate: uc.engine.Window().ResolveBusinessDate(occurred),
	}

	before := uc.applyDelta(event)

	stored, err := uc.events.Insert(ctx, event)
	if err != nil {
		uc.restore(before)
		return nil, domain.WrapError(domain.ErrCodeInternal, "failed to record event", err)
	}

	if uc.notifier != nil {
		change := repository.Change{
			Op:           repository.ChangeInsert,
			Table:        "entries",
			BusinessDate: stored.BusinessDate,
			Event:        stored,
		}
		if err := uc.notifier.Publish(ctx, change); err != nil {
			uc.logger.Warn("change publish failed", zap.Error(err))
		}
	}
	return stored, nil
}

// Reset archives the current session and zeroes the counter on success.
func (uc *UseCase) Reset(ctx context.Context) (*domain.ArchiveSummary, error) {
	summary, err := uc.archiver.Reset(ctx)
	if err != nil {
		return nil, err
	}

	uc.mu.Lock()
	uc.counts = domain.CurrentCount{}
	uc.seeded = true
	uc.mu.Unlock()
	uc.persistSnapshot()

	if uc.notifier != nil {
		change := repository.Change{Op: repository.ChangeDelete, Table: "entries"}
		if err := uc.notifier.Publish(ctx, change); err != nil {
			uc.logger.Warn("change publish failed", zap.Error(err))
		}
	}
	return summary, nil
}

// Reconcile refetches the current business day and replaces the in-memory
// counts with a full reduction. Self-healing under missed or duplicate
// notifications.
func (uc *UseCase) Reconcile(ctx context.Context) error {
	date := uc.BusinessDate()
	events, err := uc.events.List(ctx, repository.EventFilter{BusinessDate: date, LiveOnly: true})
	if err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "failed to fetch events", err)
	}

	counts := uc.engine.ClassifyCounts(events)

	uc.mu.Lock()
	uc.counts = counts
	uc.seeded = true
	uc.mu.Unlock()

	uc.persistSnapshot()
	return nil
}

// Watch consumes change notifications until ctx is cancelled. Bursts collapse
// into a single reconcile: the pending timer is reset on every notification.
func (uc *UseCase) Watch(ctx context.Context) error {
	changes, err := uc.notifier.Subscribe(ctx)
	if err != nil {
		return err
	}
	uc.logger.Info("counter watching change notifications")

	for {
		select {
		case <-ctx.Done():
			uc.stopTimer()
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				uc.stopTimer()
				return nil
			}
			if change.Table != "" && change.Table != "entries" {
				continue
			}
			if change.BusinessDate != "" && change.BusinessDate != uc.BusinessDate() {
				continue
			}
			uc.scheduleReconcile(ctx)
		}
	}
}

func (uc *UseCase) scheduleReconcile(ctx context.Context) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.timer != nil {
		uc.timer.Stop()
	}
	uc.timer = time.AfterFunc(uc.debounce, func() {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := uc.Reconcile(recCtx); err != nil {
			uc.logger.Warn("reconcile failed", zap.Error(err))
		}
	})
}

func (uc *UseCase) stopTimer() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.timer != nil {
		uc.timer.Stop()
		uc.timer = nil
	}
}

// applyDelta optimistically applies the event and returns the counts to
// restore on write failure.
func (uc *UseCase) applyDelta(event *domain.Event) domain.CurrentCount {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	before := uc.counts
	delta := event.Delta()
	switch event.Gender {
	case domain.GenderMale:
		uc.counts.Male += delta
		if uc.counts.Male < 0 {
			uc.counts.Male = 0
		}
	case domain.GenderFemale:
		uc.counts.Female += delta
		if uc.counts.Female < 0 {
			uc.counts.Female = 0
		}
	}
	return before
}

func (uc *UseCase) restore(counts domain.CurrentCount) {
	uc.mu.Lock()
	uc.counts = counts
	uc.mu.Unlock()
}

func (uc *UseCase) persistSnapshot() {
	if uc.snapshots == nil {
		return
	}
	uc.mu.Lock()
	counts := uc.counts
	uc.mu.Unlock()
	if err := uc.snapshots.Save(uc.BusinessDate(), counts); err != nil {
		uc.logger.Warn("snapshot save failed", zap.Error(err))
	}
}
