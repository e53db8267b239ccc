// Package dashboard serves historical views: one business day of events
// reduced to the full bucket grid, peaks and totals.
package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/doorcount/backend/domain"
	"github.com/doorcount/backend/internal/aggregate"
	"github.com/doorcount/backend/repository"
)

// DayReport is the aggregated view of one business day.
type DayReport struct {
	Date    string              `json:"date"`
	Buckets []domain.TimeBucket `json:"buckets"`
	Peaks   domain.PeakReport   `json:"peaks"`
	Totals  domain.DayTotals    `json:"totals"`
	Events  int                 `json:"events"`
}

type UseCase struct {
	events   repository.EventRepository
	engine   *aggregate.Engine
	logger   *zap.Logger
	debounce time.Duration

	// generation invalidates in-flight loads when the watched date changes,
	// so a late response can never overwrite newer state.
	generation atomic.Uint64

	mu       sync.Mutex
	selected string
	cached   *DayReport
	timer    *time.Timer
}

func New(events repository.EventRepository, engine *aggregate.Engine, debounce time.Duration, logger *zap.Logger) *UseCase {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		events:   events,
		engine:   engine,
		logger:   logger,
		debounce: debounce,
	}
}

// LoadDate selects a business day and runs the full historical
// reconstruction: bucket grid with cumulative running totals, peaks, totals.
func (uc *UseCase) LoadDate(ctx context.Context, date string) (*DayReport, error) {
	if _, _, err := uc.engine.Window().DateRange(date); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "date must be YYYY-MM-DD", err)
	}

	gen := uc.select_(date)

	report, err := uc.build(ctx, date)
	if err != nil {
		return nil, err
	}

	uc.store(gen, date, report)
	return report, nil
}

func (uc *UseCase) build(ctx context.Context, date string) (*DayReport, error) {
	events, err := uc.events.List(ctx, repository.EventFilter{BusinessDate: date})
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "failed to fetch events", err)
	}

	buckets := uc.engine.BuildBuckets(events, aggregate.RunningHistorical)
	return &DayReport{
		Date:    date,
		Buckets: buckets,
		Peaks:   uc.engine.ComputePeaks(buckets),
		Totals:  uc.engine.Totals(buckets),
		Events:  len(events),
	}, nil
}

// reload recomputes a date without selecting it. A debounced reload captured
// for a date the user has since navigated away from must neither steal the
// selection nor touch the cache; the date and generation checks drop it.
func (uc *UseCase) reload(ctx context.Context, date string) error {
	uc.mu.Lock()
	if uc.selected != date {
		uc.mu.Unlock()
		return nil
	}
	gen := uc.generation.Load()
	uc.mu.Unlock()

	report, err := uc.build(ctx, date)
	if err != nil {
		return err
	}

	uc.store(gen, date, report)
	return nil
}

// Cached returns the last computed report for the currently selected date,
// or nil when nothing has been loaded yet.
func (uc *UseCase) Cached() *DayReport {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.cached
}

// Watch reloads the selected date when a change notification lands inside
// its window, debounced so a burst of writes causes one recompute.
func (uc *UseCase) Watch(ctx context.Context, notifier repository.ChangeNotifier) error {
	changes, err := notifier.Subscribe(ctx)
	if err != nil {
		return err
	}
	uc.logger.Info("dashboard watching change notifications")

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
			uc.mu.Lock()
			selected := uc.selected
			uc.mu.Unlock()
			if selected == "" {
				continue
			}
			if change.BusinessDate != "" && change.BusinessDate != selected {
				continue
			}
			uc.scheduleReload(ctx, selected)
		}
	}
}

func (uc *UseCase) scheduleReload(ctx context.Context, date string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.timer != nil {
		uc.timer.Stop()
	}
	uc.timer = time.AfterFunc(uc.debounce, func() {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := uc.reload(loadCtx, date); err != nil {
			uc.logger.Warn("dashboard reload failed", zap.String("date", date), zap.Error(err))
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

func (uc *UseCase) select_(date string) uint64 {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.selected != date {
		uc.selected = date
		uc.cached = nil
		return uc.generation.Add(1)
	}
	return uc.generation.Load()
}

func (uc *UseCase) store(gen uint64, date string, report *DayReport) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.generation.Load() != gen || uc.selected != date {
		// A newer date selection superseded this load; drop it.
		return
	}
	uc.cached = report
}
