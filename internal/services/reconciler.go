// Package services hosts background workers that run for the lifetime of the
// process.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	counterUC "github.com/doorcount/backend/usecase/counter"
)

// Reconciler periodically refetches the live event set and rebuilds the
// counter from scratch. It backstops the notification path: a missed pub/sub
// message can skew the in-memory count for at most one interval.
type Reconciler struct {
	counter  *counterUC.UseCase
	interval time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewReconciler(counter *counterUC.UseCase, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		counter:  counter,
		interval: interval,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
	}
}

func (r *Reconciler) Start() error {
	schedule := fmt.Sprintf("@every %s", r.interval)
	_, err := r.cron.AddFunc(schedule, r.run)
	if err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))
	return nil
}

// Stop halts the schedule and waits for an in-flight run to finish, bounded
// by ctx.
func (r *Reconciler) Stop(ctx context.Context) error {
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := r.counter.Reconcile(ctx); err != nil {
		r.logger.Warn("periodic reconcile failed", zap.Error(err))
	}
}
