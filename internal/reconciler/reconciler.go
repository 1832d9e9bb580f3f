// Package reconciler periodically re-derives running balances for every
// ledger partition.
package reconciler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"cashbook/internal/logger"
	"cashbook/internal/services"
)

const jobName = "reconcile-balances"

// Reconciler runs LedgerServicer.ReconcileAll on a fixed interval.
type Reconciler struct {
	scheduler gocron.Scheduler
	ledger    services.LedgerServicer
	interval  time.Duration
	timeout   time.Duration
	log       *zap.SugaredLogger
}

// New creates a reconciler. An interval of zero or less disables the job;
// Start then does nothing.
func New(ledger services.LedgerServicer, interval time.Duration) (*Reconciler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	timeout := interval
	if timeout <= 0 || timeout > 30*time.Minute {
		timeout = 30 * time.Minute
	}
	return &Reconciler{
		scheduler: s,
		ledger:    ledger,
		interval:  interval,
		timeout:   timeout,
		log:       logger.Named("reconciler"),
	}, nil
}

// Start registers the job and starts the scheduler.
func (r *Reconciler) Start() error {
	if r.interval <= 0 {
		r.log.Infow("reconciler disabled")
		return nil
	}

	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.Run),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	r.scheduler.Start()
	r.log.Infow("reconciler started", "interval", r.interval.String())
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish.
func (r *Reconciler) Stop() error {
	return r.scheduler.Shutdown()
}

// Run performs one reconciliation pass and returns its result.
func (r *Reconciler) Run() *services.ReconcileResult {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := time.Now()
	result, err := r.ledger.ReconcileAll(ctx)
	if err != nil {
		r.log.Errorw("reconcile pass failed", "error", err)
		return result
	}
	r.log.Infow("reconcile pass finished",
		"partitions", result.Partitions,
		"rows_updated", result.RowsUpdated,
		"failed", result.Failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}
