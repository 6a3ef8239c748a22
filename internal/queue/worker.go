// Package queue runs the background workers that drain the payment job
// table. Jobs are claimed with FOR UPDATE SKIP LOCKED, so any number of
// worker goroutines (or replicas) can poll concurrently.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
	"escrow-service/internal/repository"
	"escrow-service/internal/usecase"
)

type Worker struct {
	jobs     repository.JobRepository
	payments *usecase.PaymentUsecase
	interval time.Duration
	count    int
	log      *zap.Logger
}

func NewWorker(jobs repository.JobRepository, payments *usecase.PaymentUsecase, count int, interval time.Duration, log *zap.Logger) *Worker {
	if count < 1 {
		count = 1
	}
	return &Worker{
		jobs:     jobs,
		payments: payments,
		interval: interval,
		count:    count,
		log:      log,
	}
}

// Start launches the worker goroutines and blocks until ctx is cancelled and
// in-flight jobs have finished.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("payment workers started", zap.Int("count", w.count))

	var wg sync.WaitGroup
	for i := 0; i < w.count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	wg.Wait()
	w.log.Info("payment workers stopped")
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain everything runnable before sleeping again.
			for w.processOne(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne claims and runs a single job. Returns false when the queue is
// empty.
func (w *Worker) processOne(ctx context.Context) bool {
	job, err := w.jobs.ClaimNext(ctx)
	if errors.Is(err, xerrors.ErrNotFound) {
		return false
	}
	if err != nil {
		w.log.Error("job claim failed", zap.Error(err))
		return false
	}

	err = w.payments.Ingest(ctx, job)
	if errors.Is(err, xerrors.ErrAlreadyProcessed) {
		// Replay of a settled payment; nothing more to do.
		err = nil
	}
	if err != nil {
		w.fail(ctx, job, err)
		return true
	}

	if err := w.jobs.MarkCompleted(ctx, job.ID); err != nil {
		w.log.Error("job completion mark failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
	w.log.Info("payment job completed",
		zap.String("job_id", job.ID), zap.String("tx_ref", job.TxRef))
	return true
}

func (w *Worker) fail(ctx context.Context, job *domain.PaymentJob, cause error) {
	attempts := job.Attempts
	if !usecase.Retryable(cause) {
		// Force the dead-letter path for failures that retrying cannot fix.
		attempts = domain.MaxJobAttempts + 1
	}

	if err := w.jobs.MarkFailed(ctx, job.ID, attempts, cause.Error()); err != nil {
		w.log.Error("job failure mark failed",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	if attempts > domain.MaxJobAttempts {
		w.log.Error("payment job dead-lettered",
			zap.String("job_id", job.ID),
			zap.String("tx_ref", job.TxRef),
			zap.Int("attempts", job.Attempts),
			zap.Error(cause))
		return
	}
	w.log.Warn("payment job scheduled for retry",
		zap.String("job_id", job.ID),
		zap.String("tx_ref", job.TxRef),
		zap.Int("attempts", job.Attempts),
		zap.Duration("backoff", domain.RetryBackoff(job.Attempts)),
		zap.Error(cause))
}
