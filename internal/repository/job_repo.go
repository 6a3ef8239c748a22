package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
)

// JobRepository is the durable payment-job queue. Claiming uses
// FOR UPDATE SKIP LOCKED so multiple workers can poll the same table without
// handing out the same job twice.
type JobRepository interface {
	Enqueue(ctx context.Context, job *domain.PaymentJob) error
	// ClaimNext atomically picks the oldest runnable job and marks it
	// PROCESSING. Returns ErrNotFound when the queue is empty.
	ClaimNext(ctx context.Context) (*domain.PaymentJob, error)
	MarkCompleted(ctx context.Context, jobID string) error
	// MarkFailed schedules a retry, or dead-letters the job once attempts
	// are exhausted.
	MarkFailed(ctx context.Context, jobID string, attempts int, lastErr string) error
	GetByID(ctx context.Context, jobID string) (*domain.PaymentJob, error)
}

type jobRepo struct {
	db *pgxpool.Pool
}

func NewJobRepo(db *pgxpool.Pool) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Enqueue(ctx context.Context, job *domain.PaymentJob) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payment_jobs (
			id, tx_ref, paid_amount, gateway_ref, payment_method,
			status, attempts, next_run_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (tx_ref) DO NOTHING`,
		job.ID, job.TxRef, job.PaidAmount, job.GatewayRef, job.PaymentMethod,
		domain.JobPending, 0, job.NextRunAt, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue payment job: %w", err)
	}
	return nil
}

func (r *jobRepo) ClaimNext(ctx context.Context) (*domain.PaymentJob, error) {
	var j domain.PaymentJob
	err := r.db.QueryRow(ctx, `
		UPDATE payment_jobs
		SET status = 'PROCESSING', attempts = attempts + 1
		WHERE id = (
			SELECT id FROM payment_jobs
			WHERE status = 'PENDING' AND next_run_at <= now()
			ORDER BY next_run_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, tx_ref, paid_amount, gateway_ref, payment_method,
		          status, attempts, COALESCE(last_error, ''), next_run_at, created_at`,
	).Scan(
		&j.ID, &j.TxRef, &j.PaidAmount, &j.GatewayRef, &j.PaymentMethod,
		&j.Status, &j.Attempts, &j.LastError, &j.NextRunAt, &j.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim payment job: %w", err)
	}
	return &j, nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, jobID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE payment_jobs SET status = 'COMPLETED' WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete payment job: %w", err)
	}
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, jobID string, attempts int, lastErr string) error {
	// Attempt n schedules retry n at the n-th backoff step; the job dies
	// only after every step of the schedule has been consumed.
	status := domain.JobPending
	nextRun := time.Now().UTC().Add(domain.RetryBackoff(attempts))
	if attempts > domain.MaxJobAttempts {
		status = domain.JobDead
	}
	_, err := r.db.Exec(ctx, `
		UPDATE payment_jobs
		SET status = $2, last_error = $3, next_run_at = $4
		WHERE id = $1`,
		jobID, status, lastErr, nextRun,
	)
	if err != nil {
		return fmt.Errorf("failed to fail payment job: %w", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, jobID string) (*domain.PaymentJob, error) {
	var j domain.PaymentJob
	err := r.db.QueryRow(ctx, `
		SELECT id, tx_ref, paid_amount, gateway_ref, payment_method,
		       status, attempts, COALESCE(last_error, ''), next_run_at, created_at
		FROM payment_jobs WHERE id = $1`, jobID,
	).Scan(
		&j.ID, &j.TxRef, &j.PaidAmount, &j.GatewayRef, &j.PaymentMethod,
		&j.Status, &j.Attempts, &j.LastError, &j.NextRunAt, &j.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", xerrors.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment job: %w", err)
	}
	return &j, nil
}
