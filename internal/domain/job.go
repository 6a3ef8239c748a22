package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobStatus of a queued payment-ingestion job.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobDead       JobStatus = "DEAD"
)

// PaymentJob is a durable unit of ingestion work. The webhook handler only
// verifies the signature and enqueues one of these; a background worker runs
// the pipeline with bounded retries and dead-letters exhausted jobs.
type PaymentJob struct {
	ID            string          `json:"id"`
	TxRef         string          `json:"tx_ref"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	GatewayRef    string          `json:"gateway_ref"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        JobStatus       `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error,omitempty"`
	NextRunAt     time.Time       `json:"next_run_at"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MaxJobAttempts before a job is dead-lettered.
const MaxJobAttempts = 5

// RetryBackoff is the wait before attempt n+1 (attempts are 1-based).
func RetryBackoff(attempts int) time.Duration {
	schedule := []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		300 * time.Second,
		600 * time.Second,
	}
	if attempts <= 0 {
		return schedule[0]
	}
	if attempts > len(schedule) {
		return schedule[len(schedule)-1]
	}
	return schedule[attempts-1]
}
