package xerrors

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// Generic
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalServer = errors.New("internal server error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
)

// Lifecycle
var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrTerminalState     = errors.New("order is in a terminal state")
	ErrRiderRequired     = errors.New("rider id required for assignment")
)

// Ledger / wallet
var (
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrInsufficientBalance   = errors.New("insufficient wallet balance")
	ErrInsufficientEscrow    = errors.New("insufficient escrow balance")
	ErrEscrowNotHeld         = errors.New("escrow not held for order")
	ErrEscrowAlreadyReleased = errors.New("escrow already released for order")
	ErrHoldMissing           = errors.New("hold transaction missing at release time")
	ErrWalletLimitExceeded   = errors.New("wallet balance limit exceeded")
	ErrCommissionConfig      = errors.New("commission configuration missing")
)

// Ingestion
var (
	ErrAlreadyProcessed   = errors.New("transaction already processed")
	ErrPendingNotFound    = errors.New("pending checkout intent not found")
	ErrAmountMismatch     = errors.New("paid amount does not match expected amount")
	ErrVerificationFail   = errors.New("gateway verification failed")
	ErrUnknownTxRef       = errors.New("unknown transaction reference prefix")
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
)

// ParsePGErrorCode extracts the Postgres error code from a pgx error.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a Postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == "23505"
}

// IsTransient reports whether err looks like infrastructure being
// unreachable rather than a fact about the data: network failures, timeouts,
// and Postgres connection/resource-class errors.
func IsTransient(err error) bool {
	if errors.Is(err, ErrGatewayUnreachable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 53: insufficient resources.
		// 57P03: cannot_connect_now (server starting up).
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "53") ||
			pgErr.Code == "57P03"
	}
	return errors.Is(err, context.DeadlineExceeded)
}
