package usecase_test

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"escrow-service/internal/domain"
	"escrow-service/internal/gateway"
	"escrow-service/internal/ledger/ledgertest"
	"escrow-service/internal/pkg/xerrors"
)

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func decs(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakePending struct {
	intents map[string]*domain.PendingIntent
}

func newFakePending() *fakePending {
	return &fakePending{intents: map[string]*domain.PendingIntent{}}
}

func (f *fakePending) Put(_ context.Context, intent *domain.PendingIntent) error {
	f.intents[intent.TxRef] = intent
	return nil
}

func (f *fakePending) Get(_ context.Context, txRef string) (*domain.PendingIntent, error) {
	intent, ok := f.intents[txRef]
	if !ok {
		return nil, fmt.Errorf("%w: tx_ref %s", xerrors.ErrPendingNotFound, txRef)
	}
	return intent, nil
}

func (f *fakePending) Delete(_ context.Context, txRef string) error {
	delete(f.intents, txRef)
	return nil
}

type recordedEvent struct {
	Channel string
	Data    map[string]any
}

type fakeEvents struct {
	published []recordedEvent
}

func (f *fakeEvents) Publish(_ context.Context, channel string, data map[string]any) {
	f.published = append(f.published, recordedEvent{Channel: channel, Data: data})
}

func (f *fakeEvents) on(channel string) []recordedEvent {
	var out []recordedEvent
	for _, e := range f.published {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// fakeGateway serves canned verification results keyed by tx_ref.
type fakeGateway struct {
	results     map[string]*gateway.VerifyResult
	verifyErr   error
	transferErr error
	transfers   []gateway.TransferRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{results: map[string]*gateway.VerifyResult{}}
}

func (f *fakeGateway) settle(txRef string, amount decimal.Decimal) {
	f.results[txRef] = &gateway.VerifyResult{
		TxRef:      txRef,
		GatewayRef: "flw-" + txRef,
		Status:     "successful",
		Amount:     amount,
		Currency:   "NGN",
	}
}

func (f *fakeGateway) VerifyByTxRef(_ context.Context, txRef string) (*gateway.VerifyResult, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	res, ok := f.results[txRef]
	if !ok {
		return nil, fmt.Errorf("%w: tx_ref %s", xerrors.ErrUnknownTxRef, txRef)
	}
	return res, nil
}

func (f *fakeGateway) Transfer(_ context.Context, req gateway.TransferRequest) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.transfers = append(f.transfers, req)
	return nil
}

type failedMark struct {
	JobID    string
	Attempts int
	LastErr  string
}

type fakeJobs struct {
	queued    []*domain.PaymentJob
	completed []string
	failed    []failedMark
}

func (f *fakeJobs) Enqueue(_ context.Context, job *domain.PaymentJob) error {
	for _, q := range f.queued {
		if q.TxRef == job.TxRef {
			return nil
		}
	}
	f.queued = append(f.queued, job)
	return nil
}

func (f *fakeJobs) ClaimNext(_ context.Context) (*domain.PaymentJob, error) {
	for _, job := range f.queued {
		if job.Status == domain.JobPending || job.Status == "" {
			job.Status = domain.JobProcessing
			job.Attempts++
			return job, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeJobs) MarkCompleted(_ context.Context, jobID string) error {
	f.completed = append(f.completed, jobID)
	return nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, jobID string, attempts int, lastErr string) error {
	f.failed = append(f.failed, failedMark{JobID: jobID, Attempts: attempts, LastErr: lastErr})
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, jobID string) (*domain.PaymentJob, error) {
	for _, job := range f.queued {
		if job.ID == jobID {
			return job, nil
		}
	}
	return nil, fmt.Errorf("%w: job %s", xerrors.ErrNotFound, jobID)
}

type fakeCharges struct {
	configs map[domain.Vertical]*domain.ChargeConfig
}

// defaultCharges mirrors a typical charges_and_commissions seed.
func defaultCharges() *fakeCharges {
	return &fakeCharges{configs: map[domain.Vertical]*domain.ChargeConfig{
		domain.VerticalDelivery: {
			ServiceType:     domain.VerticalDelivery,
			CommissionRate:  decs("0.2"),
			BaseDeliveryFee: dec(500),
			FeePerKM:        decs("75.5"),
		},
		domain.VerticalFood: {
			ServiceType:    domain.VerticalFood,
			CommissionRate: decs("0.1"),
		},
		domain.VerticalProduct: {
			ServiceType:    domain.VerticalProduct,
			CommissionRate: decs("0.1"),
		},
		domain.VerticalLaundry: {
			ServiceType:    domain.VerticalLaundry,
			CommissionRate: decs("0.15"),
		},
	}}
}

func (f *fakeCharges) Get(_ context.Context, v domain.Vertical) (*domain.ChargeConfig, error) {
	cfg, ok := f.configs[v]
	if !ok {
		return nil, fmt.Errorf("%w: vertical %s", xerrors.ErrCommissionConfig, v)
	}
	return cfg, nil
}

// fakeOrders reads orders straight out of the ledgertest store.
type fakeOrders struct {
	store *ledgertest.Store
}

func (f *fakeOrders) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return f.store.GetOrderForUpdate(ctx, orderID)
}

func (f *fakeOrders) GetByTxRef(_ context.Context, txRef string) (*domain.Order, error) {
	for _, o := range f.store.Orders {
		if o.TxRef == txRef {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: tx_ref %s", xerrors.ErrNotFound, txRef)
}

func (f *fakeOrders) ListByUser(_ context.Context, userID string, vertical domain.Vertical, _, _ int) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range f.store.Orders {
		party := o.CustomerID == userID || (o.VendorID != nil && *o.VendorID == userID)
		if !party {
			continue
		}
		if vertical != "" && o.Vertical != vertical {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeOrders) ListItems(_ context.Context, orderID string) ([]domain.OrderItem, error) {
	return f.store.Items[orderID], nil
}

func (f *fakeOrders) GetRiderStats(_ context.Context, riderID string) (*domain.RiderStats, error) {
	return &domain.RiderStats{RiderID: riderID, CancellationCount: f.store.Cancellations[riderID]}, nil
}

// fakeAudits lists the audit rows the ledgertest store accumulated.
type fakeAudits struct {
	store *ledgertest.Store
}

func (f *fakeAudits) Insert(ctx context.Context, e *domain.AuditEntry) error {
	return f.store.InsertAudit(ctx, e)
}

func (f *fakeAudits) ListByEntity(_ context.Context, entityType, entityID string) ([]*domain.AuditEntry, error) {
	var out []*domain.AuditEntry
	for _, e := range f.store.Audits {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeWallets reads wallets straight out of the ledgertest store.
type fakeWallets struct {
	store *ledgertest.Store
}

func (f *fakeWallets) Create(_ context.Context, userID string) (*domain.Wallet, error) {
	if w, ok := f.store.Wallets[userID]; ok {
		cp := *w
		return &cp, nil
	}
	f.store.SeedWallet(userID, 0, 0)
	cp := *f.store.Wallets[userID]
	return &cp, nil
}

func (f *fakeWallets) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	return f.store.GetWalletForUpdate(ctx, userID)
}

func (f *fakeWallets) ListTransactions(_ context.Context, userID string, _, _ int) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, t := range f.store.Transactions {
		if t.WalletID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}
