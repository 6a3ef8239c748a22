package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"escrow-service/internal/domain"
	"escrow-service/internal/gateway"
	"escrow-service/internal/ledger"
	"escrow-service/internal/notification"
	"escrow-service/internal/pkg/id"
	"escrow-service/internal/pkg/xerrors"
	"escrow-service/internal/pricing"
	"escrow-service/internal/pub"
	"escrow-service/internal/repository"
)

// PaymentUsecase owns checkout initiation and the ingestion pipeline that
// turns verified gateway payments into orders with held escrow.
type PaymentUsecase struct {
	store    ledger.Store
	pending  PendingCache
	charges  repository.ChargesRepository
	jobs     repository.JobRepository
	orders   repository.OrderRepository
	gw       gateway.Client
	events   EventPublisher
	notifier notification.Sender
	log      *zap.Logger
}

func NewPaymentUsecase(
	store ledger.Store,
	pending PendingCache,
	charges repository.ChargesRepository,
	jobs repository.JobRepository,
	orders repository.OrderRepository,
	gw gateway.Client,
	events EventPublisher,
	notifier notification.Sender,
	log *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		store:    store,
		pending:  pending,
		charges:  charges,
		jobs:     jobs,
		orders:   orders,
		gw:       gw,
		events:   events,
		notifier: notifier,
		log:      log,
	}
}

// InitiationResponse is what the mobile SDK needs to collect a card payment.
type InitiationResponse struct {
	TxRef    string          `json:"tx_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// DeliveryRequest initiates a delivery checkout.
type DeliveryRequest struct {
	SenderID   string          `json:"-"`
	DistanceKM decimal.Decimal `json:"distance_km"`
	Details    map[string]any  `json:"details,omitempty"`
}

// InitiateDelivery prices a delivery from distance, stashes the intent under
// a fresh tx_ref, and returns the amount the customer must pay.
func (uc *PaymentUsecase) InitiateDelivery(ctx context.Context, req DeliveryRequest) (*InitiationResponse, error) {
	if req.DistanceKM.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: distance must be positive", xerrors.ErrInvalidRequest)
	}

	cfg, err := uc.charges.Get(ctx, domain.VerticalDelivery)
	if err != nil {
		return nil, err
	}
	fee := pricing.DeliveryFee(cfg, req.DistanceKM)

	txRef := id.NewTxRef(string(domain.VerticalDelivery))
	intent := &domain.PendingIntent{
		TxRef:       txRef,
		Vertical:    domain.VerticalDelivery,
		CustomerID:  req.SenderID,
		GrandTotal:  fee,
		DeliveryFee: fee,
		DistanceKM:  req.DistanceKM,
		Details:     req.Details,
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.pending.Put(ctx, intent); err != nil {
		return nil, err
	}

	uc.log.Info("delivery payment initiated",
		zap.String("tx_ref", txRef), zap.String("sender_id", req.SenderID))
	return &InitiationResponse{TxRef: txRef, Amount: fee, Currency: "NGN"}, nil
}

// CheckoutRequest initiates a food/product/laundry checkout.
type CheckoutRequest struct {
	CustomerID  string             `json:"-"`
	Vertical    domain.Vertical    `json:"order_type"`
	VendorID    string             `json:"vendor_id"`
	Items       []domain.OrderItem `json:"items"`
	DeliveryFee decimal.Decimal    `json:"delivery_fee"`
	Details     map[string]any     `json:"details,omitempty"`
}

// InitiateCheckout prices a vendor order server-side and stashes the intent.
func (uc *PaymentUsecase) InitiateCheckout(ctx context.Context, req CheckoutRequest) (*InitiationResponse, error) {
	switch req.Vertical {
	case domain.VerticalFood, domain.VerticalProduct, domain.VerticalLaundry:
	default:
		return nil, fmt.Errorf("%w: cannot checkout vertical %s", xerrors.ErrInvalidRequest, req.Vertical)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: checkout requires items", xerrors.ErrInvalidRequest)
	}
	if req.VendorID == "" {
		return nil, fmt.Errorf("%w: checkout requires a vendor", xerrors.ErrInvalidRequest)
	}
	for _, it := range req.Items {
		if it.Quantity <= 0 || it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: bad line item %s", xerrors.ErrInvalidRequest, it.ItemID)
		}
	}

	cfg, err := uc.charges.Get(ctx, req.Vertical)
	if err != nil {
		return nil, err
	}

	txRef := id.NewTxRef(string(req.Vertical))
	intent := &domain.PendingIntent{
		TxRef:       txRef,
		Vertical:    req.Vertical,
		CustomerID:  req.CustomerID,
		VendorID:    req.VendorID,
		DeliveryFee: req.DeliveryFee,
		Items:       req.Items,
		Details:     req.Details,
		CreatedAt:   time.Now().UTC(),
	}
	quote, err := pricing.QuoteOrder(cfg, intent)
	if err != nil {
		return nil, err
	}
	intent.GrandTotal = quote.GrandTotal
	intent.Subtotal = quote.Subtotal

	if err := uc.pending.Put(ctx, intent); err != nil {
		return nil, err
	}

	uc.log.Info("checkout initiated",
		zap.String("tx_ref", txRef),
		zap.String("order_type", string(req.Vertical)),
		zap.String("customer_id", req.CustomerID))
	return &InitiationResponse{TxRef: txRef, Amount: quote.GrandTotal, Currency: "NGN"}, nil
}

// InitiateTopup stashes a wallet top-up intent.
func (uc *PaymentUsecase) InitiateTopup(ctx context.Context, userID string, amount decimal.Decimal) (*InitiationResponse, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: top-up amount must be positive", xerrors.ErrInvalidRequest)
	}
	if amount.GreaterThan(domain.MaxWalletBalance) {
		return nil, fmt.Errorf("%w: top-up exceeds %s", xerrors.ErrWalletLimitExceeded, domain.MaxWalletBalance)
	}

	txRef := id.NewTxRef(string(domain.VerticalTopup))
	intent := &domain.PendingIntent{
		TxRef:      txRef,
		Vertical:   domain.VerticalTopup,
		CustomerID: userID,
		GrandTotal: amount,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.pending.Put(ctx, intent); err != nil {
		return nil, err
	}
	return &InitiationResponse{TxRef: txRef, Amount: amount, Currency: "NGN"}, nil
}

// Enqueue records a webhook-announced payment for background ingestion.
// Duplicate tx_refs collapse onto the existing job.
func (uc *PaymentUsecase) Enqueue(ctx context.Context, txRef, gatewayRef string, paidAmount decimal.Decimal) error {
	job := &domain.PaymentJob{
		ID:            id.NewULID(),
		TxRef:         txRef,
		PaidAmount:    paidAmount,
		GatewayRef:    gatewayRef,
		PaymentMethod: domain.MethodCard,
		NextRunAt:     time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := uc.jobs.Enqueue(ctx, job); err != nil {
		return err
	}
	uc.log.Info("payment job enqueued", zap.String("tx_ref", txRef))
	return nil
}

// Process runs the ingestion pipeline inline for a trusted internal caller,
// bypassing the queue, and returns the order the payment settled into (nil for
// wallet top-ups). A replay of a settled payment returns the existing order
// alongside ErrAlreadyProcessed so the caller can answer idempotently.
func (uc *PaymentUsecase) Process(ctx context.Context, txRef, gatewayRef string, paidAmount decimal.Decimal, method domain.PaymentMethod) (*domain.Order, error) {
	if txRef == "" {
		return nil, fmt.Errorf("%w: tx_ref required", xerrors.ErrInvalidRequest)
	}
	if method != domain.MethodCard && method != domain.MethodWallet {
		return nil, fmt.Errorf("%w: unknown payment method %q", xerrors.ErrInvalidRequest, method)
	}

	ingestErr := uc.Ingest(ctx, &domain.PaymentJob{
		ID:            id.NewULID(),
		TxRef:         txRef,
		PaidAmount:    paidAmount,
		GatewayRef:    gatewayRef,
		PaymentMethod: method,
		CreatedAt:     time.Now().UTC(),
	})
	if ingestErr != nil && !errors.Is(ingestErr, xerrors.ErrAlreadyProcessed) {
		return nil, ingestErr
	}

	order, err := uc.orders.GetByTxRef(ctx, txRef)
	if errors.Is(err, xerrors.ErrNotFound) {
		// Top-ups settle into the wallet without an order row.
		return nil, ingestErr
	}
	if err != nil {
		return nil, err
	}
	return order, ingestErr
}

// Ingest runs the pipeline for one claimed job: gateway verification,
// idempotency check, intent resolution, price recomputation, then the atomic
// order-plus-hold commit. Retryable failures bubble up for the worker to
// reschedule; everything else dead-letters.
func (uc *PaymentUsecase) Ingest(ctx context.Context, job *domain.PaymentJob) error {
	// Wallet-funded jobs carry no gateway charge: the funds check happens
	// inside Hold under the wallet row lock.
	paid := job.PaidAmount
	if job.PaymentMethod == domain.MethodCard {
		verified, err := uc.gw.VerifyByTxRef(ctx, job.TxRef)
		if err != nil {
			return err
		}
		if !verified.Successful() {
			return fmt.Errorf("%w: gateway status %s", xerrors.ErrVerificationFail, verified.Status)
		}
		// The gateway's settled amount is authoritative over the webhook body.
		paid = verified.Amount
	}

	// Replays of an already-settled payment succeed without touching the
	// pending intent, which is normally gone by then.
	var done bool
	err := uc.store.WithinTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		var err error
		done, err = tx.TransactionExists(ctx, job.TxRef, domain.TxEscrowHold, domain.TxDeposit)
		return err
	})
	if err != nil {
		return err
	}
	if done {
		uc.log.Info("payment already processed", zap.String("tx_ref", job.TxRef))
		return fmt.Errorf("%w: tx_ref %s", xerrors.ErrAlreadyProcessed, job.TxRef)
	}

	intent, err := uc.pending.Get(ctx, job.TxRef)
	if err != nil {
		return err
	}

	if intent.Vertical == domain.VerticalTopup {
		return uc.ingestTopup(ctx, job, intent, paid)
	}
	return uc.ingestOrder(ctx, job, intent, paid)
}

func (uc *PaymentUsecase) ingestTopup(ctx context.Context, job *domain.PaymentJob, intent *domain.PendingIntent, paid decimal.Decimal) error {
	if !pricing.Matches(intent.GrandTotal, paid) {
		return uc.amountMismatch(ctx, intent, paid)
	}

	err := uc.store.WithinTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		done, err := tx.TransactionExists(ctx, job.TxRef, domain.TxDeposit)
		if err != nil {
			return err
		}
		if done {
			return fmt.Errorf("%w: tx_ref %s", xerrors.ErrAlreadyProcessed, job.TxRef)
		}
		if _, err := ledger.Deposit(ctx, tx, ledger.DepositParams{
			UserID: intent.CustomerID,
			Amount: paid,
			TxRef:  job.TxRef,
			Method: job.PaymentMethod,
		}); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, &domain.AuditEntry{
			ID:           id.NewULID(),
			EntityType:   "WALLET",
			EntityID:     intent.CustomerID,
			Action:       "WALLET_TOPUP",
			NewValue:     map[string]any{"tx_ref": job.TxRef},
			ChangeAmount: &paid,
			ActorID:      intent.CustomerID,
			ActorType:    "SYSTEM",
			Notes:        "Wallet funded from verified payment",
			CreatedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	uc.finish(ctx, job.TxRef, intent.CustomerID, pub.ChannelWalletCredited, map[string]any{
		"tx_ref": job.TxRef,
		"amount": paid.String(),
	}, "Wallet funded", fmt.Sprintf("Your wallet was credited with %s NGN", paid))
	return nil
}

func (uc *PaymentUsecase) ingestOrder(ctx context.Context, job *domain.PaymentJob, intent *domain.PendingIntent, paid decimal.Decimal) error {
	cfg, err := uc.charges.Get(ctx, intent.Vertical)
	if err != nil {
		return err
	}
	quote, err := pricing.QuoteOrder(cfg, intent)
	if err != nil {
		return err
	}
	if !pricing.Matches(quote.GrandTotal, paid) {
		return uc.amountMismatch(ctx, intent, paid)
	}

	order := &domain.Order{
		ID:              id.NewULID(),
		Vertical:        intent.Vertical,
		CustomerID:      intent.CustomerID,
		GrandTotal:      quote.GrandTotal,
		AmountDueVendor: quote.AmountDueVendor,
		DeliveryFee:     quote.DeliveryFee,
		OrderStatus:     domain.StatusPending,
		PaymentStatus:   domain.PaymentSuccess,
		EscrowStatus:    domain.EscrowHeld,
		TxRef:           job.TxRef,
		Details:         intent.Details,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	if intent.VendorID != "" {
		vendorID := intent.VendorID
		order.VendorID = &vendorID
	}

	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		done, err := tx.TransactionExists(ctx, job.TxRef, domain.TxEscrowHold)
		if err != nil {
			return err
		}
		if done {
			return fmt.Errorf("%w: tx_ref %s", xerrors.ErrAlreadyProcessed, job.TxRef)
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		items := make([]domain.OrderItem, len(intent.Items))
		for i, it := range intent.Items {
			it.ID = id.NewULID()
			it.OrderID = order.ID
			items[i] = it
		}
		if err := tx.InsertOrderItems(ctx, order.ID, items); err != nil {
			return err
		}

		if _, err := ledger.Hold(ctx, tx, ledger.HoldParams{
			PayerID:  intent.CustomerID,
			Amount:   paid,
			OrderID:  order.ID,
			TxRef:    job.TxRef,
			Method:   job.PaymentMethod,
			Vertical: intent.Vertical,
		}); err != nil {
			return err
		}

		return tx.InsertAudit(ctx, &domain.AuditEntry{
			ID:           id.NewULID(),
			EntityType:   "ORDER",
			EntityID:     order.ID,
			Action:       "ORDER_CREATED",
			NewValue:     map[string]any{"status": string(domain.StatusPending), "escrow": string(domain.EscrowHeld)},
			ChangeAmount: &paid,
			ActorID:      intent.CustomerID,
			ActorType:    "SYSTEM",
			Notes:        "Order created from verified payment",
			CreatedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return err
	}

	uc.finish(ctx, job.TxRef, intent.CustomerID, pub.ChannelOrderCreated, map[string]any{
		"order_id":   order.ID,
		"order_type": string(order.Vertical),
		"tx_ref":     job.TxRef,
		"amount":     paid.String(),
	}, "Payment received", "Your order has been placed")

	uc.log.Info("order created from payment",
		zap.String("order_id", order.ID),
		zap.String("tx_ref", job.TxRef),
		zap.String("order_type", string(order.Vertical)))
	return nil
}

func (uc *PaymentUsecase) amountMismatch(ctx context.Context, intent *domain.PendingIntent, paid decimal.Decimal) error {
	uc.log.Error("paid amount mismatch",
		zap.String("tx_ref", intent.TxRef),
		zap.String("expected", intent.GrandTotal.String()),
		zap.String("paid", paid.String()))
	return fmt.Errorf("%w: expected %s, paid %s",
		xerrors.ErrAmountMismatch, intent.GrandTotal.Round(2), paid.Round(2))
}

// finish runs the best-effort tail of the pipeline: pending cleanup, event
// publish, user notification. None of these can fail the ingestion.
func (uc *PaymentUsecase) finish(ctx context.Context, txRef, userID, channel string, event map[string]any, title, body string) {
	if err := uc.pending.Delete(ctx, txRef); err != nil {
		uc.log.Warn("pending cleanup failed", zap.String("tx_ref", txRef), zap.Error(err))
	}
	uc.events.Publish(ctx, channel, event)
	uc.notifier.Notify(ctx, userID, title, body, event)
}

// Retryable reports whether an ingestion failure is transient: the gateway,
// datastore or cache being unreachable retries with backoff. Everything else
// is a fact about the payment that retrying will not change.
func Retryable(err error) bool {
	if errors.Is(err, xerrors.ErrAlreadyProcessed) {
		return false
	}
	return xerrors.IsTransient(err)
}
