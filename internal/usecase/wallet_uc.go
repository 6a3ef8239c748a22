package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"escrow-service/internal/domain"
	"escrow-service/internal/gateway"
	"escrow-service/internal/ledger"
	"escrow-service/internal/pkg/id"
	"escrow-service/internal/pkg/xerrors"
	"escrow-service/internal/pricing"
	"escrow-service/internal/pub"
	"escrow-service/internal/repository"
)

// WithdrawalFee is the flat charge on withdrawing a full balance.
var WithdrawalFee = decimal.NewFromInt(100)

// WalletUsecase covers wallet reads, wallet-funded checkout and payouts.
type WalletUsecase struct {
	store   ledger.Store
	wallets repository.WalletRepository
	charges repository.ChargesRepository
	gw      gateway.Client
	events  EventPublisher
	log     *zap.Logger
}

func NewWalletUsecase(
	store ledger.Store,
	wallets repository.WalletRepository,
	charges repository.ChargesRepository,
	gw gateway.Client,
	events EventPublisher,
	log *zap.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		store:   store,
		wallets: wallets,
		charges: charges,
		gw:      gw,
		events:  events,
		log:     log,
	}
}

// CreateWallet provisions a zero-balance wallet at onboarding. Idempotent.
func (uc *WalletUsecase) CreateWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", xerrors.ErrInvalidRequest)
	}
	return uc.wallets.Create(ctx, userID)
}

// WalletDetails is a wallet plus its recent ledger history.
type WalletDetails struct {
	Wallet       *domain.Wallet        `json:"wallet"`
	Transactions []*domain.Transaction `json:"transactions"`
}

func (uc *WalletUsecase) Details(ctx context.Context, userID string, limit, offset int) (*WalletDetails, error) {
	w, err := uc.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := uc.wallets.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &WalletDetails{Wallet: w, Transactions: txs}, nil
}

// PayWithWallet is the wallet-funded checkout: pricing, order creation and
// the escrow hold all happen synchronously in one atomic unit, with no
// gateway round-trip.
func (uc *WalletUsecase) PayWithWallet(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	switch req.Vertical {
	case domain.VerticalFood, domain.VerticalProduct, domain.VerticalLaundry:
	default:
		return nil, fmt.Errorf("%w: cannot checkout vertical %s", xerrors.ErrInvalidRequest, req.Vertical)
	}
	if len(req.Items) == 0 || req.VendorID == "" {
		return nil, fmt.Errorf("%w: checkout requires items and a vendor", xerrors.ErrInvalidRequest)
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
	}
	quote, err := pricing.QuoteOrder(cfg, intent)
	if err != nil {
		return nil, err
	}

	vendorID := req.VendorID
	order := &domain.Order{
		ID:              id.NewULID(),
		Vertical:        req.Vertical,
		CustomerID:      req.CustomerID,
		VendorID:        &vendorID,
		GrandTotal:      quote.GrandTotal,
		AmountDueVendor: quote.AmountDueVendor,
		DeliveryFee:     quote.DeliveryFee,
		OrderStatus:     domain.StatusPending,
		PaymentStatus:   domain.PaymentSuccess,
		EscrowStatus:    domain.EscrowHeld,
		TxRef:           txRef,
		Details:         req.Details,
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		items := make([]domain.OrderItem, len(req.Items))
		for i, it := range req.Items {
			it.ID = id.NewULID()
			it.OrderID = order.ID
			items[i] = it
		}
		if err := tx.InsertOrderItems(ctx, order.ID, items); err != nil {
			return err
		}
		if _, err := ledger.Hold(ctx, tx, ledger.HoldParams{
			PayerID:  req.CustomerID,
			Amount:   quote.GrandTotal,
			OrderID:  order.ID,
			TxRef:    txRef,
			Method:   domain.MethodWallet,
			Vertical: req.Vertical,
		}); err != nil {
			return err
		}
		return tx.InsertAudit(ctx, &domain.AuditEntry{
			ID:           id.NewULID(),
			EntityType:   "ORDER",
			EntityID:     order.ID,
			Action:       "ORDER_CREATED",
			NewValue:     map[string]any{"status": string(domain.StatusPending), "escrow": string(domain.EscrowHeld)},
			ChangeAmount: &quote.GrandTotal,
			ActorID:      req.CustomerID,
			ActorType:    "USER",
			Notes:        "Order paid from wallet",
			CreatedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	uc.events.Publish(ctx, pub.ChannelOrderCreated, map[string]any{
		"order_id":   order.ID,
		"order_type": string(order.Vertical),
		"tx_ref":     txRef,
		"method":     string(domain.MethodWallet),
	})
	uc.log.Info("wallet checkout completed",
		zap.String("order_id", order.ID), zap.String("tx_ref", txRef))
	return order, nil
}

// WithdrawAll pays the entire spendable balance (less the flat fee) out to
// the user's bank account. The ledger debit commits before the transfer is
// attempted; a failed transfer is compensated by a refund deposit.
func (uc *WalletUsecase) WithdrawAll(ctx context.Context, userID, bankCode, accountNumber string) (*domain.Transaction, error) {
	if bankCode == "" || accountNumber == "" {
		return nil, fmt.Errorf("%w: bank account required", xerrors.ErrInvalidRequest)
	}

	w, err := uc.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	amount := w.Balance.Sub(WithdrawalFee)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: balance %s does not cover the %s fee",
			xerrors.ErrInsufficientBalance, w.Balance, WithdrawalFee)
	}

	txRef := id.NewTxRef("WITHDRAW")
	var tr *domain.Transaction
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		var err error
		tr, err = ledger.Withdraw(ctx, tx, ledger.WithdrawParams{
			UserID: userID,
			Amount: amount,
			Fee:    WithdrawalFee,
			TxRef:  txRef,
		})
		if err != nil {
			return err
		}
		return tx.InsertAudit(ctx, &domain.AuditEntry{
			ID:           id.NewULID(),
			EntityType:   "WALLET",
			EntityID:     userID,
			Action:       "WITHDRAWAL",
			NewValue:     map[string]any{"fee": WithdrawalFee.String()},
			ChangeAmount: &amount,
			ActorID:      userID,
			ActorType:    "USER",
			Notes:        "Full balance withdrawal",
			CreatedAt:    time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	if err := uc.gw.Transfer(ctx, gateway.TransferRequest{
		Reference:     txRef,
		Amount:        amount,
		Currency:      "NGN",
		BankCode:      bankCode,
		AccountNumber: accountNumber,
		Narration:     "Wallet withdrawal",
	}); err != nil {
		uc.log.Error("transfer failed, reversing withdrawal",
			zap.String("tx_ref", txRef), zap.Error(err))
		reverseErr := uc.store.WithinTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
			restored := amount.Add(WithdrawalFee)
			if _, err := ledger.Deposit(ctx, tx, ledger.DepositParams{
				UserID:   userID,
				Amount:   restored,
				TxRef:    txRef + "-REVERSAL",
				Method:   domain.MethodWallet,
				Reversal: true,
			}); err != nil {
				return err
			}
			return tx.InsertAudit(ctx, &domain.AuditEntry{
				ID:           id.NewULID(),
				EntityType:   "WALLET",
				EntityID:     userID,
				Action:       "WITHDRAWAL_REVERSED",
				NewValue:     map[string]any{"tx_ref": txRef},
				ChangeAmount: &restored,
				ActorID:      userID,
				ActorType:    "SYSTEM",
				Notes:        "Bank transfer failed, funds restored",
				CreatedAt:    time.Now().UTC(),
			})
		})
		if reverseErr != nil {
			uc.log.Error("withdrawal reversal failed, manual intervention needed",
				zap.String("tx_ref", txRef), zap.Error(reverseErr))
		}
		return nil, err
	}

	uc.log.Info("withdrawal paid out",
		zap.String("user_id", userID), zap.String("amount", amount.String()))
	return tr, nil
}
