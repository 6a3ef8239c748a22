package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"escrow-service/internal/domain"
	"escrow-service/internal/ledger/ledgertest"
	"escrow-service/internal/pkg/xerrors"
	"escrow-service/internal/pub"
	"escrow-service/internal/usecase"
)

type walletEnv struct {
	store  *ledgertest.Store
	gw     *fakeGateway
	events *fakeEvents
	uc     *usecase.WalletUsecase
}

func newWalletEnv() *walletEnv {
	store := ledgertest.New()
	gw := newFakeGateway()
	events := &fakeEvents{}
	uc := usecase.NewWalletUsecase(store, &fakeWallets{store: store},
		defaultCharges(), gw, events, zap.NewNop())
	return &walletEnv{store: store, gw: gw, events: events, uc: uc}
}

func foodCheckout(customerID string) usecase.CheckoutRequest {
	return usecase.CheckoutRequest{
		CustomerID:  customerID,
		Vertical:    domain.VerticalFood,
		VendorID:    "ven-1",
		Items:       []domain.OrderItem{{ItemID: "jollof", Quantity: 1, Price: dec(2000)}},
		DeliveryFee: dec(100),
	}
}

func TestCreateWalletRequiresUser(t *testing.T) {
	e := newWalletEnv()
	_, err := e.uc.CreateWallet(context.Background(), "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidRequest)

	w, err := e.uc.CreateWallet(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
}

func TestPayWithWalletHoldsEscrow(t *testing.T) {
	ctx := context.Background()
	e := newWalletEnv()
	e.store.SeedWallet("cus-1", 5000, 0)

	order, err := e.uc.PayWithWallet(ctx, foodCheckout("cus-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.OrderStatus)
	assert.Equal(t, domain.EscrowHeld, order.EscrowStatus)
	assert.True(t, order.GrandTotal.Equal(dec(2100)))
	assert.True(t, order.AmountDueVendor.Equal(dec(1890)), "due vendor %s", order.AmountDueVendor)

	w := e.store.Wallets["cus-1"]
	assert.True(t, w.Balance.Equal(dec(2900)), "balance %s", w.Balance)
	assert.True(t, w.EscrowBalance.Equal(dec(2100)))

	holds := e.store.TxOfType(domain.TxEscrowHold)
	require.Len(t, holds, 1)
	assert.Equal(t, domain.MethodWallet, holds[0].PaymentMethod)
	assert.Len(t, e.store.Items[order.ID], 1)
	assert.Len(t, e.events.on(pub.ChannelOrderCreated), 1)

	require.Len(t, e.store.Audits, 1)
	assert.Equal(t, "ORDER_CREATED", e.store.Audits[0].Action)
	assert.Equal(t, order.ID, e.store.Audits[0].EntityID)
}

func TestPayWithWalletInsufficientBalance(t *testing.T) {
	e := newWalletEnv()
	e.store.SeedWallet("cus-1", 1000, 0)

	_, err := e.uc.PayWithWallet(context.Background(), foodCheckout("cus-1"))
	assert.ErrorIs(t, err, xerrors.ErrInsufficientBalance)
	assert.True(t, e.store.Wallets["cus-1"].Balance.Equal(dec(1000)))
	assert.Empty(t, e.store.TxOfType(domain.TxEscrowHold))
}

func TestPayWithWalletRejectsDelivery(t *testing.T) {
	e := newWalletEnv()
	req := foodCheckout("cus-1")
	req.Vertical = domain.VerticalDelivery
	_, err := e.uc.PayWithWallet(context.Background(), req)
	assert.ErrorIs(t, err, xerrors.ErrInvalidRequest)
}

func TestWithdrawAllPaysOut(t *testing.T) {
	e := newWalletEnv()
	e.store.SeedWallet("u1", 5000, 300)

	tr, err := e.uc.WithdrawAll(context.Background(), "u1", "044", "0690000040")
	require.NoError(t, err)
	assert.True(t, tr.Amount.Equal(dec(4900)), "amount %s", tr.Amount)

	w := e.store.Wallets["u1"]
	assert.True(t, w.Balance.Equal(dec(0)))
	assert.True(t, w.EscrowBalance.Equal(dec(300)), "escrow untouched")

	require.Len(t, e.gw.transfers, 1)
	assert.True(t, e.gw.transfers[0].Amount.Equal(dec(4900)))
	assert.Equal(t, "044", e.gw.transfers[0].BankCode)
	assert.Len(t, e.store.TxOfType(domain.TxWithdrawal), 1)

	require.Len(t, e.store.Audits, 1)
	assert.Equal(t, "WITHDRAWAL", e.store.Audits[0].Action)
	assert.True(t, e.store.Audits[0].ChangeAmount.Equal(dec(4900)))
}

func TestWithdrawAllRejectsDustBalance(t *testing.T) {
	e := newWalletEnv()
	e.store.SeedWallet("u1", 100, 0)

	_, err := e.uc.WithdrawAll(context.Background(), "u1", "044", "0690000040")
	assert.ErrorIs(t, err, xerrors.ErrInsufficientBalance)
	assert.True(t, e.store.Wallets["u1"].Balance.Equal(dec(100)))
}

func TestWithdrawAllRequiresBankAccount(t *testing.T) {
	e := newWalletEnv()
	e.store.SeedWallet("u1", 5000, 0)

	_, err := e.uc.WithdrawAll(context.Background(), "u1", "", "")
	assert.ErrorIs(t, err, xerrors.ErrInvalidRequest)
}

func TestWithdrawAllReversesOnTransferFailure(t *testing.T) {
	e := newWalletEnv()
	e.store.SeedWallet("u1", 5000, 0)
	transferErr := errors.New("transfer rejected")
	e.gw.transferErr = transferErr

	_, err := e.uc.WithdrawAll(context.Background(), "u1", "044", "0690000040")
	assert.ErrorIs(t, err, transferErr)

	// The debit was compensated in full, fee included.
	assert.True(t, e.store.Wallets["u1"].Balance.Equal(dec(5000)))
	deposits := e.store.TxOfType(domain.TxDeposit)
	require.Len(t, deposits, 1)
	assert.Contains(t, deposits[0].TxRef, "-REVERSAL")

	// Both movements leave an audit trail.
	require.Len(t, e.store.Audits, 2)
	assert.Equal(t, "WITHDRAWAL", e.store.Audits[0].Action)
	assert.Equal(t, "WITHDRAWAL_REVERSED", e.store.Audits[1].Action)
	assert.True(t, e.store.Audits[1].ChangeAmount.Equal(dec(5000)))
}

func TestWithdrawalReversalIgnoresCeiling(t *testing.T) {
	e := newWalletEnv()
	// Vendor earnings can sit above the top-up ceiling.
	e.store.SeedWallet("u1", 60000, 0)
	e.gw.transferErr = errors.New("transfer rejected")

	_, err := e.uc.WithdrawAll(context.Background(), "u1", "044", "0690000040")
	require.Error(t, err)
	assert.True(t, e.store.Wallets["u1"].Balance.Equal(dec(60000)), "balance %s", e.store.Wallets["u1"].Balance)
}
