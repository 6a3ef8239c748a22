package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"escrow-service/internal/domain"
	"escrow-service/internal/ledger"
	"escrow-service/internal/ledger/ledgertest"
	"escrow-service/internal/notification"
	"escrow-service/internal/pkg/xerrors"
	"escrow-service/internal/pub"
	"escrow-service/internal/usecase"
)

type orderEnv struct {
	store  *ledgertest.Store
	events *fakeEvents
	uc     *usecase.OrderUsecase
}

func newOrderEnv() *orderEnv {
	store := ledgertest.New()
	events := &fakeEvents{}
	uc := usecase.NewOrderUsecase(store, &fakeOrders{store: store}, &fakeAudits{store: store},
		events, notification.Noop{}, zap.NewNop())
	return &orderEnv{store: store, events: events, uc: uc}
}

// seedHeldOrder stages an order in the given status with its grand total
// already held in the customer's escrow, the way payment ingestion leaves it.
func (e *orderEnv) seedHeldOrder(t *testing.T, vertical domain.Vertical, status domain.OrderStatus, customerID string, vendorID *string, total, dueVendor int64) *domain.Order {
	t.Helper()
	ctx := context.Background()

	e.store.SeedWallet(customerID, 0, 0)
	if vendorID != nil {
		e.store.SeedWallet(*vendorID, 0, 0)
	}

	order := &domain.Order{
		ID:              "ord-" + string(vertical),
		Vertical:        vertical,
		CustomerID:      customerID,
		VendorID:        vendorID,
		GrandTotal:      dec(total),
		AmountDueVendor: dec(dueVendor),
		OrderStatus:     status,
		PaymentStatus:   domain.PaymentSuccess,
		EscrowStatus:    domain.EscrowHeld,
		TxRef:           string(vertical) + "-SEED",
	}
	require.NoError(t, e.store.InsertOrder(ctx, order))
	_, err := ledger.Hold(ctx, e.store, ledger.HoldParams{
		PayerID:  customerID,
		Amount:   dec(total),
		OrderID:  order.ID,
		TxRef:    order.TxRef,
		Method:   domain.MethodCard,
		Vertical: vertical,
	})
	require.NoError(t, err)
	return order
}

func strptr(s string) *string { return &s }

func TestCompleteReleasesEscrow(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusDelivered,
		"sender", strptr("rider"), 2000, 1600)

	updated, err := e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID,
		ActorID: "sender",
		Target:  domain.StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.OrderStatus)
	assert.Equal(t, domain.EscrowReleased, updated.EscrowStatus)

	assert.True(t, e.store.Wallets["sender"].EscrowBalance.Equal(dec(0)))
	assert.True(t, e.store.Wallets["rider"].Balance.Equal(dec(1600)))

	require.Len(t, e.store.Commissions, 1)
	assert.True(t, e.store.Commissions[0].Amount.Equal(dec(400)), "commission %s", e.store.Commissions[0].Amount)
	assert.Len(t, e.store.TxOfType(domain.TxEscrowRelease), 1)
	assert.Len(t, e.events.on(pub.ChannelOrderUpdated), 1)
	require.Len(t, e.events.on(pub.ChannelEscrowSettled), 1)
	assert.Equal(t, "RELEASED", e.events.on(pub.ChannelEscrowSettled)[0].Data["escrow_status"])

	// COMPLETED is terminal.
	_, err = e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID,
		ActorID: "sender",
		Target:  domain.StatusCancelled,
	})
	assert.ErrorIs(t, err, xerrors.ErrTerminalState)
}

func TestCounterpartyCannotComplete(t *testing.T) {
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusDelivered,
		"sender", strptr("rider"), 2000, 1600)

	_, err := e.uc.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		OrderID: order.ID,
		ActorID: "rider",
		Target:  domain.StatusCompleted,
	})
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	// No money moved and the order is untouched.
	assert.True(t, e.store.Wallets["sender"].EscrowBalance.Equal(dec(2000)))
	assert.True(t, e.store.Wallets["rider"].Balance.Equal(dec(0)))
	assert.Equal(t, domain.StatusDelivered, e.store.Orders[order.ID].OrderStatus)
}

func TestCancelBeforeCustodyRefunds(t *testing.T) {
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusAssigned,
		"sender", strptr("rider"), 2000, 1600)

	updated, err := e.uc.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		OrderID: order.ID,
		ActorID: "sender",
		Target:  domain.StatusCancelled,
		Reason:  "changed my mind",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.OrderStatus)
	assert.Equal(t, domain.EscrowRefunded, updated.EscrowStatus)
	assert.Equal(t, domain.PaymentRefunded, updated.PaymentStatus)
	assert.False(t, updated.RequiresReturn)
	require.NotNil(t, updated.CancelledBy)
	assert.Equal(t, "CUSTOMER", *updated.CancelledBy)

	w := e.store.Wallets["sender"]
	assert.True(t, w.Balance.Equal(dec(2000)), "balance %s", w.Balance)
	assert.True(t, w.EscrowBalance.Equal(dec(0)))
	assert.Len(t, e.store.TxOfType(domain.TxRefunded), 1)
	assert.Equal(t, 0, e.store.Cancellations["rider"])
	require.Len(t, e.events.on(pub.ChannelEscrowSettled), 1)
	assert.Equal(t, "REFUNDED", e.events.on(pub.ChannelEscrowSettled)[0].Data["escrow_status"])
}

func TestCancelAfterCustodyRetainsEscrow(t *testing.T) {
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusPickedUp,
		"sender", strptr("rider"), 2000, 1600)

	updated, err := e.uc.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		OrderID: order.ID,
		ActorID: "sender",
		Target:  domain.StatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.OrderStatus)
	assert.True(t, updated.RequiresReturn)
	assert.Equal(t, domain.EscrowHeld, updated.EscrowStatus)

	w := e.store.Wallets["sender"]
	assert.True(t, w.Balance.Equal(dec(0)))
	assert.True(t, w.EscrowBalance.Equal(dec(2000)))
	assert.Empty(t, e.store.TxOfType(domain.TxRefunded))
	assert.Empty(t, e.events.on(pub.ChannelEscrowSettled), "held escrow is not settled")
}

func TestProviderCancelAlwaysRefunds(t *testing.T) {
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusPickedUp,
		"sender", strptr("rider"), 2000, 1600)

	updated, err := e.uc.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		OrderID: order.ID,
		ActorID: "rider",
		Target:  domain.StatusCancelled,
		Reason:  "bike broke down",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowRefunded, updated.EscrowStatus)
	assert.False(t, updated.RequiresReturn)
	require.NotNil(t, updated.CancelledBy)
	assert.Equal(t, "VENDOR", *updated.CancelledBy)

	// Custody does not shield a provider-initiated cancellation.
	w := e.store.Wallets["sender"]
	assert.True(t, w.Balance.Equal(dec(2000)))
	assert.True(t, w.EscrowBalance.Equal(dec(0)))
	assert.Equal(t, 1, e.store.Cancellations["rider"])
}

func TestAssignRider(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusPending,
		"sender", nil, 2000, 1600)

	_, err := e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "sender", Target: domain.StatusAssigned,
	})
	assert.ErrorIs(t, err, xerrors.ErrRiderRequired)

	_, err = e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "sender", Target: domain.StatusAssigned, RiderID: "sender",
	})
	assert.ErrorIs(t, err, xerrors.ErrInvalidRequest)

	_, err = e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "stranger", Target: domain.StatusAssigned, RiderID: "rider",
	})
	assert.ErrorIs(t, err, xerrors.ErrForbidden)

	updated, err := e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "sender", Target: domain.StatusAssigned, RiderID: "rider",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.VendorID)
	assert.Equal(t, "rider", *updated.VendorID)
}

func TestDeclineClearsRiderForReassignment(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusAssigned,
		"sender", strptr("rider"), 2000, 1600)

	updated, err := e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "rider", Target: domain.StatusDeclined,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeclined, updated.OrderStatus)
	assert.Nil(t, updated.VendorID)

	updated, err = e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "sender", Target: domain.StatusAssigned, RiderID: "rider-2",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.VendorID)
	assert.Equal(t, "rider-2", *updated.VendorID)
}

func TestIllegalTransitionRejected(t *testing.T) {
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusAssigned,
		"sender", strptr("rider"), 2000, 1600)

	// The rider may set DELIVERED, but not before picking the package up.
	_, err := e.uc.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "rider", Target: domain.StatusDelivered,
	})
	assert.ErrorIs(t, err, xerrors.ErrIllegalTransition)
	assert.Equal(t, domain.StatusAssigned, e.store.Orders[order.ID].OrderStatus)
}

func TestAuthorizationDecidedBeforeTransition(t *testing.T) {
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusPickedUp,
		"sender", strptr("rider"), 2000, 1600)

	// COMPLETED is both out of the rider's reach and illegal from PICKED_UP;
	// the rider must see the authorization failure, not the state machine.
	_, err := e.uc.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "rider", Target: domain.StatusCompleted,
	})
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
	assert.NotErrorIs(t, err, xerrors.ErrIllegalTransition)
	assert.Equal(t, domain.StatusPickedUp, e.store.Orders[order.ID].OrderStatus)
}

func TestVendorCancelOnFoodOrderRefundsAndCounts(t *testing.T) {
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalFood, domain.StatusPreparing,
		"cus", strptr("vendor"), 2500, 2250)

	updated, err := e.uc.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "vendor", Target: domain.StatusCancelled, Reason: "out of stock",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EscrowRefunded, updated.EscrowStatus)
	assert.True(t, e.store.Wallets["cus"].Balance.Equal(dec(2500)))
	assert.Equal(t, 1, e.store.Cancellations["vendor"])
}

func TestGetRestrictedToParties(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalFood, domain.StatusPending,
		"cus", strptr("vendor"), 2500, 2250)
	e.store.Items[order.ID] = []domain.OrderItem{{ID: "li-1", OrderID: order.ID, ItemID: "jollof", Quantity: 2, Price: dec(1200)}}

	got, err := e.uc.Get(ctx, order.ID, "cus")
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)

	_, err = e.uc.Get(ctx, order.ID, "vendor")
	assert.NoError(t, err)

	_, err = e.uc.Get(ctx, order.ID, "stranger")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}

func TestAuditTrailRestrictedToParties(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusDelivered,
		"sender", strptr("rider"), 2000, 1600)

	_, err := e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "sender", Target: domain.StatusCompleted,
	})
	require.NoError(t, err)

	trail, err := e.uc.AuditTrail(ctx, order.ID, "sender")
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "STATUS_CHANGED", trail[0].Action)
	assert.Equal(t, map[string]any{"status": "COMPLETED"}, trail[0].NewValue)

	_, err = e.uc.AuditTrail(ctx, order.ID, "stranger")
	assert.ErrorIs(t, err, xerrors.ErrForbidden)
}

func TestRiderStatsCountCancellations(t *testing.T) {
	ctx := context.Background()
	e := newOrderEnv()
	order := e.seedHeldOrder(t, domain.VerticalDelivery, domain.StatusPickedUp,
		"sender", strptr("rider"), 2000, 1600)

	_, err := e.uc.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		OrderID: order.ID, ActorID: "rider", Target: domain.StatusCancelled,
	})
	require.NoError(t, err)

	stats, err := e.uc.RiderStats(ctx, "rider")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CancellationCount)
}
