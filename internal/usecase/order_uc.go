package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"escrow-service/internal/domain"
	"escrow-service/internal/ledger"
	"escrow-service/internal/lifecycle"
	"escrow-service/internal/notification"
	"escrow-service/internal/pkg/id"
	"escrow-service/internal/pkg/xerrors"
	"escrow-service/internal/pub"
	"escrow-service/internal/repository"
)

// OrderUsecase drives order status transitions and their money effects.
// Authorization and transition legality are checked before any wallet is
// touched; the effect and the status write share one storage transaction.
type OrderUsecase struct {
	store    ledger.Store
	orders   repository.OrderRepository
	audits   repository.AuditRepository
	events   EventPublisher
	notifier notification.Sender
	log      *zap.Logger
}

func NewOrderUsecase(
	store ledger.Store,
	orders repository.OrderRepository,
	audits repository.AuditRepository,
	events EventPublisher,
	notifier notification.Sender,
	log *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		store:    store,
		orders:   orders,
		audits:   audits,
		events:   events,
		notifier: notifier,
		log:      log,
	}
}

// UpdateStatusRequest carries one attempted transition.
type UpdateStatusRequest struct {
	OrderID string
	ActorID string
	Target  domain.OrderStatus
	// RiderID is required when Target is ASSIGNED on a delivery order.
	RiderID string
	// Reason is recorded on cancellations.
	Reason string
}

// UpdateStatus validates and applies one transition. Settlement effects:
// COMPLETED releases escrow to the counterparty; CANCELLED refunds the payer
// unless custody had been taken (provider-initiated cancellations always
// refund and count against the provider).
func (uc *OrderUsecase) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*domain.Order, error) {
	var updated *domain.Order

	err := uc.store.WithinTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		order, err := tx.GetOrderForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}

		cfg, err := lifecycle.For(order.Vertical)
		if err != nil {
			return err
		}
		// Authorization first: an unauthorized caller gets 403 regardless
		// of whether the move would be legal from the current state.
		if err := cfg.ValidateAuthorization(req.Target, req.ActorID, order.CustomerID, order.VendorID); err != nil {
			return err
		}
		if err := cfg.ValidateTransition(order.OrderStatus, req.Target); err != nil {
			return err
		}

		prev := order.OrderStatus

		switch req.Target {
		case domain.StatusAssigned:
			if err := uc.assign(order, req.RiderID); err != nil {
				return err
			}
		case domain.StatusDeclined:
			// The rider is off the order; the sender may re-assign.
			order.VendorID = nil
			order.DispatchID = nil
		case domain.StatusCompleted:
			if err := uc.release(ctx, tx, order); err != nil {
				return err
			}
		case domain.StatusCancelled:
			if err := uc.cancel(ctx, tx, cfg, order, prev, req); err != nil {
				return err
			}
		}

		order.OrderStatus = req.Target
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}

		if err := tx.InsertAudit(ctx, &domain.AuditEntry{
			ID:         id.NewULID(),
			EntityType: "ORDER",
			EntityID:   order.ID,
			Action:     "STATUS_CHANGED",
			OldValue:   map[string]any{"status": string(prev)},
			NewValue:   map[string]any{"status": string(req.Target)},
			ActorID:    req.ActorID,
			ActorType:  "USER",
			Notes:      req.Reason,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.events.Publish(ctx, pub.ChannelOrderUpdated, map[string]any{
		"order_id":   updated.ID,
		"order_type": string(updated.Vertical),
		"status":     string(updated.OrderStatus),
	})
	if updated.EscrowStatus == domain.EscrowReleased || updated.EscrowStatus == domain.EscrowRefunded {
		uc.events.Publish(ctx, pub.ChannelEscrowSettled, map[string]any{
			"order_id":      updated.ID,
			"escrow_status": string(updated.EscrowStatus),
			"amount":        updated.GrandTotal.String(),
		})
	}
	uc.notifyParties(ctx, updated)

	uc.log.Info("order status updated",
		zap.String("order_id", updated.ID),
		zap.String("status", string(updated.OrderStatus)),
		zap.String("actor_id", req.ActorID))
	return updated, nil
}

func (uc *OrderUsecase) assign(order *domain.Order, riderID string) error {
	if order.Vertical != domain.VerticalDelivery {
		return fmt.Errorf("%w: only delivery orders are assigned", xerrors.ErrInvalidRequest)
	}
	if riderID == "" {
		return fmt.Errorf("%w: assignment needs a rider", xerrors.ErrRiderRequired)
	}
	if riderID == order.CustomerID {
		return fmt.Errorf("%w: sender cannot ride their own delivery", xerrors.ErrInvalidRequest)
	}
	order.VendorID = &riderID
	return nil
}

func (uc *OrderUsecase) release(ctx context.Context, tx ledger.TxStore, order *domain.Order) error {
	if order.VendorID == nil {
		return fmt.Errorf("%w: no counterparty to release to", xerrors.ErrRiderRequired)
	}
	if _, err := ledger.Release(ctx, tx, ledger.ReleaseParams{
		PayerID:    order.CustomerID,
		PayeeID:    *order.VendorID,
		FullAmount: order.GrandTotal,
		PayeeShare: order.AmountDueVendor,
		OrderID:    order.ID,
		TxRef:      order.TxRef,
		Vertical:   order.Vertical,
	}); err != nil {
		return err
	}
	order.EscrowStatus = domain.EscrowReleased
	return nil
}

func (uc *OrderUsecase) cancel(ctx context.Context, tx ledger.TxStore, cfg lifecycle.Config, order *domain.Order, prev domain.OrderStatus, req UpdateStatusRequest) error {
	role, _ := cfg.ActorRole(req.ActorID, order.CustomerID, order.VendorID)
	byProvider := role == lifecycle.RoleVendor

	reason := req.Reason
	if reason == "" {
		reason = "ORDER_CANCELLED"
	}
	order.CancelReason = &reason
	cancelledBy := string(role)
	order.CancelledBy = &cancelledBy

	if byProvider {
		// Provider cancellations always make the payer whole and count
		// against the provider's record.
		if err := uc.refund(ctx, tx, order, reason); err != nil {
			return err
		}
		return tx.IncrementRiderCancellation(ctx, *order.VendorID)
	}

	if cfg.CustodyTaken(prev) {
		// Goods are with the counterparty; money stays held until the
		// return flow settles it.
		order.RequiresReturn = true
		uc.log.Warn("cancellation after custody, escrow retained",
			zap.String("order_id", order.ID), zap.String("from", string(prev)))
		return nil
	}
	return uc.refund(ctx, tx, order, reason)
}

func (uc *OrderUsecase) refund(ctx context.Context, tx ledger.TxStore, order *domain.Order, reason string) error {
	if _, err := ledger.Refund(ctx, tx, ledger.RefundParams{
		PayerID:  order.CustomerID,
		Amount:   order.GrandTotal,
		OrderID:  order.ID,
		TxRef:    order.TxRef,
		Vertical: order.Vertical,
		Reason:   reason,
	}); err != nil {
		return err
	}
	order.EscrowStatus = domain.EscrowRefunded
	order.PaymentStatus = domain.PaymentRefunded
	return nil
}

func (uc *OrderUsecase) notifyParties(ctx context.Context, order *domain.Order) {
	data := map[string]any{"order_id": order.ID, "status": string(order.OrderStatus)}
	uc.notifier.Notify(ctx, order.CustomerID, "Order update",
		fmt.Sprintf("Order is now %s", order.OrderStatus), data)
	if order.VendorID != nil {
		uc.notifier.Notify(ctx, *order.VendorID, "Order update",
			fmt.Sprintf("Order is now %s", order.OrderStatus), data)
	}
}

// Get returns one order with its line items, restricted to its parties.
func (uc *OrderUsecase) Get(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	order, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID != order.CustomerID && (order.VendorID == nil || actorID != *order.VendorID) {
		return nil, fmt.Errorf("%w: not a party to this order", xerrors.ErrForbidden)
	}
	items, err := uc.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// List returns a user's orders, optionally filtered by vertical.
func (uc *OrderUsecase) List(ctx context.Context, userID string, vertical domain.Vertical, limit, offset int) ([]*domain.Order, error) {
	return uc.orders.ListByUser(ctx, userID, vertical, limit, offset)
}

// AuditTrail returns an order's audit entries, restricted to its parties.
func (uc *OrderUsecase) AuditTrail(ctx context.Context, orderID, actorID string) ([]*domain.AuditEntry, error) {
	order, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID != order.CustomerID && (order.VendorID == nil || actorID != *order.VendorID) {
		return nil, fmt.Errorf("%w: not a party to this order", xerrors.ErrForbidden)
	}
	return uc.audits.ListByEntity(ctx, "ORDER", orderID)
}

// RiderStats returns a rider's cancellation record.
func (uc *OrderUsecase) RiderStats(ctx context.Context, riderID string) (*domain.RiderStats, error) {
	return uc.orders.GetRiderStats(ctx, riderID)
}
