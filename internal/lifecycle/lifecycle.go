package lifecycle

import (
	"fmt"

	"escrow-service/internal/domain"
	"escrow-service/internal/pkg/xerrors"
)

// Role of the actor attempting a transition.
type Role string

const (
	// RoleCustomer is the payer: the sender for delivery, the customer for
	// food/product/laundry.
	RoleCustomer Role = "CUSTOMER"
	// RoleVendor is the counterparty: the rider for delivery, the vendor
	// otherwise.
	RoleVendor Role = "VENDOR"
)

// Config describes one vertical's state machine: the legal transitions, the
// role allowed to set each target status, and which statuses mean the
// counterparty has taken custody of the goods (which gates automatic refunds
// on cancellation).
type Config struct {
	Vertical    domain.Vertical
	Transitions map[domain.OrderStatus][]domain.OrderStatus
	// TargetRoles maps a target status to the roles allowed to set it.
	// CANCELLED is the only status reachable by both roles.
	TargetRoles map[domain.OrderStatus][]Role
	// CustodyStates are statuses in which the counterparty holds the goods.
	CustodyStates map[domain.OrderStatus]bool
}

var deliveryConfig = Config{
	Vertical: domain.VerticalDelivery,
	Transitions: map[domain.OrderStatus][]domain.OrderStatus{
		domain.StatusPending:   {domain.StatusAssigned, domain.StatusCancelled},
		domain.StatusAssigned:  {domain.StatusAccepted, domain.StatusDeclined, domain.StatusCancelled},
		domain.StatusDeclined:  {domain.StatusAssigned},
		domain.StatusAccepted:  {domain.StatusPickedUp, domain.StatusCancelled},
		domain.StatusPickedUp:  {domain.StatusInTransit, domain.StatusDelivered, domain.StatusCancelled},
		domain.StatusInTransit: {domain.StatusDelivered, domain.StatusCancelled},
		domain.StatusDelivered: {domain.StatusCompleted, domain.StatusCancelled},
		domain.StatusCompleted: {},
		domain.StatusCancelled: {},
	},
	TargetRoles: map[domain.OrderStatus][]Role{
		domain.StatusAssigned:  {RoleCustomer},
		domain.StatusAccepted:  {RoleVendor},
		domain.StatusDeclined:  {RoleVendor},
		domain.StatusPickedUp:  {RoleVendor},
		domain.StatusInTransit: {RoleVendor},
		domain.StatusDelivered: {RoleVendor},
		domain.StatusCompleted: {RoleCustomer},
		domain.StatusCancelled: {RoleCustomer, RoleVendor},
	},
	CustodyStates: map[domain.OrderStatus]bool{
		domain.StatusPickedUp:  true,
		domain.StatusInTransit: true,
		domain.StatusDelivered: true,
	},
}

var foodConfig = Config{
	Vertical: domain.VerticalFood,
	Transitions: map[domain.OrderStatus][]domain.OrderStatus{
		domain.StatusPending:   {domain.StatusPreparing, domain.StatusCancelled},
		domain.StatusPreparing: {domain.StatusReady, domain.StatusCancelled},
		domain.StatusReady:     {domain.StatusInTransit, domain.StatusDelivered, domain.StatusCancelled},
		domain.StatusInTransit: {domain.StatusDelivered, domain.StatusCancelled},
		domain.StatusDelivered: {domain.StatusCompleted, domain.StatusCancelled},
		domain.StatusCompleted: {},
		domain.StatusCancelled: {},
	},
	TargetRoles: map[domain.OrderStatus][]Role{
		domain.StatusPreparing: {RoleVendor},
		domain.StatusReady:     {RoleVendor},
		domain.StatusInTransit: {RoleVendor},
		domain.StatusDelivered: {RoleVendor},
		domain.StatusCompleted: {RoleCustomer},
		domain.StatusCancelled: {RoleCustomer, RoleVendor},
	},
	CustodyStates: map[domain.OrderStatus]bool{
		domain.StatusPreparing: true,
		domain.StatusReady:     true,
		domain.StatusInTransit: true,
		domain.StatusDelivered: true,
	},
}

var productConfig = Config{
	Vertical: domain.VerticalProduct,
	Transitions: map[domain.OrderStatus][]domain.OrderStatus{
		domain.StatusPending:   {domain.StatusInTransit, domain.StatusCancelled},
		domain.StatusInTransit: {domain.StatusDelivered, domain.StatusCancelled},
		domain.StatusDelivered: {domain.StatusCompleted, domain.StatusCancelled},
		domain.StatusCompleted: {},
		domain.StatusCancelled: {},
	},
	TargetRoles: map[domain.OrderStatus][]Role{
		domain.StatusInTransit: {RoleVendor},
		domain.StatusDelivered: {RoleVendor},
		domain.StatusCompleted: {RoleCustomer},
		domain.StatusCancelled: {RoleCustomer, RoleVendor},
	},
	CustodyStates: map[domain.OrderStatus]bool{
		domain.StatusInTransit: true,
		domain.StatusDelivered: true,
	},
}

var laundryConfig = Config{
	Vertical:      domain.VerticalLaundry,
	Transitions:   foodConfig.Transitions,
	TargetRoles:   foodConfig.TargetRoles,
	CustodyStates: foodConfig.CustodyStates,
}

var configs = map[domain.Vertical]Config{
	domain.VerticalDelivery: deliveryConfig,
	domain.VerticalFood:     foodConfig,
	domain.VerticalProduct:  productConfig,
	domain.VerticalLaundry:  laundryConfig,
}

// For returns the state machine configuration of a vertical.
func For(v domain.Vertical) (Config, error) {
	cfg, ok := configs[v]
	if !ok {
		return Config{}, fmt.Errorf("%w: no lifecycle for vertical %s", xerrors.ErrInvalidRequest, v)
	}
	return cfg, nil
}

// ValidateTransition reports whether current → target is a legal edge.
// Pure: safe to call with no dependencies.
func (c Config) ValidateTransition(current, target domain.OrderStatus) error {
	allowed, ok := c.Transitions[current]
	if !ok {
		return fmt.Errorf("%w: unknown status %s", xerrors.ErrIllegalTransition, current)
	}
	if len(allowed) == 0 {
		return fmt.Errorf("%w: %s is terminal", xerrors.ErrTerminalState, current)
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", xerrors.ErrIllegalTransition, current, target)
}

// ValidateAuthorization checks that actorID may set target on an order whose
// payer is customerID and whose counterparty (if assigned) is vendorID.
// Pure: runs strictly before any money movement.
func (c Config) ValidateAuthorization(target domain.OrderStatus, actorID, customerID string, vendorID *string) error {
	roles, ok := c.TargetRoles[target]
	if !ok {
		return fmt.Errorf("%w: status %s is not settable", xerrors.ErrForbidden, target)
	}
	for _, role := range roles {
		switch role {
		case RoleCustomer:
			if actorID == customerID {
				return nil
			}
		case RoleVendor:
			if vendorID != nil && actorID == *vendorID {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: actor may not set status %s", xerrors.ErrForbidden, target)
}

// ActorRole resolves which declared party the actor is, if any.
func (c Config) ActorRole(actorID, customerID string, vendorID *string) (Role, bool) {
	if actorID == customerID {
		return RoleCustomer, true
	}
	if vendorID != nil && actorID == *vendorID {
		return RoleVendor, true
	}
	return "", false
}

// CustodyTaken reports whether the counterparty holds the goods in the given
// status. Cancellation from a custody state does not auto-refund the payer.
func (c Config) CustodyTaken(status domain.OrderStatus) bool {
	return c.CustodyStates[status]
}

// IsTerminal reports whether no transition leaves the status.
func (c Config) IsTerminal(status domain.OrderStatus) bool {
	allowed, ok := c.Transitions[status]
	return ok && len(allowed) == 0
}
