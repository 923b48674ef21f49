package service

import (
	"context"
	"errors"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/invoice"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
)

// ErrForbidden the caller does not own the resource.
var ErrForbidden = errors.New("forbidden")

// CreateOrderInput payload for a logged-in customer creating an order
// before paying for it.
type CreateOrderInput struct {
	Title             string `json:"title" validate:"required,min=2,max=255"`
	Description       string `json:"description" validate:"max=10000"`
	ServicePackID     int64  `json:"servicePackId" validate:"required,gt=0"`
	PageCount         int    `json:"pageCount" validate:"required,gt=0"`
	CheckoutSessionID string `json:"checkoutSessionId" validate:"max=191"`
}

// OrderService customer-facing order reads and the pre-payment create
// path. Payment transitions happen in the reconciliation engine only.
type OrderService struct {
	orders   order.Repository
	packs    servicepack.Repository
	invoices invoice.Repository
}

func NewOrderService(orders order.Repository, packs servicepack.Repository, invoices invoice.Repository) *OrderService {
	return &OrderService{orders: orders, packs: packs, invoices: invoices}
}

// Create records an order awaiting payment. The amount is taken from
// the service pack, never from the client.
func (s *OrderService) Create(ctx context.Context, userID int64, in CreateOrderInput) (*order.Order, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	pack, err := s.packs.GetByID(ctx, in.ServicePackID)
	if err != nil {
		return nil, err
	}
	o := &order.Order{
		UserID:            userID,
		Title:             in.Title,
		Description:       in.Description,
		Status:            order.StatusAwaiting,
		PaymentStatus:     order.PaymentUnpaid,
		CheckoutSessionID: in.CheckoutSessionID,
		AmountCents:       pack.PriceCents,
		PageCount:         in.PageCount,
		ServicePackID:     pack.ID,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns the order, enforcing ownership for non-admin callers.
func (s *OrderService) Get(ctx context.Context, callerID int64, isAdmin bool, orderID int64) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != callerID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// GetInvoice returns the invoice of an order the caller owns.
func (s *OrderService) GetInvoice(ctx context.Context, callerID int64, isAdmin bool, orderID int64) (*invoice.Invoice, error) {
	if _, err := s.Get(ctx, callerID, isAdmin, orderID); err != nil {
		return nil, err
	}
	return s.invoices.GetByOrderID(ctx, orderID)
}
