package order

import (
	"context"
	"errors"
	"time"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
)

var (
	// ErrNotFound no order matches the lookup.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateSession an order with this checkout session already
	// exists; a concurrent delivery materialized it first.
	ErrDuplicateSession = errors.New("checkout session already materialized")
)

// Order statuses.
const (
	StatusAwaiting             = "awaiting"
	StatusAwaitingVerification = "awaiting_verification"
	StatusInProgress           = "in_progress"
	StatusPaid                 = "paid"
	StatusDone                 = "done"
	StatusCancelled            = "cancelled"
)

// Payment statuses.
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
	PaymentFailed = "failed"
)

// Order — a manuscript-correction order. Created either directly by a
// logged-in customer (awaiting payment) or materialized by the payment
// reconciliation engine from a pending guest order. The unique index on
// CheckoutSessionID is the backstop against a duplicate webhook delivery
// materializing the same session twice.
type Order struct {
	ID                int64  `gorm:"primaryKey"`
	UserID            int64  `gorm:"index;not null"`
	Title             string `gorm:"size:255;not null"`
	Description       string `gorm:"type:text"`
	Status            string `gorm:"size:32;index;not null"`
	PaymentStatus     string `gorm:"size:16;index;not null"`
	CheckoutSessionID string `gorm:"uniqueIndex;size:191"`
	AmountCents       int64  `gorm:"not null"`
	PageCount         int    `gorm:"not null"`
	ServicePackID     int64  `gorm:"index"`
	// AmountMismatch marks orders whose provider-reported total differed
	// from the recorded amount; flagged for manual reconciliation.
	AmountMismatch bool `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository order persistence. MaterializeGuest and MarkPaidWithTasks
// write the order state change and its outbox task rows in a single
// transaction so a committed change always has its side-effect intents
// on disk.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// MaterializeGuest creates the order, its side-effect tasks and the
	// pending-order back-links atomically. Returns ErrDuplicateSession
	// when another delivery already materialized this session.
	MaterializeGuest(ctx context.Context, o *Order, tasks []*outbox.Task, pendingOrderID int64) error
	MarkPaidWithTasks(ctx context.Context, o *Order, tasks []*outbox.Task) error
	SetPaymentFailed(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByCheckoutSession(ctx context.Context, sessionID string) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
}
