package invoice

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound no invoice matches the lookup.
var ErrNotFound = errors.New("invoice not found")

// Invoice — one per successfully paid order; never updated afterwards.
type Invoice struct {
	ID          int64  `gorm:"primaryKey"`
	OrderID     int64  `gorm:"uniqueIndex;not null"`
	Number      string `gorm:"uniqueIndex;size:64;not null"`
	AmountCents int64  `gorm:"not null"`
	PDFPath     string `gorm:"size:255"`
	CreatedAt   time.Time
}

// Repository invoice persistence.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByOrderID(ctx context.Context, orderID int64) (*Invoice, error)
	ExistsForOrder(ctx context.Context, orderID int64) (bool, error)
}
