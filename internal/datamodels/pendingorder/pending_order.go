package pendingorder

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound no pending order matches the lookup.
var ErrNotFound = errors.New("pending order not found")

// PasswordPendingActivation is the sentinel stored while a guest has not
// yet chosen a password. It is never accepted as a login credential; the
// provisioned user gets a bcrypt hash of a random placeholder instead.
const PasswordPendingActivation = "pending_activation"

// PendingOrder — a guest purchase that has not been realized yet.
// Consumed exactly once by the payment reconciliation engine, which
// claims it (IsProcessed false -> true), provisions the user, creates
// the order and links both back here. The IsProcessed flag is the
// durable de-duplication anchor for the guest path.
type PendingOrder struct {
	ID                int64  `gorm:"primaryKey"`
	Name              string `gorm:"size:128;not null"`
	Email             string `gorm:"size:191;index;not null"`
	Phone             string `gorm:"size:32"`
	Address           string `gorm:"size:255"`
	PasswordHash      string `gorm:"size:255;not null"`
	ServicePackID     int64  `gorm:"index;not null"`
	CheckoutSessionID string `gorm:"index;size:191"`
	Description       string `gorm:"type:text"`
	PageCount         int    `gorm:"not null"`
	ActivationToken   string `gorm:"uniqueIndex;size:64"`
	ActivationExpiry  time.Time
	IsProcessed       bool   `gorm:"index;not null;default:false"`
	UserID            *int64 `gorm:"index"`
	OrderID           *int64 `gorm:"index"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Repository pending-order persistence.
type Repository interface {
	Create(ctx context.Context, p *PendingOrder) error
	GetByID(ctx context.Context, id int64) (*PendingOrder, error)
	GetUnprocessedBySession(ctx context.Context, sessionID string) (*PendingOrder, error)
	GetByActivationToken(ctx context.Context, token string) (*PendingOrder, error)
	// Claim atomically flips IsProcessed false -> true and reports
	// whether this caller won the claim. A concurrent duplicate delivery
	// observes false and must no-op.
	Claim(ctx context.Context, id int64) (bool, error)
	// Release undoes a claim after a provisioning failure so the
	// provider's redelivery can retry the guest path.
	Release(ctx context.Context, id int64) error
	UpdateActivation(ctx context.Context, id int64, token string, expiry time.Time) error
	ListUnprocessed(ctx context.Context, limit int) ([]*PendingOrder, error)
}
