package outbox

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound no task matches the lookup.
var ErrNotFound = errors.New("outbox task not found")

// Task kinds. One row per side effect of a reconciled payment.
const (
	KindInvoice             = "invoice"
	KindActivationEmail     = "activation_email"
	KindWelcomeConversation = "welcome_conversation"
	KindStaffNotification   = "staff_notification"
	KindClientNotification  = "client_notification"
	KindFileMigration       = "file_migration"
)

// Task statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// MaxAttempts after which a task is parked as failed and left for
// manual requeue through the admin API.
const MaxAttempts = 5

// Task — a durable side-effect intent. Written in the same transaction
// as the order state change it belongs to, then drained by the worker.
type Task struct {
	ID             int64  `gorm:"primaryKey"`
	Kind           string `gorm:"size:32;index;not null"`
	OrderID        int64  `gorm:"index;not null"`
	UserID         int64  `gorm:"index;not null"`
	PendingOrderID *int64 `gorm:"index"`
	Status         string `gorm:"size:16;index;not null"`
	Attempts       int    `gorm:"not null"`
	LastError      string `gorm:"size:512"`
	AvailableAt    time.Time `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repository outbox persistence. Claim semantics: ClaimDue flips due
// pending rows so two workers never execute the same task twice.
type Repository interface {
	// ClaimDue returns up to limit pending tasks whose AvailableAt has
	// passed, pushing their AvailableAt forward as an in-flight lease.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*Task, error)
	MarkDone(ctx context.Context, id int64) error
	// MarkFailed records the error, bumps Attempts and either reschedules
	// the task with backoff or parks it as failed past MaxAttempts.
	MarkFailed(ctx context.Context, id int64, taskErr string, retryAt time.Time, final bool) error
	Requeue(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Task, error)
	ListRecent(ctx context.Context, limit int) ([]*Task, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*Task, error)
}
