package notification

import (
	"context"
	"time"
)

// Audiences.
const (
	AudienceStaff  = "staff"
	AudienceClient = "client"
)

// Notification — an in-app notice for staff ("new payment received")
// or for a customer ("your project was created").
type Notification struct {
	ID        int64  `gorm:"primaryKey"`
	Audience  string `gorm:"size:16;index;not null"`
	UserID    *int64 `gorm:"index"`
	OrderID   int64  `gorm:"index;not null"`
	Title     string `gorm:"size:255;not null"`
	Body      string `gorm:"size:1024"`
	ReadAt    *time.Time
	CreatedAt time.Time `gorm:"index"`
}

// Repository notification persistence.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByAudience(ctx context.Context, audience string, limit int) ([]*Notification, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, id int64) error
}
