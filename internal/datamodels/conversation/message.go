package conversation

import (
	"context"
	"time"
)

// Message authors.
const (
	AuthorSystem = "system"
	AuthorClient = "client"
	AuthorStaff  = "staff"
)

// Message — one entry of a customer's conversation thread with the
// correction team. Welcome seeding writes system-authored messages.
type Message struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    int64  `gorm:"index;not null"`
	Author    string `gorm:"size:16;not null"`
	Content   string `gorm:"size:2048;not null"`
	CreatedAt time.Time `gorm:"index"`
}

// Repository conversation persistence.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	ListByUser(ctx context.Context, userID int64, afterID int64, limit int) ([]*Message, error)
}
