package file

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// pendingPrefix tags uploads made against a pending guest order before
// the real order exists. Migration strips it and re-parents the file.
const pendingPrefix = "pending-order:"

// PendingDescription builds the sentinel description for an upload tied
// to a pending order.
func PendingDescription(pendingOrderID int64, note string) string {
	if note == "" {
		return fmt.Sprintf("%s%d", pendingPrefix, pendingOrderID)
	}
	return fmt.Sprintf("%s%d|%s", pendingPrefix, pendingOrderID, note)
}

// StripPending removes the sentinel, returning the user-facing note.
func StripPending(description string) string {
	if !strings.HasPrefix(description, pendingPrefix) {
		return description
	}
	rest := strings.TrimPrefix(description, pendingPrefix)
	if i := strings.IndexByte(rest, '|'); i >= 0 {
		return rest[i+1:]
	}
	return ""
}

// IsPending reports whether the description carries the sentinel.
func IsPending(description string) bool {
	return strings.HasPrefix(description, pendingPrefix)
}

// File — an uploaded manuscript attachment. OrderID is NULL while the
// file is only tied to a pending guest order.
type File struct {
	ID          int64  `gorm:"primaryKey"`
	UserID      *int64 `gorm:"index"`
	OrderID     *int64 `gorm:"index"`
	Name        string `gorm:"size:255;not null"`
	Path        string `gorm:"size:255;not null"`
	Description string `gorm:"size:512"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository file persistence.
type Repository interface {
	Create(ctx context.Context, f *File) error
	ListPendingByPendingOrder(ctx context.Context, pendingOrderID int64) ([]*File, error)
	Update(ctx context.Context, f *File) error
	ListByOrder(ctx context.Context, orderID int64) ([]*File, error)
}
