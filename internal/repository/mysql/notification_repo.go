package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/notification"
)

type notificationRepo struct {
	db *gorm.DB
}

// NewNotificationRepository creates the notification repository.
func NewNotificationRepository(db *gorm.DB) notification.Repository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListByAudience(ctx context.Context, audience string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*notification.Notification
	if err := r.db.WithContext(ctx).
		Where("audience = ?", audience).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*notification.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&notification.Notification{}).
		Where("id = ?", id).
		Update("read_at", &now).Error
}
