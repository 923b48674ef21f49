package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/conversation"
)

type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepository creates the conversation-message repository.
func NewMessageRepository(db *gorm.DB) conversation.Repository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, m *conversation.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *messageRepo) ListByUser(ctx context.Context, userID int64, afterID int64, limit int) ([]*conversation.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	var list []*conversation.Message
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Limit(limit)
	if afterID > 0 {
		q = q.Where("id > ?", afterID)
	}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
