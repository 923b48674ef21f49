package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
)

type pendingOrderRepo struct {
	db *gorm.DB
}

// NewPendingOrderRepository creates the pending-order repository.
func NewPendingOrderRepository(db *gorm.DB) pendingorder.Repository {
	return &pendingOrderRepo{db: db}
}

func (r *pendingOrderRepo) Create(ctx context.Context, p *pendingorder.PendingOrder) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *pendingOrderRepo) GetByID(ctx context.Context, id int64) (*pendingorder.PendingOrder, error) {
	var p pendingorder.PendingOrder
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pendingorder.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *pendingOrderRepo) GetUnprocessedBySession(ctx context.Context, sessionID string) (*pendingorder.PendingOrder, error) {
	var p pendingorder.PendingOrder
	if err := r.db.WithContext(ctx).
		Where("checkout_session_id = ? AND is_processed = ?", sessionID, false).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pendingorder.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *pendingOrderRepo) GetByActivationToken(ctx context.Context, token string) (*pendingorder.PendingOrder, error) {
	var p pendingorder.PendingOrder
	if err := r.db.WithContext(ctx).
		Where("activation_token = ?", token).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pendingorder.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Claim is the single-row conditional update that serializes duplicate
// deliveries: only one caller observes RowsAffected == 1.
func (r *pendingOrderRepo) Claim(ctx context.Context, id int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&pendingorder.PendingOrder{}).
		Where("id = ? AND is_processed = ?", id, false).
		Updates(map[string]interface{}{
			"is_processed": true,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *pendingOrderRepo) Release(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&pendingorder.PendingOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_processed": false,
			"updated_at":   time.Now(),
		}).Error
}

func (r *pendingOrderRepo) UpdateActivation(ctx context.Context, id int64, token string, expiry time.Time) error {
	return r.db.WithContext(ctx).Model(&pendingorder.PendingOrder{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"activation_token":  token,
			"activation_expiry": expiry,
			"updated_at":        time.Now(),
		}).Error
}

func (r *pendingOrderRepo) ListUnprocessed(ctx context.Context, limit int) ([]*pendingorder.PendingOrder, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*pendingorder.PendingOrder
	if err := r.db.WithContext(ctx).
		Where("is_processed = ?", false).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
