package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/order"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository creates the order repository.
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return order.ErrDuplicateSession
		}
		return err
	}
	return nil
}

// MaterializeGuest writes the order, its side-effect intents and the
// pending-order back-links in one transaction. A duplicate
// checkout-session insert means a concurrent delivery won the race;
// the whole transaction rolls back.
func (r *orderRepo) MaterializeGuest(ctx context.Context, o *order.Order, tasks []*outbox.Task, pendingOrderID int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		for _, t := range tasks {
			t.OrderID = o.ID
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return tx.Model(&pendingorder.PendingOrder{}).
			Where("id = ?", pendingOrderID).
			Updates(map[string]interface{}{
				"user_id":    o.UserID,
				"order_id":   o.ID,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return order.ErrDuplicateSession
		}
		return err
	}
	return nil
}

// MarkPaidWithTasks flips the order to paid/in-progress and persists the
// side-effect intents in the same transaction.
func (r *orderRepo) MarkPaidWithTasks(ctx context.Context, o *order.Order, tasks []*outbox.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&order.Order{}).
			Where("id = ?", o.ID).
			Updates(map[string]interface{}{
				"payment_status":  o.PaymentStatus,
				"status":          o.Status,
				"amount_mismatch": o.AmountMismatch,
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return order.ErrNotFound
		}
		for _, t := range tasks {
			t.OrderID = o.ID
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *orderRepo) SetPaymentFailed(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&order.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_status": order.PaymentFailed,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByCheckoutSession(ctx context.Context, sessionID string) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).
		Where("checkout_session_id = ?", sessionID).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
