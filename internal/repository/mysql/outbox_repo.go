package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/outbox"
)

// claimLease is how far a claimed task's AvailableAt is pushed forward.
// A worker that dies mid-task loses the lease and the task is retried.
const claimLease = 2 * time.Minute

type outboxRepo struct {
	db *gorm.DB
}

// NewOutboxRepository creates the outbox repository.
func NewOutboxRepository(db *gorm.DB) outbox.Repository {
	return &outboxRepo{db: db}
}

// ClaimDue leases due pending tasks one by one with conditional updates
// so concurrent workers never run the same task twice.
func (r *outboxRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*outbox.Task, error) {
	if limit <= 0 {
		limit = 10
	}
	var due []*outbox.Task
	if err := r.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", outbox.StatusPending, now).
		Order("id ASC").
		Limit(limit).
		Find(&due).Error; err != nil {
		return nil, err
	}

	claimed := make([]*outbox.Task, 0, len(due))
	for _, t := range due {
		res := r.db.WithContext(ctx).Model(&outbox.Task{}).
			Where("id = ? AND status = ? AND available_at <= ?", t.ID, outbox.StatusPending, now).
			Updates(map[string]interface{}{
				"available_at": now.Add(claimLease),
				"updated_at":   now,
			})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 1 {
			claimed = append(claimed, t)
		}
	}
	return claimed, nil
}

func (r *outboxRepo) MarkDone(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&outbox.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     outbox.StatusDone,
			"updated_at": time.Now(),
		}).Error
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id int64, taskErr string, retryAt time.Time, final bool) error {
	status := outbox.StatusPending
	if final {
		status = outbox.StatusFailed
	}
	if len(taskErr) > 512 {
		taskErr = taskErr[:512]
	}
	return r.db.WithContext(ctx).Model(&outbox.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"attempts":     gorm.Expr("attempts + 1"),
			"last_error":   taskErr,
			"available_at": retryAt,
			"updated_at":   time.Now(),
		}).Error
}

func (r *outboxRepo) Requeue(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&outbox.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       outbox.StatusPending,
			"attempts":     0,
			"last_error":   "",
			"available_at": time.Now(),
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

func (r *outboxRepo) GetByID(ctx context.Context, id int64) (*outbox.Task, error) {
	var t outbox.Task
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, outbox.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *outboxRepo) ListRecent(ctx context.Context, limit int) ([]*outbox.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*outbox.Task
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *outboxRepo) ListByOrder(ctx context.Context, orderID int64) ([]*outbox.Task, error) {
	var list []*outbox.Task
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
