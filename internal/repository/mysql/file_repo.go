package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/file"
)

type fileRepo struct {
	db *gorm.DB
}

// NewFileRepository creates the file repository.
func NewFileRepository(db *gorm.DB) file.Repository {
	return &fileRepo{db: db}
}

func (r *fileRepo) Create(ctx context.Context, f *file.File) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *fileRepo) ListPendingByPendingOrder(ctx context.Context, pendingOrderID int64) ([]*file.File, error) {
	// Exact marker or marker plus note; a bare prefix LIKE would also
	// match longer pending-order ids.
	marker := file.PendingDescription(pendingOrderID, "")
	var list []*file.File
	if err := r.db.WithContext(ctx).
		Where("order_id IS NULL AND (description = ? OR description LIKE ?)", marker, marker+"|%").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *fileRepo) Update(ctx context.Context, f *file.File) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *fileRepo) ListByOrder(ctx context.Context, orderID int64) ([]*file.File, error) {
	var list []*file.File
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
