package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/invoice"
)

type invoiceRepo struct {
	db *gorm.DB
}

// NewInvoiceRepository creates the invoice repository.
func NewInvoiceRepository(db *gorm.DB) invoice.Repository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, inv *invoice.Invoice) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *invoiceRepo) GetByOrderID(ctx context.Context, orderID int64) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invoice.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepo) ExistsForOrder(ctx context.Context, orderID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&invoice.Invoice{}).
		Where("order_id = ?", orderID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
