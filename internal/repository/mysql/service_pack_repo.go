package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
)

type servicePackRepo struct {
	db *gorm.DB
}

// NewServicePackRepository creates the service-pack repository.
func NewServicePackRepository(db *gorm.DB) servicepack.Repository {
	return &servicePackRepo{db: db}
}

func (r *servicePackRepo) GetByID(ctx context.Context, id int64) (*servicepack.ServicePack, error) {
	var p servicepack.ServicePack
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, servicepack.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *servicePackRepo) ListActive(ctx context.Context) ([]*servicepack.ServicePack, error) {
	var list []*servicepack.ServicePack
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("price_cents ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *servicePackRepo) Create(ctx context.Context, p *servicepack.ServicePack) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *servicePackRepo) Update(ctx context.Context, p *servicepack.ServicePack) error {
	return r.db.WithContext(ctx).Save(p).Error
}
