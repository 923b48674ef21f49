package servicepack

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound no service pack matches the lookup.
var ErrNotFound = errors.New("service pack not found")

// ServicePack — a correction offering (e.g. proofreading, full edit)
// a customer buys an order against.
type ServicePack struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"size:512"`
	PriceCents  int64  `gorm:"not null"`
	Active      bool   `gorm:"index;not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository service-pack persistence.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*ServicePack, error)
	ListActive(ctx context.Context) ([]*ServicePack, error)
	Create(ctx context.Context, p *ServicePack) error
	Update(ctx context.Context, p *ServicePack) error
}
