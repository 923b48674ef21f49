package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/file"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/servicepack"
	"github.com/krismos64/Staka-livres-sub003/internal/storage"
)

// GuestCheckoutInput payload collected from an unauthenticated buyer
// before they are sent to the payment provider.
type GuestCheckoutInput struct {
	Name              string `json:"name" validate:"required,min=2,max=128"`
	Email             string `json:"email" validate:"required,email"`
	Phone             string `json:"phone" validate:"max=32"`
	Address           string `json:"address" validate:"max=255"`
	ServicePackID     int64  `json:"servicePackId" validate:"required,gt=0"`
	Description       string `json:"description" validate:"max=10000"`
	PageCount         int    `json:"pageCount" validate:"required,gt=0"`
	CheckoutSessionID string `json:"checkoutSessionId" validate:"required,max=191"`
}

// GuestCheckoutService records a guest purchase intent. The pending
// order stays inert until the reconciliation engine consumes it.
type GuestCheckoutService struct {
	pendings pendingorder.Repository
	packs    servicepack.Repository
	files    file.Repository
	store    storage.ObjectStore
}

func NewGuestCheckoutService(pendings pendingorder.Repository, packs servicepack.Repository, files file.Repository, store storage.ObjectStore) *GuestCheckoutService {
	return &GuestCheckoutService{pendings: pendings, packs: packs, files: files, store: store}
}

// Start creates the pending order with a fresh activation token.
func (s *GuestCheckoutService) Start(ctx context.Context, in GuestCheckoutInput) (*pendingorder.PendingOrder, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.packs.GetByID(ctx, in.ServicePackID); err != nil {
		return nil, err
	}
	p := &pendingorder.PendingOrder{
		Name:              in.Name,
		Email:             in.Email,
		Phone:             in.Phone,
		Address:           in.Address,
		PasswordHash:      pendingorder.PasswordPendingActivation,
		ServicePackID:     in.ServicePackID,
		CheckoutSessionID: in.CheckoutSessionID,
		Description:       in.Description,
		PageCount:         in.PageCount,
		ActivationToken:   uuid.NewString(),
		ActivationExpiry:  time.Now().Add(activationTokenTTL),
	}
	if err := s.pendings.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// AttachFile stores a manuscript upload against the pending order. The
// sentinel description lets the migration task re-parent it once the
// order exists.
func (s *GuestCheckoutService) AttachFile(ctx context.Context, pendingOrderID int64, name string, content []byte, note string) (*file.File, error) {
	if _, err := s.pendings.GetByID(ctx, pendingOrderID); err != nil {
		return nil, err
	}
	name = filepath.Base(name)
	key := fmt.Sprintf("pending/%d/%s", pendingOrderID, name)
	path, err := s.store.Put(ctx, key, content)
	if err != nil {
		return nil, err
	}
	f := &file.File{
		Name:        name,
		Path:        path,
		Description: file.PendingDescription(pendingOrderID, note),
	}
	if err := s.files.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}
