package user

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail another account already owns this email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// User account record. Guest-path users start inactive with a
// placeholder password hash and are activated out-of-band via token.
type User struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"size:128;not null"`
	Email        string    `gorm:"uniqueIndex;size:191;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	IsActive     bool      `gorm:"not null;default:false"`
	Role         string    `gorm:"size:16;index;not null;default:client"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository user persistence.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	ListAll(ctx context.Context) ([]*User, error)
}
