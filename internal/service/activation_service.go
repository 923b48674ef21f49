package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/krismos64/Staka-livres-sub003/internal/auth"
	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/pendingorder"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
)

var (
	// ErrActivationInvalid unknown token or no provisioned account yet.
	ErrActivationInvalid = errors.New("invalid activation token")
	// ErrActivationExpired the token's validity window has passed.
	ErrActivationExpired = errors.New("activation token expired")
	// ErrAlreadyActivated the account already has a real password.
	ErrAlreadyActivated = errors.New("account already activated")
)

// ActivationService turns a provisioned guest account into a usable
// one: the customer follows the emailed link and sets a real password.
type ActivationService struct {
	pendings pendingorder.Repository
	users    user.Repository
	jwtCfg   *config.JWTConfig
}

func NewActivationService(pendings pendingorder.Repository, users user.Repository, jwtCfg *config.JWTConfig) *ActivationService {
	return &ActivationService{pendings: pendings, users: users, jwtCfg: jwtCfg}
}

// Activate sets the password, flips the account active and returns a
// session token so the customer lands logged in.
func (s *ActivationService) Activate(ctx context.Context, token, password string) (string, *user.User, error) {
	if token == "" || len(password) < 8 {
		return "", nil, ErrActivationInvalid
	}

	p, err := s.pendings.GetByActivationToken(ctx, token)
	if err != nil {
		if errors.Is(err, pendingorder.ErrNotFound) {
			return "", nil, ErrActivationInvalid
		}
		return "", nil, err
	}
	if time.Now().After(p.ActivationExpiry) {
		return "", nil, ErrActivationExpired
	}
	if p.UserID == nil {
		// Payment not reconciled yet; the account does not exist.
		return "", nil, ErrActivationInvalid
	}

	u, err := s.users.GetByID(ctx, *p.UserID)
	if err != nil {
		return "", nil, err
	}
	if u.IsActive {
		return "", nil, ErrAlreadyActivated
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	u.PasswordHash = string(hash)
	u.IsActive = true
	if err := s.users.Update(ctx, u); err != nil {
		return "", nil, err
	}

	sessionToken, err := auth.GenerateToken(s.jwtCfg, u.ID, u.Email, u.Role)
	if err != nil {
		return "", nil, err
	}
	return sessionToken, u, nil
}
