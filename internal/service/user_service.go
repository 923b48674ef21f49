package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/krismos64/Staka-livres-sub003/internal/auth"
	"github.com/krismos64/Staka-livres-sub003/internal/config"
	"github.com/krismos64/Staka-livres-sub003/internal/datamodels/user"
)

var (
	// ErrEmailTaken the email already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials login rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive the account exists but was never activated.
	ErrAccountInactive = errors.New("account not activated")
)

var validate = validator.New()

// RegisterInput direct sign-up payload.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,min=2,max=128"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// UserService direct account management: sign-up and login. Guest
// accounts are provisioned by the reconciliation engine instead.
type UserService struct {
	users  user.Repository
	jwtCfg *config.JWTConfig
}

func NewUserService(users user.Repository, jwtCfg *config.JWTConfig) *UserService {
	return &UserService{users: users, jwtCfg: jwtCfg}
}

// Register creates an active account with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &user.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		IsActive:     true,
		Role:         user.RoleClient,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Login checks credentials and issues a session token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !u.IsActive {
		return "", nil, ErrAccountInactive
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := auth.GenerateToken(s.jwtCfg, u.ID, u.Email, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

