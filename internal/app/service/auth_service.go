package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"service_finder/internal/common"
	"service_finder/internal/common/security"
	"service_finder/internal/domain/model"
	"service_finder/internal/domain/repository"

	"github.com/google/uuid"
)

type AuthService struct {
	userRepo    repository.UserRepository
	tokens      *security.TokenService
	hasher      *security.PasswordHasher
	adminSecret string
}

func NewAuthService(userRepo repository.UserRepository, tokens *security.TokenService, hasher *security.PasswordHasher, adminSecret string) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		tokens:      tokens,
		hasher:      hasher,
		adminSecret: adminSecret,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone"`
}

type CreateAdminRequest struct {
	RegisterRequest
	SecretKey string `json:"secretKey"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is the flat user-plus-token body returned by every auth route.
type AuthResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"token"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return s.createUser(ctx, req, false)
}

// CreateAdmin is the operator path for bootstrapping admins. It is closed
// when no admin secret is configured.
func (s *AuthService) CreateAdmin(ctx context.Context, req CreateAdminRequest) (*AuthResponse, error) {
	if s.adminSecret == "" || subtle.ConstantTimeCompare([]byte(req.SecretKey), []byte(s.adminSecret)) != 1 {
		return nil, fmt.Errorf("not authorized to create admin: %w", common.ErrUnauthorized)
	}
	return s.createUser(ctx, req.RegisterRequest, true)
}

func (s *AuthService) createUser(ctx context.Context, req RegisterRequest, isAdmin bool) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	// Advisory only; the unique index on email is authoritative.
	if _, err := s.userRepo.FindByEmail(ctx, req.Email); err == nil {
		return nil, common.ErrDuplicateEmail
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hashedPassword, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		Phone:          strings.TrimSpace(req.Phone),
		IsAdmin:        isAdmin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.respond(user)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials // Generic message for security
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(req.Password, user.HashedPassword) {
		return nil, common.ErrInvalidCredentials
	}
	return s.respond(user)
}

func (s *AuthService) respond(user *model.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Phone:   user.Phone,
		IsAdmin: user.IsAdmin,
		Token:   token,
	}, nil
}
