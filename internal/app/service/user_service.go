package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"service_finder/internal/common"
	"service_finder/internal/common/security"
	"service_finder/internal/domain/model"
	"service_finder/internal/domain/repository"
)

type UserService struct {
	userRepo repository.UserRepository
	hasher   *security.PasswordHasher
}

func NewUserService(userRepo repository.UserRepository, hasher *security.PasswordHasher) *UserService {
	return &UserService{userRepo: userRepo, hasher: hasher}
}

// UpdateProfileRequest lists what a user may change about themselves.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Phone    *string `json:"phone,omitempty"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
}

// UpdateUserRequest is the admin variant. IsAdmin is applied only when present.
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"`
	IsAdmin  *bool   `json:"isAdmin,omitempty"`
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].HashedPassword = ""
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return user.Sanitized(), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*model.User, error) {
	return s.Update(ctx, userID, UpdateUserRequest{
		Name:     req.Name,
		Phone:    req.Phone,
		Password: req.Password,
	})
}

func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*model.User, error) {
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
	}
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.Password != nil {
		hashed, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.HashedPassword = hashed
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user.Sanitized(), nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("user %s: %w", id, err)
	}
	return nil
}

// PromoteByEmail grants the admin flag to an existing account.
func (s *UserService) PromoteByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", common.ErrBadRequest)
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("user with email %s: %w", email, err)
	}
	admin := true
	return s.Update(ctx, user.ID, UpdateUserRequest{IsAdmin: &admin})
}
