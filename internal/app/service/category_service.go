package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"service_finder/internal/common"
	"service_finder/internal/domain/model"
	"service_finder/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type CategoryService struct {
	categoryRepo     repository.CategoryRepository
	providerRepo     repository.ProviderRepository
	allowInUseDelete bool
}

func NewCategoryService(categoryRepo repository.CategoryRepository, providerRepo repository.ProviderRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo, providerRepo: providerRepo}
}

// AllowInUseDelete switches Delete back to the unchecked behavior: providers
// referencing the category keep its id and render without a category.
func (s *CategoryService) AllowInUseDelete(allow bool) *CategoryService {
	s.allowInUseDelete = allow
	return s
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	IconName    string `json:"iconName" validate:"required"`
	Description string `json:"description"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1"`
	IconName    *string `json:"iconName,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// ListPublic returns only active categories.
func (s *CategoryService) ListPublic(ctx context.Context) ([]model.Category, error) {
	return s.categoryRepo.List(ctx, true)
}

// ListAll includes inactive categories; admin only.
func (s *CategoryService) ListAll(ctx context.Context) ([]model.Category, error) {
	return s.categoryRepo.List(ctx, false)
}

func (s *CategoryService) GetByID(ctx context.Context, id string) (*model.Category, error) {
	c, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", id, err)
	}
	return c, nil
}

func (s *CategoryService) Create(ctx context.Context, req CreateCategoryRequest) (*model.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	// Advisory check for a friendlier error; the unique index on name
	// catches the race between this lookup and the insert.
	if _, err := s.categoryRepo.FindByName(ctx, req.Name); err == nil {
		return nil, fmt.Errorf("category with this name already exists: %w", common.ErrDuplicateName)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check category name: %w", err)
	}

	now := time.Now().UTC()
	category := &model.Category{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        slug.Make(req.Name),
		IconName:    req.IconName,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, req UpdateCategoryRequest) (*model.Category, error) {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", id, err)
	}

	if req.Name != nil {
		category.Name = *req.Name
		category.Slug = slug.Make(*req.Name)
	}
	if req.IconName != nil {
		category.IconName = *req.IconName
	}
	if req.Description != nil {
		category.Description = *req.Description
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}
	category.UpdatedAt = time.Now().UTC()

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return category, nil
}

// Delete refuses to remove a category that providers still point at, unless
// AllowInUseDelete was set.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
		return fmt.Errorf("category %s: %w", id, err)
	}
	if s.allowInUseDelete {
		if err := s.categoryRepo.Delete(ctx, id); err != nil {
			return fmt.Errorf("category %s: %w", id, err)
		}
		return nil
	}
	inUse, err := s.providerRepo.CountByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count providers for category: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("category is referenced by %d service provider(s): %w", inUse, common.ErrConflict)
	}
	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("category %s: %w", id, err)
	}
	return nil
}
