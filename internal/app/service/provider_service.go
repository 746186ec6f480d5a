package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"service_finder/internal/common"
	"service_finder/internal/common/geo"
	"service_finder/internal/domain/model"
	"service_finder/internal/domain/repository"

	"github.com/google/uuid"
)

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, subfolder string, file io.Reader) (string, error)
}

type ProviderService struct {
	providerRepo repository.ProviderRepository
	categoryRepo repository.CategoryRepository
	uploader     ImageUploader // nil when media storage is not configured
}

func NewProviderService(providerRepo repository.ProviderRepository, categoryRepo repository.CategoryRepository, uploader ImageUploader) *ProviderService {
	return &ProviderService{
		providerRepo: providerRepo,
		categoryRepo: categoryRepo,
		uploader:     uploader,
	}
}

type LocationInput struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

func (l LocationInput) point() geo.Point {
	return geo.Point{Lat: *l.Lat, Lng: *l.Lng}
}

type CreateProviderRequest struct {
	Name            string              `json:"name" validate:"required"`
	Category        string              `json:"category" validate:"required"`
	Address         model.Address       `json:"address"`
	Location        LocationInput       `json:"location"`
	Contacts        []model.Contact     `json:"contacts" validate:"dive"`
	Rating          *float64            `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Reviews         *int                `json:"reviews,omitempty" validate:"omitempty,gte=0"`
	PriceRange      *string             `json:"priceRange,omitempty"`
	IsVerified      *bool               `json:"isVerified,omitempty"`
	IsAvailable     *bool               `json:"isAvailable,omitempty"`
	Description     string              `json:"description"`
	Images          []string            `json:"images" validate:"dive,required"`
	OpeningHours    *model.OpeningHours `json:"openingHours,omitempty"`
	Services        []string            `json:"services"`
	ExperienceYears *int                `json:"experienceYears,omitempty" validate:"omitempty,gte=0"`
	Certifications  []string            `json:"certifications"`
}

// UpdateProviderRequest enumerates every mutable field; nil means unchanged.
type UpdateProviderRequest struct {
	Name            *string             `json:"name,omitempty" validate:"omitempty,min=1"`
	Category        *string             `json:"category,omitempty" validate:"omitempty,min=1"`
	Address         *model.Address      `json:"address,omitempty"`
	Location        *LocationInput      `json:"location,omitempty"`
	Contacts        *[]model.Contact    `json:"contacts,omitempty" validate:"omitempty,dive"`
	Rating          *float64            `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Reviews         *int                `json:"reviews,omitempty" validate:"omitempty,gte=0"`
	PriceRange      *string             `json:"priceRange,omitempty"`
	IsVerified      *bool               `json:"isVerified,omitempty"`
	IsAvailable     *bool               `json:"isAvailable,omitempty"`
	Description     *string             `json:"description,omitempty"`
	Images          *[]string           `json:"images,omitempty" validate:"omitempty,dive,required"`
	OpeningHours    *model.OpeningHours `json:"openingHours,omitempty"`
	Services        *[]string           `json:"services,omitempty"`
	ExperienceYears *int                `json:"experienceYears,omitempty" validate:"omitempty,gte=0"`
	Certifications  *[]string           `json:"certifications,omitempty"`
}

type NearbyQuery struct {
	Lat        float64
	Lng        float64
	RadiusKm   float64
	CategoryID string // optional, not checked for existence
}

func (s *ProviderService) GetAll(ctx context.Context) ([]model.ServiceProvider, error) {
	providers, err := s.providerRepo.List(ctx, repository.ProviderFilter{})
	if err != nil {
		return nil, err
	}
	return providers, s.populateCategories(ctx, providers)
}

func (s *ProviderService) GetByCategory(ctx context.Context, categoryID string) ([]model.ServiceProvider, error) {
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		return nil, fmt.Errorf("category %s: %w", categoryID, err)
	}
	providers, err := s.providerRepo.List(ctx, repository.ProviderFilter{CategoryID: categoryID, AvailableOnly: true})
	if err != nil {
		return nil, err
	}
	return providers, s.populateCategories(ctx, providers)
}

func (s *ProviderService) GetByID(ctx context.Context, id string) (*model.ServiceProvider, error) {
	p, err := s.providerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service provider %s: %w", id, err)
	}
	return p, s.populateOne(ctx, p)
}

// FindNearby returns available providers within q.RadiusKm of the query
// point, closest first.
//
// The store is asked for everything inside a bounding box that is known to
// contain the search circle; the exact haversine distance then decides
// membership and order. Equal distances keep the store's insertion order.
func (s *ProviderService) FindNearby(ctx context.Context, q NearbyQuery) ([]model.NearbyProvider, error) {
	center := geo.Point{Lat: q.Lat, Lng: q.Lng}
	if !geo.ValidCoordinate(center) {
		return nil, fmt.Errorf("latitude must be within [-90, 90] and longitude within [-180, 180]: %w", common.ErrBadRequest)
	}
	if math.IsNaN(q.RadiusKm) || math.IsInf(q.RadiusKm, 0) || q.RadiusKm <= 0 {
		return nil, fmt.Errorf("radius must be a positive number of kilometres: %w", common.ErrBadRequest)
	}

	box := geo.BoundingBoxFor(center, q.RadiusKm)
	candidates, err := s.providerRepo.List(ctx, repository.ProviderFilter{
		CategoryID:    q.CategoryID,
		AvailableOnly: true,
		Box:           &box,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby candidates: %w", err)
	}

	results := make([]model.NearbyProvider, 0, len(candidates))
	for _, p := range candidates {
		d := geo.HaversineKm(center, p.Location)
		if d > q.RadiusKm {
			continue
		}
		results = append(results, model.NearbyProvider{ServiceProvider: p, Distance: d})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if err := s.populateNearby(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *ProviderService) Create(ctx context.Context, req CreateProviderRequest) (*model.ServiceProvider, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, req.Category); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.ServiceProvider{
		ID:             uuid.NewString(),
		Name:           req.Name,
		CategoryID:     req.Category,
		Address:        req.Address,
		Location:       req.Location.point(),
		Contacts:       req.Contacts,
		PriceRange:     model.DefaultPriceRange,
		IsAvailable:    true,
		Description:    req.Description,
		Images:         req.Images,
		Services:       req.Services,
		Certifications: req.Certifications,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Rating != nil {
		p.Rating = *req.Rating
	}
	if req.Reviews != nil {
		p.Reviews = *req.Reviews
	}
	if req.PriceRange != nil && strings.TrimSpace(*req.PriceRange) != "" {
		p.PriceRange = *req.PriceRange
	}
	if req.IsVerified != nil {
		p.IsVerified = *req.IsVerified
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}
	if req.OpeningHours != nil {
		p.OpeningHours = *req.OpeningHours
	}
	if req.ExperienceYears != nil {
		p.ExperienceYears = *req.ExperienceYears
	}
	normalizeProvider(p)

	if err := s.providerRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create service provider: %w", err)
	}
	return p, s.populateOne(ctx, p)
}

func (s *ProviderService) Update(ctx context.Context, id string, req UpdateProviderRequest) (*model.ServiceProvider, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if req.Category != nil {
		if err := s.requireCategory(ctx, *req.Category); err != nil {
			return nil, err
		}
	}

	p, err := s.providerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service provider %s: %w", id, err)
	}
	applyProviderUpdate(p, req)
	normalizeProvider(p)
	p.UpdatedAt = time.Now().UTC()

	if err := s.providerRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("service provider %s: %w", id, err)
	}
	return p, s.populateOne(ctx, p)
}

func (s *ProviderService) Delete(ctx context.Context, id string) error {
	if err := s.providerRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("service provider %s: %w", id, err)
	}
	return nil
}

// AddImage uploads an image and appends its URL to the provider's gallery.
func (s *ProviderService) AddImage(ctx context.Context, id string, file io.Reader) (*model.ServiceProvider, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("image uploads are not configured: %w", common.ErrServiceUnavailable)
	}
	p, err := s.providerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service provider %s: %w", id, err)
	}
	url, err := s.uploader.UploadImage(ctx, p.ID, file)
	if err != nil {
		return nil, err
	}
	p.Images = append(p.Images, url)
	p.UpdatedAt = time.Now().UTC()
	if err := s.providerRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("service provider %s: %w", id, err)
	}
	return p, s.populateOne(ctx, p)
}

func (s *ProviderService) requireCategory(ctx context.Context, categoryID string) error {
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("category not found: %w", common.ErrNotFound)
		}
		return fmt.Errorf("failed to look up category: %w", err)
	}
	return nil
}

func applyProviderUpdate(p *model.ServiceProvider, req UpdateProviderRequest) {
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		p.CategoryID = *req.Category
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.Location != nil {
		p.Location = req.Location.point()
	}
	if req.Contacts != nil {
		p.Contacts = *req.Contacts
	}
	if req.Rating != nil {
		p.Rating = *req.Rating
	}
	if req.Reviews != nil {
		p.Reviews = *req.Reviews
	}
	if req.PriceRange != nil {
		p.PriceRange = *req.PriceRange
	}
	if req.IsVerified != nil {
		p.IsVerified = *req.IsVerified
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Images != nil {
		p.Images = *req.Images
	}
	if req.OpeningHours != nil {
		p.OpeningHours = *req.OpeningHours
	}
	if req.Services != nil {
		p.Services = *req.Services
	}
	if req.ExperienceYears != nil {
		p.ExperienceYears = *req.ExperienceYears
	}
	if req.Certifications != nil {
		p.Certifications = *req.Certifications
	}
}

// normalizeProvider keeps list fields as [] rather than null in every store.
func normalizeProvider(p *model.ServiceProvider) {
	if p.Contacts == nil {
		p.Contacts = []model.Contact{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Services == nil {
		p.Services = []string{}
	}
	if p.Certifications == nil {
		p.Certifications = []string{}
	}
	if strings.TrimSpace(p.PriceRange) == "" {
		p.PriceRange = model.DefaultPriceRange
	}
}

func (s *ProviderService) categoryIndex(ctx context.Context, ids []string) (map[string]model.Category, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	categories, err := s.categoryRepo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	index := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		index[c.ID] = c
	}
	return index, nil
}

// populateCategories expands each provider's category reference. Orphaned
// references are left unexpanded.
func (s *ProviderService) populateCategories(ctx context.Context, providers []model.ServiceProvider) error {
	ids := make([]string, len(providers))
	for i := range providers {
		ids[i] = providers[i].CategoryID
	}
	index, err := s.categoryIndex(ctx, ids)
	if err != nil {
		return err
	}
	for i := range providers {
		if c, ok := index[providers[i].CategoryID]; ok {
			c := c
			providers[i].Category = &c
		}
	}
	return nil
}

func (s *ProviderService) populateNearby(ctx context.Context, results []model.NearbyProvider) error {
	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].CategoryID
	}
	index, err := s.categoryIndex(ctx, ids)
	if err != nil {
		return err
	}
	for i := range results {
		if c, ok := index[results[i].CategoryID]; ok {
			c := c
			results[i].Category = &c
		}
	}
	return nil
}

func (s *ProviderService) populateOne(ctx context.Context, p *model.ServiceProvider) error {
	c, err := s.categoryRepo.FindByID(ctx, p.CategoryID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load category: %w", err)
	}
	p.Category = c
	return nil
}
