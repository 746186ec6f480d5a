package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"service_finder/internal/common"
	"service_finder/internal/common/geo"
	"service_finder/internal/domain/model"
)

// ProviderFilter narrows a provider listing. Zero values mean "no constraint".
type ProviderFilter struct {
	CategoryID    string
	AvailableOnly bool
	Box           *geo.BoundingBox
}

// ProviderRepository lists providers in insertion order so that callers can
// rely on it as a stable tie-break.
type ProviderRepository interface {
	Create(ctx context.Context, provider *model.ServiceProvider) error
	FindByID(ctx context.Context, id string) (*model.ServiceProvider, error)
	List(ctx context.Context, filter ProviderFilter) ([]model.ServiceProvider, error)
	Update(ctx context.Context, provider *model.ServiceProvider) error
	Delete(ctx context.Context, id string) error
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
}

type pgProviderRepository struct {
	db *sql.DB
}

func NewPgProviderRepository(db *sql.DB) ProviderRepository {
	return &pgProviderRepository{db: db}
}

const providerColumns = `id, name, category_id, street, city, state, zip_code, address_label, lat, lng,
	contacts, rating, reviews, price_range, is_verified, is_available, description, images,
	opening_hours, services, experience_years, certifications, created_at, updated_at`

// providerJSON holds the JSONB-encoded nested fields of a provider row.
type providerJSON struct {
	contacts, images, openingHours, services, certifications []byte
}

func encodeProviderJSON(p *model.ServiceProvider) (*providerJSON, error) {
	var (
		out providerJSON
		err error
	)
	if out.contacts, err = json.Marshal(p.Contacts); err != nil {
		return nil, err
	}
	if out.images, err = json.Marshal(p.Images); err != nil {
		return nil, err
	}
	if out.openingHours, err = json.Marshal(p.OpeningHours); err != nil {
		return nil, err
	}
	if out.services, err = json.Marshal(p.Services); err != nil {
		return nil, err
	}
	if out.certifications, err = json.Marshal(p.Certifications); err != nil {
		return nil, err
	}
	return &out, nil
}

func scanProvider(row interface{ Scan(...interface{}) error }) (*model.ServiceProvider, error) {
	p := &model.ServiceProvider{}
	var raw providerJSON
	err := row.Scan(
		&p.ID, &p.Name, &p.CategoryID,
		&p.Address.Street, &p.Address.City, &p.Address.State, &p.Address.ZipCode, &p.Address.Label,
		&p.Location.Lat, &p.Location.Lng,
		&raw.contacts, &p.Rating, &p.Reviews, &p.PriceRange, &p.IsVerified, &p.IsAvailable, &p.Description,
		&raw.images, &raw.openingHours, &raw.services, &p.ExperienceYears, &raw.certifications,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	decode := []struct {
		src []byte
		dst interface{}
	}{
		{raw.contacts, &p.Contacts},
		{raw.images, &p.Images},
		{raw.openingHours, &p.OpeningHours},
		{raw.services, &p.Services},
		{raw.certifications, &p.Certifications},
	}
	for _, d := range decode {
		if len(d.src) == 0 {
			continue
		}
		if err := json.Unmarshal(d.src, d.dst); err != nil {
			return nil, fmt.Errorf("decode provider %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func (r *pgProviderRepository) Create(ctx context.Context, p *model.ServiceProvider) error {
	raw, err := encodeProviderJSON(p)
	if err != nil {
		return fmt.Errorf("pgProviderRepository.Create encode: %w", err)
	}
	query := `INSERT INTO service_providers (` + providerColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.CategoryID,
		p.Address.Street, p.Address.City, p.Address.State, p.Address.ZipCode, p.Address.Label,
		p.Location.Lat, p.Location.Lng,
		string(raw.contacts), p.Rating, p.Reviews, p.PriceRange, p.IsVerified, p.IsAvailable, p.Description,
		string(raw.images), string(raw.openingHours), string(raw.services), p.ExperienceYears, string(raw.certifications),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pgProviderRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProviderRepository) FindByID(ctx context.Context, id string) (*model.ServiceProvider, error) {
	query := `SELECT ` + providerColumns + ` FROM service_providers WHERE id = $1`
	p, err := scanProvider(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProviderRepository.FindByID: %w", err)
	}
	return p, nil
}

// List builds the WHERE clause from the filter. The bounding box turns into
// plain range predicates so the (lat, lng) index can serve it.
func (r *pgProviderRepository) List(ctx context.Context, filter ProviderFilter) ([]model.ServiceProvider, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CategoryID != "" {
		where = append(where, "category_id = "+arg(filter.CategoryID))
	}
	if filter.AvailableOnly {
		where = append(where, "is_available = TRUE")
	}
	if box := filter.Box; box != nil {
		where = append(where, fmt.Sprintf("lat BETWEEN %s AND %s", arg(box.MinLat), arg(box.MaxLat)))
		if len(box.LngRanges) > 0 {
			ranges := make([]string, 0, len(box.LngRanges))
			for _, lr := range box.LngRanges {
				ranges = append(ranges, fmt.Sprintf("lng BETWEEN %s AND %s", arg(lr.Min), arg(lr.Max)))
			}
			where = append(where, "("+strings.Join(ranges, " OR ")+")")
		}
	}

	var query strings.Builder
	query.WriteString(`SELECT ` + providerColumns + ` FROM service_providers`)
	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY created_at, id")

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("pgProviderRepository.List: %w", err)
	}
	defer rows.Close()

	providers := []model.ServiceProvider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("pgProviderRepository.List scan: %w", err)
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

func (r *pgProviderRepository) Update(ctx context.Context, p *model.ServiceProvider) error {
	raw, err := encodeProviderJSON(p)
	if err != nil {
		return fmt.Errorf("pgProviderRepository.Update encode: %w", err)
	}
	query := `UPDATE service_providers SET
	            name = $1, category_id = $2, street = $3, city = $4, state = $5, zip_code = $6, address_label = $7,
	            lat = $8, lng = $9, contacts = $10, rating = $11, reviews = $12, price_range = $13,
	            is_verified = $14, is_available = $15, description = $16, images = $17, opening_hours = $18,
	            services = $19, experience_years = $20, certifications = $21, updated_at = $22
	          WHERE id = $23`
	res, err := r.db.ExecContext(ctx, query,
		p.Name, p.CategoryID, p.Address.Street, p.Address.City, p.Address.State, p.Address.ZipCode, p.Address.Label,
		p.Location.Lat, p.Location.Lng, string(raw.contacts), p.Rating, p.Reviews, p.PriceRange,
		p.IsVerified, p.IsAvailable, p.Description, string(raw.images), string(raw.openingHours),
		string(raw.services), p.ExperienceYears, string(raw.certifications), p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("pgProviderRepository.Update: %w", err)
	}
	return requireAffected(res, "pgProviderRepository.Update")
}

func (r *pgProviderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM service_providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProviderRepository.Delete: %w", err)
	}
	return requireAffected(res, "pgProviderRepository.Delete")
}

func (r *pgProviderRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_providers WHERE category_id = $1`, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgProviderRepository.CountByCategory: %w", err)
	}
	return n, nil
}
