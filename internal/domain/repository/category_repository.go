package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"service_finder/internal/common"
	"service_finder/internal/domain/model"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	FindByID(ctx context.Context, id string) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Category, error)
	List(ctx context.Context, activeOnly bool) ([]model.Category, error)
	Update(ctx context.Context, category *model.Category) error
	Delete(ctx context.Context, id string) error
}

type pgCategoryRepository struct {
	db *sql.DB
}

func NewPgCategoryRepository(db *sql.DB) CategoryRepository {
	return &pgCategoryRepository{db: db}
}

const categoryColumns = `id, name, slug, icon_name, description, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(...interface{}) error }) (*model.Category, error) {
	c := &model.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.IconName, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *pgCategoryRepository) Create(ctx context.Context, c *model.Category) error {
	query := `INSERT INTO categories (` + categoryColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, c.Slug, c.IconName, c.Description, c.IsActive, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", c.Name, common.ErrDuplicateName)
		}
		return fmt.Errorf("pgCategoryRepository.Create: %w", err)
	}
	return nil
}

func (r *pgCategoryRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*model.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE ` + where
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgCategoryRepository.%s: %w", op, err)
	}
	return c, nil
}

func (r *pgCategoryRepository) FindByID(ctx context.Context, id string) (*model.Category, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

func (r *pgCategoryRepository) FindByName(ctx context.Context, name string) (*model.Category, error) {
	return r.findOne(ctx, "FindByName", "name = $1", name)
}

func (r *pgCategoryRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Category, error) {
	if len(ids) == 0 {
		return []model.Category{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	return r.query(ctx, "FindByIDs", query, args...)
}

func (r *pgCategoryRepository) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at, id`
	return r.query(ctx, "List", query)
}

func (r *pgCategoryRepository) query(ctx context.Context, op, query string, args ...interface{}) ([]model.Category, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgCategoryRepository.%s: %w", op, err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("pgCategoryRepository.%s scan: %w", op, err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (r *pgCategoryRepository) Update(ctx context.Context, c *model.Category) error {
	query := `UPDATE categories SET
	            name = $1, slug = $2, icon_name = $3, description = $4, is_active = $5, updated_at = $6
	          WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query, c.Name, c.Slug, c.IconName, c.Description, c.IsActive, c.UpdatedAt, c.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", c.Name, common.ErrDuplicateName)
		}
		return fmt.Errorf("pgCategoryRepository.Update: %w", err)
	}
	return requireAffected(res, "pgCategoryRepository.Update")
}

func (r *pgCategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgCategoryRepository.Delete: %w", err)
	}
	return requireAffected(res, "pgCategoryRepository.Delete")
}
