package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/pagination"
)

// ItemReader exposes the read paths other domains need from the catalogue.
type ItemReader interface {
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListItemsByKind(ctx context.Context, kind string) ([]models.Item, error)
}

// BundleReader exposes bundle lookups used by the expander and scans.
type BundleReader interface {
	FindBundle(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
}

// Repository wires together catalogue persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindItem loads a single item by id.
func (r *Repository) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItems loads the given item ids in one query. Missing ids are
// simply absent from the result.
func (r *Repository) FindItems(ctx context.Context, ids []uuid.UUID) ([]models.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []models.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemsByKind returns active items of the given interchangeable kind.
func (r *Repository) ListItemsByKind(ctx context.Context, kind string) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND is_active = ?", kind, true).
		Order("name ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ItemListResult is one page of items plus the cursor for the next one.
type ItemListResult struct {
	Items      []models.Item
	NextCursor string
}

// ListItems returns one catalogue page, newest first.
func (r *Repository) ListItems(ctx context.Context, params pagination.Params) (*ItemListResult, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var items []models.Item
	if err := qb.
		Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&items).Error; err != nil {
		return nil, err
	}

	result := &ItemListResult{Items: items}
	if len(items) > pageSize {
		result.Items = items[:pageSize]
		last := result.Items[len(result.Items)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// CreateItem persists a new catalogue item.
func (r *Repository) CreateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem saves the full item row.
func (r *Repository) UpdateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// FindBundle loads a bundle with its components.
func (r *Repository) FindBundle(ctx context.Context, id uuid.UUID) (*models.Bundle, error) {
	var bundle models.Bundle
	if err := r.db.WithContext(ctx).
		Preload("Components").
		First(&bundle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bundle, nil
}

// BundleListResult is one page of bundles plus the cursor for the next one.
type BundleListResult struct {
	Bundles    []models.Bundle
	NextCursor string
}

// ListBundles returns one bundle page with components preloaded, newest
// first.
func (r *Repository) ListBundles(ctx context.Context, params pagination.Params) (*BundleListResult, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).Preload("Components")
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var bundles []models.Bundle
	if err := qb.
		Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&bundles).Error; err != nil {
		return nil, err
	}

	result := &BundleListResult{Bundles: bundles}
	if len(bundles) > pageSize {
		result.Bundles = bundles[:pageSize]
		last := result.Bundles[len(result.Bundles)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// CreateBundle persists a bundle together with its components.
func (r *Repository) CreateBundle(ctx context.Context, bundle *models.Bundle) (*models.Bundle, error) {
	if err := r.db.WithContext(ctx).Create(bundle).Error; err != nil {
		return nil, err
	}
	return bundle, nil
}

// ReplaceComponents swaps the component list of a bundle.
func (r *Repository) ReplaceComponents(ctx context.Context, bundleID uuid.UUID, components []models.BundleComponent) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("bundle_id = ?", bundleID).Delete(&models.BundleComponent{}).Error; err != nil {
		return err
	}
	if len(components) == 0 {
		return nil
	}
	for i := range components {
		components[i].BundleID = bundleID
	}
	return tx.Create(&components).Error
}
