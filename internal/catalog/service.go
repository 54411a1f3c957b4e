package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/pagination"
)

// Service exposes catalogue management operations.
type Service interface {
	CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.Item, error)
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error)
	ListItems(ctx context.Context, params pagination.Params) (*ItemListResult, error)
	CreateBundle(ctx context.Context, input CreateBundleInput) (*models.Bundle, error)
	GetBundle(ctx context.Context, bundleID uuid.UUID) (*models.Bundle, error)
	ListBundles(ctx context.Context, params pagination.Params) (*BundleListResult, error)
	ExpandBundle(ctx context.Context, bundleID uuid.UUID, multiplier int) ([]ComponentLine, error)
}

// CreateItemInput holds the validated payload to create an item.
type CreateItemInput struct {
	Name          string
	Kind          string
	QuantityTotal int
	MinStock      int
	IsActive      bool
	DayRate       decimal.Decimal
}

// UpdateItemInput holds optional mutation values for an item.
type UpdateItemInput struct {
	Name          *string
	Kind          *string
	QuantityTotal *int
	MinStock      *int
	IsActive      *bool
	DayRate       *decimal.Decimal
}

// ComponentInput defines one bundle component at creation time.
type ComponentInput struct {
	ComponentType enums.SubjectType
	ComponentID   uuid.UUID
	Multiplier    int
}

// CreateBundleInput holds the validated payload to create a bundle.
type CreateBundleInput struct {
	Name       string
	IsActive   bool
	Components []ComponentInput
}

type service struct {
	repo     *Repository
	cache    *Cache
	expander *Expander
}

// NewService constructs a catalogue service instance.
func NewService(repo *Repository, cache *Cache, expander *Expander) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if cache == nil {
		return nil, fmt.Errorf("catalog cache required")
	}
	if expander == nil {
		return nil, fmt.Errorf("bundle expander required")
	}
	return &service{repo: repo, cache: cache, expander: expander}, nil
}

// CreateItem validates and persists a new item.
func (s *service) CreateItem(ctx context.Context, input CreateItemInput) (*models.Item, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
	}
	if input.Kind == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item kind required")
	}
	if input.QuantityTotal < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity_total cannot be negative")
	}
	if input.MinStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_stock cannot be negative")
	}
	item := &models.Item{
		ID:            uuid.New(),
		Name:          input.Name,
		Kind:          input.Kind,
		QuantityTotal: input.QuantityTotal,
		MinStock:      input.MinStock,
		IsActive:      input.IsActive,
		DayRate:       input.DayRate,
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create item")
	}
	return created, nil
}

// UpdateItem applies the provided partial mutation to the item.
func (s *service) UpdateItem(ctx context.Context, itemID uuid.UUID, input UpdateItemInput) (*models.Item, error) {
	item, err := s.repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}
	if input.Name != nil {
		if *input.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name cannot be empty")
		}
		item.Name = *input.Name
	}
	if input.Kind != nil {
		if *input.Kind == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item kind cannot be empty")
		}
		item.Kind = *input.Kind
	}
	if input.QuantityTotal != nil {
		if *input.QuantityTotal < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity_total cannot be negative")
		}
		item.QuantityTotal = *input.QuantityTotal
	}
	if input.MinStock != nil {
		if *input.MinStock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_stock cannot be negative")
		}
		item.MinStock = *input.MinStock
	}
	if input.IsActive != nil {
		item.IsActive = *input.IsActive
	}
	if input.DayRate != nil {
		item.DayRate = *input.DayRate
	}
	updated, err := s.repo.UpdateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update item")
	}
	s.cache.Invalidate(itemID)
	return updated, nil
}

// GetItem reads the item through the cache.
func (s *service) GetItem(ctx context.Context, itemID uuid.UUID) (*models.Item, error) {
	item, err := s.cache.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context, params pagination.Params) (*ItemListResult, error) {
	page, err := s.repo.ListItems(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list items")
	}
	return page, nil
}

// CreateBundle validates the component list and persists the bundle.
func (s *service) CreateBundle(ctx context.Context, input CreateBundleInput) (*models.Bundle, error) {
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle name required")
	}
	if len(input.Components) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle requires at least one component")
	}
	bundleID := uuid.New()
	components := make([]models.BundleComponent, 0, len(input.Components))
	for _, c := range input.Components {
		if !c.ComponentType.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown component type")
		}
		if c.Multiplier < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "component multiplier must be at least 1")
		}
		if c.ComponentType == enums.SubjectItem {
			if _, err := s.repo.FindItem(ctx, c.ComponentID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, pkgerrors.New(pkgerrors.CodeNotFound, "component item not found").
						WithDetails(map[string]any{"component_id": c.ComponentID})
				}
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load component item")
			}
		}
		components = append(components, models.BundleComponent{
			ID:            uuid.New(),
			BundleID:      bundleID,
			ComponentType: c.ComponentType,
			ComponentID:   c.ComponentID,
			Multiplier:    c.Multiplier,
		})
	}
	bundle := &models.Bundle{
		ID:         bundleID,
		Name:       input.Name,
		IsActive:   input.IsActive,
		Components: components,
	}
	created, err := s.repo.CreateBundle(ctx, bundle)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create bundle")
	}

	// Nested bundle references are validated by expanding once; a cyclic
	// or dangling definition never becomes visible to reservations.
	if _, err := s.expander.Expand(ctx, bundleID, 1); err != nil {
		return nil, err
	}
	return created, nil
}

// GetBundle reads the bundle through the cache.
func (s *service) GetBundle(ctx context.Context, bundleID uuid.UUID) (*models.Bundle, error) {
	bundle, err := s.cache.FindBundle(ctx, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load bundle")
	}
	return bundle, nil
}

func (s *service) ListBundles(ctx context.Context, params pagination.Params) (*BundleListResult, error) {
	page, err := s.repo.ListBundles(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list bundles")
	}
	return page, nil
}

// ExpandBundle flattens the bundle into item demand lines.
func (s *service) ExpandBundle(ctx context.Context, bundleID uuid.UUID, multiplier int) ([]ComponentLine, error) {
	return s.expander.Expand(ctx, bundleID, multiplier)
}
