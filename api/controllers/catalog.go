package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagecrew/rentline-backend/api/responses"
	"github.com/stagecrew/rentline-backend/api/validators"
	"github.com/stagecrew/rentline-backend/internal/catalog"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/pagination"
)

type itemDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Kind          string    `json:"kind"`
	QuantityTotal int       `json:"quantityTotal"`
	MinStock      int       `json:"minStock"`
	IsActive      bool      `json:"isActive"`
	DayRate       string    `json:"dayRate"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newItemDTO(row models.Item) itemDTO {
	return itemDTO{
		ID:            row.ID,
		Name:          row.Name,
		Kind:          row.Kind,
		QuantityTotal: row.QuantityTotal,
		MinStock:      row.MinStock,
		IsActive:      row.IsActive,
		DayRate:       row.DayRate.String(),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

type bundleComponentDTO struct {
	ComponentType string    `json:"componentType"`
	ComponentID   uuid.UUID `json:"componentId"`
	Multiplier    int       `json:"multiplier"`
}

type bundleDTO struct {
	ID         uuid.UUID            `json:"id"`
	Name       string               `json:"name"`
	IsActive   bool                 `json:"isActive"`
	Components []bundleComponentDTO `json:"components"`
	CreatedAt  time.Time            `json:"createdAt"`
}

func newBundleDTO(row models.Bundle) bundleDTO {
	dto := bundleDTO{
		ID:        row.ID,
		Name:      row.Name,
		IsActive:  row.IsActive,
		CreatedAt: row.CreatedAt,
	}
	for _, component := range row.Components {
		dto.Components = append(dto.Components, bundleComponentDTO{
			ComponentType: string(component.ComponentType),
			ComponentID:   component.ComponentID,
			Multiplier:    component.Multiplier,
		})
	}
	return dto
}

type itemCreateRequest struct {
	Name          string          `json:"name" validate:"required,min=1"`
	Kind          string          `json:"kind" validate:"required,min=1"`
	QuantityTotal int             `json:"quantity_total" validate:"min=0"`
	MinStock      int             `json:"min_stock" validate:"min=0"`
	IsActive      bool            `json:"is_active"`
	DayRate       decimal.Decimal `json:"day_rate"`
}

// ItemCreate registers a stock item.
func ItemCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var req itemCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.CreateItem(r.Context(), catalog.CreateItemInput{
			Name:          validators.SanitizeString(req.Name, 200),
			Kind:          validators.SanitizeString(req.Kind, 100),
			QuantityTotal: req.QuantityTotal,
			MinStock:      req.MinStock,
			IsActive:      req.IsActive,
			DayRate:       req.DayRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newItemDTO(*item))
	}
}

type itemUpdateRequest struct {
	Name          *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Kind          *string          `json:"kind,omitempty" validate:"omitempty,min=1"`
	QuantityTotal *int             `json:"quantity_total,omitempty" validate:"omitempty,min=0"`
	MinStock      *int             `json:"min_stock,omitempty" validate:"omitempty,min=0"`
	IsActive      *bool            `json:"is_active,omitempty"`
	DayRate       *decimal.Decimal `json:"day_rate,omitempty"`
}

// ItemUpdate adjusts the mutable fields of an item.
func ItemUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		var req itemUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.UpdateItem(r.Context(), id, catalog.UpdateItemInput{
			Name:          req.Name,
			Kind:          req.Kind,
			QuantityTotal: req.QuantityTotal,
			MinStock:      req.MinStock,
			IsActive:      req.IsActive,
			DayRate:       req.DayRate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemDTO(*item))
	}
}

// ItemGet returns one item by id.
func ItemGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		item, err := svc.GetItem(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newItemDTO(*item))
	}
}

// ItemList returns one page of the item catalogue.
func ItemList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListItems(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dtos := make([]itemDTO, 0, len(page.Items))
		for _, item := range page.Items {
			dtos = append(dtos, newItemDTO(item))
		}

		responses.WriteSuccess(w, map[string]any{
			"items":      dtos,
			"nextCursor": page.NextCursor,
		})
	}
}

type bundleComponentRequest struct {
	ComponentType string    `json:"component_type" validate:"required,oneof=item bundle"`
	ComponentID   uuid.UUID `json:"component_id" validate:"required"`
	Multiplier    int       `json:"multiplier" validate:"required,min=1"`
}

type bundleCreateRequest struct {
	Name       string                   `json:"name" validate:"required,min=1"`
	IsActive   bool                     `json:"is_active"`
	Components []bundleComponentRequest `json:"components" validate:"required,min=1,dive"`
}

// BundleCreate registers a bundle with its component lines.
func BundleCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var req bundleCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		components := make([]catalog.ComponentInput, 0, len(req.Components))
		for _, component := range req.Components {
			componentType, err := enums.ParseSubjectType(component.ComponentType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid component type"))
				return
			}
			components = append(components, catalog.ComponentInput{
				ComponentType: componentType,
				ComponentID:   component.ComponentID,
				Multiplier:    component.Multiplier,
			})
		}

		bundle, err := svc.CreateBundle(r.Context(), catalog.CreateBundleInput{
			Name:       validators.SanitizeString(req.Name, 200),
			IsActive:   req.IsActive,
			Components: components,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newBundleDTO(*bundle))
	}
}

// BundleGet returns one bundle with its components.
func BundleGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "bundleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bundle id"))
			return
		}

		bundle, err := svc.GetBundle(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBundleDTO(*bundle))
	}
}

// BundleList returns one page of the bundle catalogue.
func BundleList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListBundles(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dtos := make([]bundleDTO, 0, len(page.Bundles))
		for _, bundle := range page.Bundles {
			dtos = append(dtos, newBundleDTO(bundle))
		}

		responses.WriteSuccess(w, map[string]any{
			"bundles":    dtos,
			"nextCursor": page.NextCursor,
		})
	}
}

type expandLineDTO struct {
	ItemID uuid.UUID `json:"itemId"`
	Qty    int       `json:"qty"`
}

// BundleExpand flattens a bundle into per-item demand lines.
func BundleExpand(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "bundleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bundle id"))
			return
		}

		multiplier, err := validators.ParseQueryInt(r, "multiplier", 1, 1, 10000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines, err := svc.ExpandBundle(r.Context(), id, multiplier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dtos := make([]expandLineDTO, 0, len(lines))
		for _, line := range lines {
			dtos = append(dtos, expandLineDTO{ItemID: line.ItemID, Qty: line.Qty})
		}

		responses.WriteSuccess(w, dtos)
	}
}
