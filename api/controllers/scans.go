package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/api/responses"
	"github.com/stagecrew/rentline-backend/api/validators"
	"github.com/stagecrew/rentline-backend/internal/scans"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

type scanRequest struct {
	TagCode    string    `json:"tag_code" validate:"required,min=1"`
	ProjectID  uuid.UUID `json:"project_id" validate:"required"`
	Direction  string    `json:"direction" validate:"required,oneof=in out"`
	Qty        int       `json:"qty" validate:"required,min=1"`
	BundleMode *string   `json:"bundle_mode,omitempty" validate:"omitempty,oneof=whole explode"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
}

type movementDTO struct {
	ID            uuid.UUID  `json:"id"`
	TagCode       string     `json:"tagCode"`
	ProjectID     uuid.UUID  `json:"projectId"`
	ItemID        *uuid.UUID `json:"itemId,omitempty"`
	BundleID      *uuid.UUID `json:"bundleId,omitempty"`
	ReservationID *uuid.UUID `json:"reservationId,omitempty"`
	Direction     string     `json:"direction"`
	Type          string     `json:"type"`
	Qty           int        `json:"qty"`
	RecordedAt    time.Time  `json:"recordedAt"`
}

func newMovementDTO(row models.ScanMovement) movementDTO {
	return movementDTO{
		ID:            row.ID,
		TagCode:       row.TagCode,
		ProjectID:     row.ProjectID,
		ItemID:        row.ItemID,
		BundleID:      row.BundleID,
		ReservationID: row.ReservationID,
		Direction:     string(row.Direction),
		Type:          string(row.Type),
		Qty:           row.Qty,
		RecordedAt:    row.RecordedAt,
	}
}

// ScanApply ingests one device scan and reconciles it against the
// project's reservations.
func ScanApply(svc scans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "scan service unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req scanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		direction, err := enums.ParseScanDirection(req.Direction)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var bundleMode *enums.BundleMode
		if req.BundleMode != nil {
			mode, err := enums.ParseBundleMode(*req.BundleMode)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			bundleMode = &mode
		}

		result, err := svc.Apply(r.Context(), actor, scans.ScanInput{
			TagCode:    req.TagCode,
			ProjectID:  req.ProjectID,
			Direction:  direction,
			Qty:        req.Qty,
			BundleMode: bundleMode,
			Location:   scans.Coordinates{Lat: req.Lat, Lng: req.Lng},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dtos := make([]movementDTO, 0, len(result.Movements))
		for _, movement := range result.Movements {
			dtos = append(dtos, newMovementDTO(movement))
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"movements": dtos})
	}
}
