package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/api/responses"
	"github.com/stagecrew/rentline-backend/api/validators"
	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

// ProjectStore is the project persistence surface the controllers need.
// Implemented by engine.Repository.
type ProjectStore interface {
	FindProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)
}

type projectDTO struct {
	ID          uuid.UUID `json:"id"`
	ClientRef   string    `json:"clientRef"`
	Notes       *string   `json:"notes,omitempty"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newProjectDTO(row models.Project) projectDTO {
	return projectDTO{
		ID:          row.ID,
		ClientRef:   row.ClientRef,
		Notes:       row.Notes,
		WindowStart: row.WindowStart,
		WindowEnd:   row.WindowEnd,
		CreatedAt:   row.CreatedAt,
	}
}

type projectCreateRequest struct {
	ClientRef   string  `json:"client_ref" validate:"required,min=1"`
	Notes       *string `json:"notes,omitempty"`
	WindowStart string  `json:"window_start" validate:"required"`
	WindowEnd   string  `json:"window_end" validate:"required"`
}

// ProjectCreate registers a rental project with its planned window.
func ProjectCreate(store ProjectStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "project store unavailable"))
			return
		}

		var req projectCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := types.ParseDayWindow(req.WindowStart, req.WindowEnd)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window"))
			return
		}

		row, err := store.CreateProject(r.Context(), &models.Project{
			ID:          uuid.New(),
			ClientRef:   validators.SanitizeString(req.ClientRef, 200),
			Notes:       req.Notes,
			WindowStart: window.Start,
			WindowEnd:   window.End,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newProjectDTO(*row))
	}
}

// ProjectGet returns one project by id.
func ProjectGet(store ProjectStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "project store unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project id"))
			return
		}

		row, err := store.FindProject(r.Context(), id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "project not found")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newProjectDTO(*row))
	}
}

type projectMoveRequest struct {
	WindowStart string `json:"window_start" validate:"required"`
	WindowEnd   string `json:"window_end" validate:"required"`
}

// ProjectMove shifts every live reservation of the project to a new
// window atomically.
func ProjectMove(svc engine.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation engine unavailable"))
			return
		}

		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "projectID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project id"))
			return
		}

		var req projectMoveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := types.ParseDayWindow(req.WindowStart, req.WindowEnd)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window"))
			return
		}

		if err := svc.MoveProject(r.Context(), actor, id, window); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"projectId":   id,
			"windowStart": window.Start,
			"windowEnd":   window.End,
		})
	}
}
