package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/api/responses"
	"github.com/stagecrew/rentline-backend/api/validators"
	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

type availabilityCheck struct {
	SubjectType string    `json:"subject_type" validate:"required,oneof=item bundle"`
	SubjectID   uuid.UUID `json:"subject_id" validate:"required"`
	Qty         int       `json:"qty" validate:"required,min=1"`
	WindowStart string    `json:"window_start" validate:"required"`
	WindowEnd   string    `json:"window_end" validate:"required"`
}

type availabilityCheckRequest struct {
	Checks []availabilityCheck `json:"checks" validate:"required,min=1,max=50,dive"`
}

type availabilityResultDTO struct {
	SubjectType string            `json:"subjectType"`
	SubjectID   uuid.UUID         `json:"subjectId"`
	Qty         int               `json:"qty"`
	Feasible    bool              `json:"feasible"`
	Conflicts   []engine.Conflict `json:"conflicts,omitempty"`
}

// AvailabilityCheck answers a batch of feasibility questions without
// creating any holds.
func AvailabilityCheck(svc engine.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation engine unavailable"))
			return
		}

		var req availabilityCheckRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests := make([]engine.AvailabilityRequest, 0, len(req.Checks))
		for _, check := range req.Checks {
			subjectType, err := enums.ParseSubjectType(check.SubjectType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			window, err := types.ParseDayWindow(check.WindowStart, check.WindowEnd)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window"))
				return
			}
			requests = append(requests, engine.AvailabilityRequest{
				SubjectType: subjectType,
				SubjectID:   check.SubjectID,
				Qty:         check.Qty,
				Window:      window,
			})
		}

		results, err := svc.CheckAvailability(r.Context(), requests)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dtos := make([]availabilityResultDTO, 0, len(results))
		for _, result := range results {
			dtos = append(dtos, availabilityResultDTO{
				SubjectType: string(result.Request.SubjectType),
				SubjectID:   result.Request.SubjectID,
				Qty:         result.Request.Qty,
				Feasible:    result.Feasible,
				Conflicts:   result.Details,
			})
		}

		responses.WriteSuccess(w, dtos)
	}
}
