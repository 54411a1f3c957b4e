package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/api/middleware"
	"github.com/stagecrew/rentline-backend/api/responses"
	"github.com/stagecrew/rentline-backend/api/validators"
	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

type reservationDTO struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"projectId"`
	SubjectType string     `json:"subjectType"`
	SubjectID   uuid.UUID  `json:"subjectId"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	Qty         int        `json:"qty"`
	ConsumedQty int        `json:"consumedQty"`
	WindowStart time.Time  `json:"windowStart"`
	WindowEnd   time.Time  `json:"windowEnd"`
	State       string     `json:"state"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func newReservationDTO(row models.Reservation) reservationDTO {
	return reservationDTO{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		SubjectType: string(row.SubjectType),
		SubjectID:   row.SubjectID,
		ParentID:    row.ParentID,
		Qty:         row.Qty,
		ConsumedQty: row.ConsumedQty,
		WindowStart: row.WindowStart,
		WindowEnd:   row.WindowEnd,
		State:       string(row.State),
		CreatedAt:   row.CreatedAt,
	}
}

type commitmentDTO struct {
	ID            uuid.UUID `json:"id"`
	ReservationID uuid.UUID `json:"reservationId"`
	PartnerID     string    `json:"partnerId"`
	ItemID        uuid.UUID `json:"itemId"`
	Qty           int       `json:"qty"`
	UnitPrice     string    `json:"unitPrice"`
	Status        string    `json:"status"`
}

func newCommitmentDTO(row models.ExternalCommitment) commitmentDTO {
	return commitmentDTO{
		ID:            row.ID,
		ReservationID: row.ReservationID,
		PartnerID:     row.PartnerID,
		ItemID:        row.ItemID,
		Qty:           row.Qty,
		UnitPrice:     row.UnitPrice.String(),
		Status:        string(row.Status),
	}
}

type reserveRequest struct {
	ProjectID     uuid.UUID `json:"project_id" validate:"required"`
	SubjectType   string    `json:"subject_type" validate:"required,oneof=item bundle"`
	SubjectID     uuid.UUID `json:"subject_id" validate:"required"`
	Qty           int       `json:"qty" validate:"required,min=1"`
	WindowStart   string    `json:"window_start" validate:"required"`
	WindowEnd     string    `json:"window_end" validate:"required"`
	AllowFallback bool      `json:"allow_fallback"`
}

type reserveResponse struct {
	Reservation reservationDTO   `json:"reservation"`
	Components  []reservationDTO `json:"components,omitempty"`
	Commitments []commitmentDTO  `json:"commitments,omitempty"`
}

// ReservationCreate places a hold for a project over a day window.
func ReservationCreate(svc engine.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subjectType, err := enums.ParseSubjectType(req.SubjectType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		window, err := types.ParseDayWindow(req.WindowStart, req.WindowEnd)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid window"))
			return
		}

		result, err := svc.Reserve(r.Context(), actor, engine.ReserveInput{
			ProjectID:     req.ProjectID,
			SubjectType:   subjectType,
			SubjectID:     req.SubjectID,
			Qty:           req.Qty,
			Window:        window,
			AllowFallback: req.AllowFallback,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := reserveResponse{Reservation: newReservationDTO(result.Reservation)}
		for _, component := range result.Components {
			resp.Components = append(resp.Components, newReservationDTO(component))
		}
		for _, commitment := range result.Commitments {
			resp.Commitments = append(resp.Commitments, newCommitmentDTO(commitment))
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// ReservationRelease cancels a reservation and frees its capacity.
func ReservationRelease(svc engine.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(svc, logg, svcRelease)
}

// ReservationConfirm promotes a tentative reservation to confirmed.
func ReservationConfirm(svc engine.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(svc, logg, svcConfirm)
}

// ReservationConsume marks a reservation as physically picked up.
func ReservationConsume(svc engine.Service, logg *logger.Logger) http.HandlerFunc {
	return reservationTransition(svc, logg, svcConsume)
}

type transitionFunc func(svc engine.Service, r *http.Request, actor authz.Actor, id uuid.UUID) (*models.Reservation, error)

func svcRelease(svc engine.Service, r *http.Request, actor authz.Actor, id uuid.UUID) (*models.Reservation, error) {
	return svc.Release(r.Context(), actor, id)
}

func svcConfirm(svc engine.Service, r *http.Request, actor authz.Actor, id uuid.UUID) (*models.Reservation, error) {
	return svc.Confirm(r.Context(), actor, id)
}

func svcConsume(svc engine.Service, r *http.Request, actor authz.Actor, id uuid.UUID) (*models.Reservation, error) {
	return svc.Consume(r.Context(), actor, id)
}

func reservationTransition(svc engine.Service, logg *logger.Logger, apply transitionFunc) http.HandlerFunc {
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

		id, err := uuid.Parse(chi.URLParam(r, "reservationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reservation id"))
			return
		}

		row, err := apply(svc, r, actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newReservationDTO(*row))
	}
}

func requireActor(r *http.Request) (authz.Actor, error) {
	actor := middleware.ActorFromContext(r.Context())
	if actor.ID == "" {
		return authz.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "actor context missing")
	}
	return actor, nil
}
