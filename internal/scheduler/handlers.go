package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

// Handler runs one obligation kind.
type Handler interface {
	Kind() enums.ObligationKind
	Handle(ctx context.Context, obligation *models.RecurringObligation) error
}

// schedulerActor stamps writes performed on behalf of the scheduler.
var schedulerActor = authz.Actor{ID: "scheduler", Role: "system"}

// RecurringProjectTemplate is the payload of a recurring_project
// obligation: a project skeleton plus the lines to reserve for it.
type RecurringProjectTemplate struct {
	ClientRef     string `json:"clientRef"`
	DurationDays  int    `json:"durationDays"`
	LeadDays      int    `json:"leadDays"`
	AllowFallback bool   `json:"allowFallback"`
	Lines         []struct {
		SubjectType enums.SubjectType `json:"subjectType"`
		SubjectID   uuid.UUID         `json:"subjectId"`
		Qty         int               `json:"qty"`
	} `json:"lines"`
}

// RecurringProjectHandler materializes a new project and its
// reservations each time the obligation fires.
type RecurringProjectHandler struct {
	repo    *Repository
	reserve engine.Service
}

func NewRecurringProjectHandler(repo *Repository, reserve engine.Service) (*RecurringProjectHandler, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: repository is required")
	}
	if reserve == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: engine service is required")
	}
	return &RecurringProjectHandler{repo: repo, reserve: reserve}, nil
}

func (h *RecurringProjectHandler) Kind() enums.ObligationKind {
	return enums.ObligationRecurringProject
}

func (h *RecurringProjectHandler) Handle(ctx context.Context, obligation *models.RecurringObligation) error {
	var template RecurringProjectTemplate
	if err := json.Unmarshal(obligation.Template, &template); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed recurring project template")
	}
	if template.DurationDays <= 0 || len(template.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "recurring project template needs duration and lines")
	}

	start := types.Day(obligation.NextFireAt.AddDate(0, 0, template.LeadDays))
	window := types.NewDayWindow(start, start.AddDate(0, 0, template.DurationDays-1))

	project := models.Project{
		ID:          uuid.New(),
		ClientRef:   template.ClientRef,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	}
	if err := h.repo.CreateProject(ctx, &project); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create recurring project")
	}

	for _, line := range template.Lines {
		_, err := h.reserve.Reserve(ctx, schedulerActor, engine.ReserveInput{
			ProjectID:     project.ID,
			SubjectType:   line.SubjectType,
			SubjectID:     line.SubjectID,
			Qty:           line.Qty,
			Window:        window,
			AllowFallback: template.AllowFallback,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// LeaseRolloverTemplate shifts a long-running project window forward,
// keeping rolling leases booked ahead of time.
type LeaseRolloverTemplate struct {
	ProjectID uuid.UUID `json:"projectId"`
	ShiftDays int       `json:"shiftDays"`
}

// LeaseRolloverHandler advances a project window through the engine's
// move path so feasibility is checked before anything changes.
type LeaseRolloverHandler struct {
	repo *Repository
	move engine.Service
}

func NewLeaseRolloverHandler(repo *Repository, move engine.Service) (*LeaseRolloverHandler, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: repository is required")
	}
	if move == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "scheduler: engine service is required")
	}
	return &LeaseRolloverHandler{repo: repo, move: move}, nil
}

func (h *LeaseRolloverHandler) Kind() enums.ObligationKind {
	return enums.ObligationLeaseRollover
}

func (h *LeaseRolloverHandler) Handle(ctx context.Context, obligation *models.RecurringObligation) error {
	var template LeaseRolloverTemplate
	if err := json.Unmarshal(obligation.Template, &template); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed lease rollover template")
	}
	if template.ProjectID == uuid.Nil || template.ShiftDays == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "lease rollover template needs project and shift")
	}

	project, err := h.repo.FindProject(ctx, template.ProjectID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "rollover project not found")
	}
	shift := time.Duration(template.ShiftDays) * 24 * time.Hour
	window := types.NewDayWindow(project.WindowStart.Add(shift), project.WindowEnd.Add(shift))
	return h.move.MoveProject(ctx, schedulerActor, project.ID, window)
}
