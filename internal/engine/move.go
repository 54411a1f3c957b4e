package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/internal/availability"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/outbox"
	"github.com/stagecrew/rentline-backend/pkg/outbox/payloads"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

// MoveProject translates every reservation window of the project by the
// same delta, atomically. Feasibility is checked as a set with the
// project's own holds excluded; on failure nothing is applied and the
// fallback is never consulted.
func (s *service) MoveProject(ctx context.Context, actor authz.Actor, projectID uuid.UUID, newWindow types.Window) error {
	if err := s.authorize(ctx, actor, authz.OpMoveProject, projectID.String()); err != nil {
		return err
	}
	if !newWindow.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "window start must not be after end")
	}

	project, err := s.repo.FindProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project")
	}

	rows, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load project reservations")
	}

	delta := newWindow.Start.Sub(project.WindowStart)

	// Serialise concurrent moves of the same project, then the item
	// guards in their usual ascending order.
	releaseProject, err := s.acquireGuards(ctx, s.projectGuards, []uuid.UUID{projectID})
	if err != nil {
		return err
	}
	defer releaseProject()

	itemSet := make(map[uuid.UUID]bool)
	for _, row := range rows {
		if row.SubjectType == enums.SubjectItem {
			itemSet[row.SubjectID] = true
		}
	}
	keys := make([]uuid.UUID, 0, len(itemSet))
	for itemID := range itemSet {
		keys = append(keys, itemID)
	}
	releaseItems, err := s.acquireGuards(ctx, s.itemGuards, keys)
	if err != nil {
		return err
	}
	defer releaseItems()

	if err := s.refreshItems(ctx, keys); err != nil {
		return err
	}

	conflicts, err := s.moveConflicts(ctx, projectID, rows, delta)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		s.emitShortage(ctx, actor, projectID, conflicts, true)
		return pkgerrors.New(pkgerrors.CodeShortageOnMove, "move would exceed availability").
			WithDetails(map[string]any{"conflicts": conflicts})
	}

	moved := make([]models.Reservation, len(rows))
	copy(moved, rows)
	for i := range moved {
		moved[i].SetWindow(moved[i].Window().Shift(delta))
	}

	oldStart, oldEnd := project.WindowStart, project.WindowEnd
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateProjectWindow(ctx, projectID, newWindow.Start, newWindow.End); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update project window")
		}
		if err := repo.UpdateWindows(ctx, moved); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "translate reservation windows")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProjectMoved,
			AggregateType: enums.AggregateProject,
			AggregateID:   projectID,
			Actor:         actorRef(actor),
			Data: payloads.ProjectMoved{
				ProjectID: projectID,
				OldStart:  oldStart,
				OldEnd:    oldEnd,
				NewStart:  newWindow.Start,
				NewEnd:    newWindow.End,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit move event")
		}
		for _, row := range moved {
			if row.SubjectType == enums.SubjectItem && row.State.HoldsStock() {
				s.index.Insert(availability.Entry{
					ReservationID: row.ID,
					ProjectID:     row.ProjectID,
					ItemID:        row.SubjectID,
					Qty:           row.Qty,
					Window:        row.Window(),
				})
			}
		}
		return nil
	})
	if err != nil {
		s.rebuildItems(ctx, keys)
		return err
	}

	logCtx := s.logg.WithProjectID(ctx, projectID.String())
	s.logg.Info(logCtx, "project moved")
	return nil
}

// moveConflicts simulates the translated demand against everyone else's
// holds. For each item the sweep finds the instant where combined
// demand peaks; a conflict reports the project's own requirement and
// what the rest of the world leaves available at that instant.
func (s *service) moveConflicts(ctx context.Context, projectID uuid.UUID, rows []models.Reservation, delta time.Duration) ([]Conflict, error) {
	ownByItem := make(map[uuid.UUID][]availability.Entry)
	for _, row := range rows {
		if row.SubjectType != enums.SubjectItem || !row.State.HoldsStock() {
			continue
		}
		ownByItem[row.SubjectID] = append(ownByItem[row.SubjectID], availability.Entry{
			ReservationID: row.ID,
			ProjectID:     row.ProjectID,
			ItemID:        row.SubjectID,
			Qty:           row.Qty,
			Window:        row.Window().Shift(delta),
		})
	}

	var conflicts []Conflict
	for itemID, own := range ownByItem {
		item, err := s.catalog.FindItem(ctx, itemID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
		}
		total := item.QuantityTotal
		if !item.IsActive {
			total = 0
		}

		span := own[0].Window
		for _, entry := range own[1:] {
			span = span.Union(entry.Window)
		}
		others := s.index.Overlaps(itemID, span, &projectID)

		simulated := append(append([]availability.Entry{}, own...), others...)
		var worst *Conflict
		for _, candidate := range simulated {
			at := span.Clamp(candidate.Window.Start)
			ownDemand, otherDemand := 0, 0
			for _, entry := range own {
				if entry.Window.Contains(at) {
					ownDemand += entry.Qty
				}
			}
			for _, entry := range others {
				if entry.Window.Contains(at) {
					otherDemand += entry.Qty
				}
			}
			if ownDemand+otherDemand <= total || ownDemand == 0 {
				continue
			}
			available := total - otherDemand
			if available < 0 {
				available = 0
			}
			if worst == nil || ownDemand-available > worst.Requested-worst.Available {
				worst = &Conflict{ItemID: itemID, Requested: ownDemand, Available: available}
			}
		}
		if worst != nil {
			conflicts = append(conflicts, *worst)
		}
	}
	return conflicts, nil
}
