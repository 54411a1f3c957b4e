package partners

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

// Fallback covers reservation shortfalls from locally synced partner
// slots. It never performs partner I/O: commitments are written as
// pending and pushed out of band by the sync worker.
type Fallback struct {
	repo *Repository
	log  *logger.Logger
}

// NewFallback builds the shortage fallback provider.
func NewFallback(repo *Repository, log *logger.Logger) (*Fallback, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: repository is required")
	}
	if log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: logger is required")
	}
	return &Fallback{repo: repo, log: log}, nil
}

// Cover allocates slot capacity against each shortfall, cheapest slot
// first. Every shortfall must be covered in full or the whole call
// fails and the enclosing transaction rolls back.
func (f *Fallback) Cover(ctx context.Context, tx *gorm.DB, reservationByItem map[uuid.UUID]uuid.UUID, projectID uuid.UUID, shortfalls []engine.Shortfall) ([]models.ExternalCommitment, error) {
	repo := f.repo.WithTx(tx)
	var commitments []models.ExternalCommitment

	for _, shortfall := range shortfalls {
		reservationID, ok := reservationByItem[shortfall.ItemID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "shortfall item has no reservation row")
		}

		slots, err := repo.ListOpenSlots(ctx, shortfall.ItemKind, shortfall.Window.Start, shortfall.Window.End)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "slot lookup failed")
		}

		remaining := shortfall.Qty
		for i := range slots {
			if remaining == 0 {
				break
			}
			slot := &slots[i]
			take := remaining
			if take > slot.Qty {
				take = slot.Qty
			}
			if err := repo.TakeFromSlot(ctx, slot, take); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to claim slot capacity")
			}
			commitments = append(commitments, models.ExternalCommitment{
				ID:            uuid.New(),
				ReservationID: reservationID,
				PartnerID:     slot.PartnerID,
				SlotID:        slot.ID,
				ItemID:        shortfall.ItemID,
				Qty:           take,
				WindowStart:   shortfall.Window.Start,
				WindowEnd:     shortfall.Window.End,
				UnitPrice:     slot.UnitPrice,
				Status:        enums.CommitmentPending,
			})
			remaining -= take
		}
		if remaining > 0 {
			return nil, pkgerrors.New(pkgerrors.CodePartnerUnavailable, "partner capacity cannot cover the shortfall").
				WithDetails(map[string]any{
					"itemId":    shortfall.ItemID,
					"uncovered": remaining,
				})
		}
	}

	if err := repo.CreateCommitments(ctx, commitments); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to write commitments")
	}
	return commitments, nil
}
