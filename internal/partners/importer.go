package partners

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/logger"
)

// CapacityImporter mirrors partner capacity into the local slot table
// so shortage fallback reads stay local.
type CapacityImporter struct {
	repo   *Repository
	client Client
	clock  clock.Clock
	log    *logger.Logger
}

func NewCapacityImporter(repo *Repository, client Client, clk clock.Clock, log *logger.Logger) (*CapacityImporter, error) {
	switch {
	case repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: repository is required")
	case client == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: client is required")
	case log == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "partners: logger is required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &CapacityImporter{repo: repo, client: client, clock: clk, log: log}, nil
}

// Refresh pulls capacity for each kind over the horizon and upserts it.
func (i *CapacityImporter) Refresh(ctx context.Context, itemKinds []string, horizon time.Duration) error {
	now := i.clock.Now()
	var combined error
	for _, kind := range itemKinds {
		offers, err := i.client.ListCapacity(ctx, kind, now, now.Add(horizon))
		if err != nil {
			combined = multierr.Append(combined, err)
			continue
		}
		for _, offer := range offers {
			slot := models.PartnerSlot{
				ID:        offer.SlotID,
				PartnerID: offer.PartnerID,
				ItemKind:  offer.ItemKind,
				Qty:       offer.Qty,
				ValidFrom: offer.ValidFrom,
				ValidTo:   offer.ValidTo,
				UnitPrice: offer.UnitPrice,
				Status:    enums.SlotOpen,
			}
			if err := i.repo.UpsertSlot(ctx, &slot); err != nil {
				combined = multierr.Append(combined, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert slot"))
			}
		}
		i.log.Info(i.log.WithFields(ctx, map[string]any{"item_kind": kind, "offers": len(offers)}), "partner capacity refreshed")
	}
	return combined
}
