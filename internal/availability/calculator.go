package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/db/models"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/types"
)

// ItemSource provides the catalogue reads the calculator needs. The
// read-through cache in internal/catalog satisfies it.
type ItemSource interface {
	FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
}

// Query describes one availability question.
type Query struct {
	ItemID         uuid.UUID
	Window         types.Window
	ExcludeProject *uuid.UUID
	// Lenient treats an unknown item as empty stock instead of failing.
	Lenient bool
}

// Result carries the computed availability with its peak diagnostics.
type Result struct {
	ItemID     uuid.UUID
	Total      int
	PeakDemand int
	Available  int
	Overlaps   []Entry
}

// Calculator answers available(item, window) questions against the
// interval index.
type Calculator struct {
	items ItemSource
	index *Index
}

// NewCalculator constructs a calculator over the given catalogue source
// and index.
func NewCalculator(items ItemSource, index *Index) (*Calculator, error) {
	if items == nil {
		return nil, fmt.Errorf("item source required")
	}
	if index == nil {
		return nil, fmt.Errorf("interval index required")
	}
	return &Calculator{items: items, index: index}, nil
}

// Evaluate computes the item's availability over the window. The
// available figure is total minus the peak simultaneous demand, clamped
// to zero. Inactive items report zero total.
func (c *Calculator) Evaluate(ctx context.Context, q Query) (*Result, error) {
	if !q.Window.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window start must not be after end").
			WithDetails(map[string]any{"start": q.Window.Start, "end": q.Window.End})
	}

	item, err := c.items.FindItem(ctx, q.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if q.Lenient {
				return &Result{ItemID: q.ItemID}, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found").
				WithDetails(map[string]any{"item_id": q.ItemID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}

	total := item.QuantityTotal
	if !item.IsActive {
		total = 0
	}

	overlaps := c.index.Overlaps(q.ItemID, q.Window, q.ExcludeProject)
	peak := Peak(q.Window, overlaps)

	available := total - peak
	if available < 0 {
		available = 0
	}
	return &Result{
		ItemID:     q.ItemID,
		Total:      total,
		PeakDemand: peak,
		Available:  available,
		Overlaps:   overlaps,
	}, nil
}

// Available is the scalar shortcut over Evaluate.
func (c *Calculator) Available(ctx context.Context, itemID uuid.UUID, window types.Window, excludeProject *uuid.UUID) (int, error) {
	result, err := c.Evaluate(ctx, Query{ItemID: itemID, Window: window, ExcludeProject: excludeProject})
	if err != nil {
		return 0, err
	}
	return result.Available, nil
}

// Peak sweeps candidate instants inside the window and returns the
// maximum simultaneous demand. Demand only changes where an overlapping
// entry starts, so the window start plus each entry start clamped into
// the window covers every level.
func Peak(window types.Window, overlaps []Entry) int {
	if len(overlaps) == 0 {
		return 0
	}
	candidates := make([]time.Time, 0, len(overlaps)+1)
	candidates = append(candidates, window.Start)
	for _, entry := range overlaps {
		if entry.Window.Start.After(window.Start) {
			candidates = append(candidates, entry.Window.Start)
		}
	}

	peak := 0
	for _, at := range candidates {
		demand := 0
		for _, entry := range overlaps {
			if entry.Window.Contains(at) {
				demand += entry.Qty
			}
		}
		if demand > peak {
			peak = demand
		}
	}
	return peak
}
