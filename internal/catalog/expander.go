package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
)

// ComponentLine is one expanded item demand produced from a bundle.
type ComponentLine struct {
	ItemID uuid.UUID
	Qty    int
}

// Expander flattens bundle definitions into per-item demand lines.
// Nested bundles are followed up to maxDepth levels; revisiting a
// bundle on the current path is a cycle and rejected.
type Expander struct {
	bundles  BundleReader
	maxDepth int
}

// NewExpander constructs an expander over the given bundle source.
func NewExpander(bundles BundleReader, maxDepth int) (*Expander, error) {
	if bundles == nil {
		return nil, fmt.Errorf("bundle reader required")
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Expander{bundles: bundles, maxDepth: maxDepth}, nil
}

// Expand resolves the bundle into aggregated item lines, each quantity
// scaled by the requested multiplier. Lines are sorted by item id so
// downstream locking sees a stable order.
func (e *Expander) Expand(ctx context.Context, bundleID uuid.UUID, multiplier int) ([]ComponentLine, error) {
	if multiplier < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "multiplier must be at least 1")
	}
	totals := make(map[uuid.UUID]int)
	visiting := make(map[uuid.UUID]bool)
	if err := e.walk(ctx, bundleID, multiplier, 1, visiting, totals); err != nil {
		return nil, err
	}
	lines := make([]ComponentLine, 0, len(totals))
	for id, qty := range totals {
		lines = append(lines, ComponentLine{ItemID: id, Qty: qty})
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ItemID.String() < lines[j].ItemID.String()
	})
	return lines, nil
}

func (e *Expander) walk(ctx context.Context, bundleID uuid.UUID, multiplier, depth int, visiting map[uuid.UUID]bool, totals map[uuid.UUID]int) error {
	if depth > e.maxDepth {
		return pkgerrors.New(pkgerrors.CodeValidation, "bundle nesting exceeds maximum depth").
			WithDetails(map[string]any{"bundle_id": bundleID, "max_depth": e.maxDepth})
	}
	if visiting[bundleID] {
		return pkgerrors.New(pkgerrors.CodeValidation, "bundle definition is cyclic").
			WithDetails(map[string]any{"bundle_id": bundleID})
	}

	bundle, err := e.bundles.FindBundle(ctx, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found").
				WithDetails(map[string]any{"bundle_id": bundleID})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load bundle")
	}
	if len(bundle.Components) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "bundle has no components").
			WithDetails(map[string]any{"bundle_id": bundleID})
	}

	visiting[bundleID] = true
	defer delete(visiting, bundleID)

	for _, component := range bundle.Components {
		qty := multiplier * component.Multiplier
		switch component.ComponentType {
		case enums.SubjectItem:
			totals[component.ComponentID] += qty
		case enums.SubjectBundle:
			if err := e.walk(ctx, component.ComponentID, qty, depth+1, visiting, totals); err != nil {
				return err
			}
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown component type").
				WithDetails(map[string]any{"component_type": component.ComponentType})
		}
	}
	return nil
}
