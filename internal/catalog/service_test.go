package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/enums"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
	"github.com/stagecrew/rentline-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *Repository) {
	t.Helper()
	db := newTestDB(t)
	repo := NewRepository(db)
	cache := NewCache(repo, time.Second, clock.System{})
	expander, err := NewExpander(repo, 3)
	if err != nil {
		t.Fatalf("new expander: %v", err)
	}
	svc, err := NewService(repo, cache, expander)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestCreateItemValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, CreateItemInput{Kind: "par-64", QuantityTotal: 1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for missing name, got %v", err)
	}

	_, err = svc.CreateItem(ctx, CreateItemInput{Name: "PAR 64", Kind: "par-64", QuantityTotal: -1})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative quantity, got %v", err)
	}

	item, err := svc.CreateItem(ctx, CreateItemInput{
		Name:          "PAR 64",
		Kind:          "par-64",
		QuantityTotal: 12,
		IsActive:      true,
		DayRate:       decimal.NewFromInt(15),
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if item.ID == uuid.Nil {
		t.Fatal("expected item id to be assigned")
	}
}

func TestUpdateItemPartialMutation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{Name: "Hazer", Kind: "fx", QuantityTotal: 3, IsActive: true})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	total := 5
	inactive := false
	updated, err := svc.UpdateItem(ctx, item.ID, UpdateItemInput{QuantityTotal: &total, IsActive: &inactive})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.QuantityTotal != 5 || updated.IsActive {
		t.Fatalf("unexpected item state: %+v", updated)
	}
	if updated.Name != "Hazer" {
		t.Fatalf("name should be untouched, got %q", updated.Name)
	}

	_, err = svc.UpdateItem(ctx, uuid.New(), UpdateItemInput{QuantityTotal: &total})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateBundleRejectsDanglingComponents(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateBundle(ctx, CreateBundleInput{
		Name:     "Broken Kit",
		IsActive: true,
		Components: []ComponentInput{
			{ComponentType: enums.SubjectItem, ComponentID: uuid.New(), Multiplier: 1},
		},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for dangling component, got %v", err)
	}

	_, err = svc.CreateBundle(ctx, CreateBundleInput{Name: "No Parts", IsActive: true})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty component list, got %v", err)
	}
}

func TestCreateBundleAndExpand(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, CreateItemInput{Name: "Truss", Kind: "truss-2m", QuantityTotal: 20, IsActive: true})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	bundle, err := svc.CreateBundle(ctx, CreateBundleInput{
		Name:     "Truss Gate",
		IsActive: true,
		Components: []ComponentInput{
			{ComponentType: enums.SubjectItem, ComponentID: item.ID, Multiplier: 4},
		},
	})
	if err != nil {
		t.Fatalf("create bundle: %v", err)
	}

	lines, err := svc.ExpandBundle(ctx, bundle.ID, 3)
	if err != nil {
		t.Fatalf("expand bundle: %v", err)
	}
	if len(lines) != 1 || lines[0].ItemID != item.ID || lines[0].Qty != 12 {
		t.Fatalf("unexpected expansion: %+v", lines)
	}
}

func TestListItemsPaginates(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"PAR 64", "Moving Head", "Hazer"} {
		if _, err := svc.CreateItem(ctx, CreateItemInput{Name: name, Kind: "lighting", QuantityTotal: 5, IsActive: true}); err != nil {
			t.Fatalf("create item %s: %v", name, err)
		}
	}

	first, err := svc.ListItems(ctx, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Items) != 2 {
		t.Fatalf("expected 2 items on first page, got %d", len(first.Items))
	}
	if first.NextCursor == "" {
		t.Fatal("expected a next cursor on the first page")
	}

	second, err := svc.ListItems(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Items) != 1 {
		t.Fatalf("expected 1 item on second page, got %d", len(second.Items))
	}
	if second.NextCursor != "" {
		t.Fatalf("expected no cursor on the last page, got %q", second.NextCursor)
	}

	seen := map[string]bool{}
	for _, item := range append(first.Items, second.Items...) {
		seen[item.Name] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all items across pages, got %v", seen)
	}
}
