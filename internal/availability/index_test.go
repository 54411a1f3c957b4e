package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/types"
)

func dayWindow(t *testing.T, start, end string) types.Window {
	t.Helper()
	w, err := types.ParseDayWindow(start, end)
	if err != nil {
		t.Fatalf("parse window: %v", err)
	}
	return w
}

func TestIndexOverlapQueries(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	item := uuid.New()
	project := uuid.New()

	early := Entry{
		ReservationID: uuid.New(),
		ProjectID:     project,
		ItemID:        item,
		Qty:           2,
		Window:        dayWindow(t, "2025-06-01", "2025-06-03"),
	}
	late := Entry{
		ReservationID: uuid.New(),
		ProjectID:     uuid.New(),
		ItemID:        item,
		Qty:           1,
		Window:        dayWindow(t, "2025-06-10", "2025-06-12"),
	}
	index.Insert(early)
	index.Insert(late)

	got := index.Overlaps(item, dayWindow(t, "2025-06-02", "2025-06-04"), nil)
	if len(got) != 1 || got[0].ReservationID != early.ReservationID {
		t.Fatalf("expected only early entry, got %+v", got)
	}

	got = index.Overlaps(item, dayWindow(t, "2025-06-03", "2025-06-10"), nil)
	if len(got) != 2 {
		t.Fatalf("expected both entries on inclusive endpoints, got %d", len(got))
	}

	got = index.Overlaps(item, dayWindow(t, "2025-06-04", "2025-06-09"), nil)
	if len(got) != 0 {
		t.Fatalf("expected gap window to match nothing, got %+v", got)
	}

	got = index.Overlaps(item, dayWindow(t, "2025-06-01", "2025-06-12"), &project)
	if len(got) != 1 || got[0].ReservationID != late.ReservationID {
		t.Fatalf("expected project exclusion to drop early entry, got %+v", got)
	}

	if got := index.Overlaps(uuid.New(), dayWindow(t, "2025-06-01", "2025-06-12"), nil); len(got) != 0 {
		t.Fatalf("unknown item should have no entries, got %+v", got)
	}
}

func TestIndexInsertIdempotentOnID(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	item := uuid.New()
	id := uuid.New()

	entry := Entry{
		ReservationID: id,
		ProjectID:     uuid.New(),
		ItemID:        item,
		Qty:           3,
		Window:        dayWindow(t, "2025-06-01", "2025-06-03"),
	}
	index.Insert(entry)
	index.Insert(entry)

	got := index.Overlaps(item, entry.Window, nil)
	if len(got) != 1 {
		t.Fatalf("expected double insert to keep one entry, got %d", len(got))
	}

	// Re-inserting with a new window replaces the old interval.
	entry.Window = dayWindow(t, "2025-07-01", "2025-07-02")
	index.Insert(entry)
	if got := index.Overlaps(item, dayWindow(t, "2025-06-01", "2025-06-03"), nil); len(got) != 0 {
		t.Fatalf("expected old window to be gone, got %+v", got)
	}
	if got := index.Overlaps(item, entry.Window, nil); len(got) != 1 {
		t.Fatalf("expected new window to be present")
	}
}

func TestIndexRemoveAndSumQtyAt(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	item := uuid.New()

	a := Entry{ReservationID: uuid.New(), ProjectID: uuid.New(), ItemID: item, Qty: 2, Window: dayWindow(t, "2025-06-01", "2025-06-05")}
	b := Entry{ReservationID: uuid.New(), ProjectID: uuid.New(), ItemID: item, Qty: 3, Window: dayWindow(t, "2025-06-03", "2025-06-07")}
	index.Insert(a)
	index.Insert(b)

	at := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	if got := index.SumQtyAt(item, at); got != 5 {
		t.Fatalf("expected peak 5, got %d", got)
	}

	index.Remove(a.ReservationID)
	if got := index.SumQtyAt(item, at); got != 3 {
		t.Fatalf("expected 3 after removal, got %d", got)
	}

	// Removing twice is a no-op.
	index.Remove(a.ReservationID)
	if got := index.SumQtyAt(item, at); got != 3 {
		t.Fatalf("expected removal to be idempotent, got %d", got)
	}
}

func TestIndexRebuildItem(t *testing.T) {
	t.Parallel()

	index := NewIndex()
	item := uuid.New()

	stale := Entry{ReservationID: uuid.New(), ProjectID: uuid.New(), ItemID: item, Qty: 9, Window: dayWindow(t, "2025-06-01", "2025-06-03")}
	index.Insert(stale)

	durable := []Entry{
		{ReservationID: uuid.New(), ProjectID: uuid.New(), ItemID: item, Qty: 1, Window: dayWindow(t, "2025-06-02", "2025-06-04")},
		{ReservationID: uuid.New(), ProjectID: uuid.New(), ItemID: item, Qty: 2, Window: dayWindow(t, "2025-06-01", "2025-06-02")},
	}
	index.RebuildItem(item, durable)

	if got := index.Overlaps(item, dayWindow(t, "2025-06-01", "2025-06-04"), nil); len(got) != 2 {
		t.Fatalf("expected rebuilt shard with 2 entries, got %d", len(got))
	}
	at := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if got := index.SumQtyAt(item, at); got != 3 {
		t.Fatalf("expected rebuilt demand 3, got %d", got)
	}
}
