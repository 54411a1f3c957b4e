package availability

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/types"
)

// Entry is one stock-holding interval tracked by the index. Bundle
// reservations appear here only through their component item rows.
type Entry struct {
	ReservationID uuid.UUID
	ProjectID     uuid.UUID
	ItemID        uuid.UUID
	Qty           int
	Window        types.Window
}

// itemShard keeps one item's entries sorted by (window start, id) with a
// prefix max-end augmentation so overlap queries can binary-search both
// boundaries.
type itemShard struct {
	entries []Entry
	maxEnds []time.Time
}

// Index is the in-memory overlap structure over durable reservations.
// It is a cache: on process start it is rebuilt from the reservation
// table, and on transaction rollback the affected item is rebuilt.
type Index struct {
	mu            sync.RWMutex
	items         map[uuid.UUID]*itemShard
	byReservation map[uuid.UUID]uuid.UUID
}

// NewIndex builds an empty index.
func NewIndex() *Index {
	return &Index{
		items:         make(map[uuid.UUID]*itemShard),
		byReservation: make(map[uuid.UUID]uuid.UUID),
	}
}

func entryLess(a, b Entry) bool {
	if !a.Window.Start.Equal(b.Window.Start) {
		return a.Window.Start.Before(b.Window.Start)
	}
	return a.ReservationID.String() < b.ReservationID.String()
}

// Insert adds or replaces the entry for its reservation id.
func (ix *Index) Insert(entry Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(entry.ReservationID)

	shard, ok := ix.items[entry.ItemID]
	if !ok {
		shard = &itemShard{}
		ix.items[entry.ItemID] = shard
	}
	pos := sort.Search(len(shard.entries), func(i int) bool {
		return !entryLess(shard.entries[i], entry)
	})
	shard.entries = append(shard.entries, Entry{})
	copy(shard.entries[pos+1:], shard.entries[pos:])
	shard.entries[pos] = entry
	shard.rebuildMaxEnds(pos)
	ix.byReservation[entry.ReservationID] = entry.ItemID
}

// Remove drops the entry for the reservation id. Unknown ids are a no-op.
func (ix *Index) Remove(reservationID uuid.UUID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(reservationID)
}

func (ix *Index) removeLocked(reservationID uuid.UUID) {
	itemID, ok := ix.byReservation[reservationID]
	if !ok {
		return
	}
	delete(ix.byReservation, reservationID)
	shard := ix.items[itemID]
	if shard == nil {
		return
	}
	for i, entry := range shard.entries {
		if entry.ReservationID == reservationID {
			shard.entries = append(shard.entries[:i], shard.entries[i+1:]...)
			shard.rebuildMaxEnds(i)
			break
		}
	}
	if len(shard.entries) == 0 {
		delete(ix.items, itemID)
	}
}

func (s *itemShard) rebuildMaxEnds(from int) {
	if len(s.maxEnds) != len(s.entries) {
		ends := make([]time.Time, len(s.entries))
		copy(ends, s.maxEnds[:min(len(s.maxEnds), len(s.entries))])
		s.maxEnds = ends
	}
	if from > len(s.entries) {
		from = len(s.entries)
	}
	for i := from; i < len(s.entries); i++ {
		end := s.entries[i].Window.End
		if i > 0 && s.maxEnds[i-1].After(end) {
			end = s.maxEnds[i-1]
		}
		s.maxEnds[i] = end
	}
}

// Overlaps returns every entry for the item whose window intersects the
// given one, optionally excluding one project's reservations.
func (ix *Index) Overlaps(itemID uuid.UUID, window types.Window, excludeProject *uuid.UUID) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	shard, ok := ix.items[itemID]
	if !ok {
		return nil
	}
	// Entries past hi start after the window ends; entries before lo all
	// end before the window starts (prefix max-end is nondecreasing).
	hi := sort.Search(len(shard.entries), func(i int) bool {
		return shard.entries[i].Window.Start.After(window.End)
	})
	lo := sort.Search(hi, func(i int) bool {
		return !shard.maxEnds[i].Before(window.Start)
	})

	var out []Entry
	for i := lo; i < hi; i++ {
		entry := shard.entries[i]
		if !entry.Window.Overlaps(window) {
			continue
		}
		if excludeProject != nil && entry.ProjectID == *excludeProject {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// SumQtyAt reports total reserved quantity for the item at one instant.
func (ix *Index) SumQtyAt(itemID uuid.UUID, at time.Time) int {
	point := types.Window{Start: at, End: at}
	total := 0
	for _, entry := range ix.Overlaps(itemID, point, nil) {
		total += entry.Qty
	}
	return total
}

// RebuildItem replaces the item's shard wholesale. Used after a rolled
// back transaction left the cache ahead of durable state.
func (ix *Index) RebuildItem(itemID uuid.UUID, entries []Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if shard, ok := ix.items[itemID]; ok {
		for _, entry := range shard.entries {
			delete(ix.byReservation, entry.ReservationID)
		}
		delete(ix.items, itemID)
	}
	if len(entries) == 0 {
		return
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return entryLess(sorted[i], sorted[j]) })

	shard := &itemShard{entries: sorted}
	shard.rebuildMaxEnds(0)
	ix.items[itemID] = shard
	for _, entry := range sorted {
		ix.byReservation[entry.ReservationID] = itemID
	}
}
