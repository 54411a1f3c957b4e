package engine

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
)

// GuardSet serialises writers per key with advisory guards. Guards are
// always acquired in ascending key order so concurrent multi-item
// operations cannot deadlock.
type GuardSet struct {
	mu     sync.Mutex
	guards map[uuid.UUID]chan struct{}
}

// NewGuardSet builds an empty guard set.
func NewGuardSet() *GuardSet {
	return &GuardSet{guards: make(map[uuid.UUID]chan struct{})}
}

func (g *GuardSet) guard(key uuid.UUID) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.guards[key]
	if !ok {
		ch = make(chan struct{}, 1)
		g.guards[key] = ch
	}
	return ch
}

// SortKeys orders keys ascending by their byte representation.
func SortKeys(keys []uuid.UUID) []uuid.UUID {
	sorted := make([]uuid.UUID, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}

// Acquire takes every guard in ascending key order, each within the
// timeout. On failure the already acquired guards are released and a
// Contention error is returned. The release func is idempotent.
func (g *GuardSet) Acquire(ctx context.Context, keys []uuid.UUID, timeout time.Duration) (func(), error) {
	sorted := SortKeys(keys)
	held := make([]chan struct{}, 0, len(sorted))

	releaseHeld := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = held[:0]
	}

	for _, key := range sorted {
		ch := g.guard(key)
		timer := time.NewTimer(timeout)
		select {
		case ch <- struct{}{}:
			timer.Stop()
			held = append(held, ch)
		case <-timer.C:
			releaseHeld()
			return nil, pkgerrors.New(pkgerrors.CodeContention, "guard acquisition timed out").
				WithDetails(map[string]any{"key": key})
		case <-ctx.Done():
			timer.Stop()
			releaseHeld()
			return nil, pkgerrors.Wrap(pkgerrors.CodeContention, ctx.Err(), "guard acquisition cancelled")
		}
	}

	var once sync.Once
	return func() { once.Do(releaseHeld) }, nil
}
