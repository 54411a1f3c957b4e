package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/db/models"
)

type cachedItem struct {
	item      *models.Item
	expiresAt time.Time
}

type cachedBundle struct {
	bundle    *models.Bundle
	expiresAt time.Time
}

// Cache is a read-through TTL cache in front of the catalogue repository.
// Entries expire after the configured TTL; writes go through Invalidate.
type Cache struct {
	repo  *Repository
	ttl   time.Duration
	clock clock.Clock

	mu      sync.RWMutex
	items   map[uuid.UUID]cachedItem
	bundles map[uuid.UUID]cachedBundle
}

// NewCache builds a cache with the given TTL. A zero TTL disables
// caching and every read hits the repository.
func NewCache(repo *Repository, ttl time.Duration, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.System{}
	}
	return &Cache{
		repo:    repo,
		ttl:     ttl,
		clock:   clk,
		items:   make(map[uuid.UUID]cachedItem),
		bundles: make(map[uuid.UUID]cachedBundle),
	}
}

// FindItem returns the cached item or loads it from the repository.
func (c *Cache) FindItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		entry, ok := c.items[id]
		c.mu.RUnlock()
		if ok && c.clock.Now().Before(entry.expiresAt) {
			return entry.item, nil
		}
	}
	item, err := c.repo.FindItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.items[id] = cachedItem{item: item, expiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return item, nil
}

// FindBundle returns the cached bundle or loads it with components.
func (c *Cache) FindBundle(ctx context.Context, id uuid.UUID) (*models.Bundle, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		entry, ok := c.bundles[id]
		c.mu.RUnlock()
		if ok && c.clock.Now().Before(entry.expiresAt) {
			return entry.bundle, nil
		}
	}
	bundle, err := c.repo.FindBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.bundles[id] = cachedBundle{bundle: bundle, expiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return bundle, nil
}

// ListItemsByKind always reads through; kind listings are not cached.
func (c *Cache) ListItemsByKind(ctx context.Context, kind string) ([]models.Item, error) {
	return c.repo.ListItemsByKind(ctx, kind)
}

// Invalidate drops any cached entry for the given subject.
func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	delete(c.items, id)
	delete(c.bundles, id)
	c.mu.Unlock()
}
