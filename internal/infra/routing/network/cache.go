package network

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tourplanner/internal/domain/entity"
	domainerrors "tourplanner/internal/domain/errors"
)

// CacheStats reports shortest path cache usage.
type CacheStats struct {
	Trees  int
	Hits   uint64
	Misses uint64
}

// treeCache keeps one shortest path tree per origin. Readers share the
// lock; concurrent misses for the same origin run Dijkstra once. Trees
// computed before an invalidation are returned to their callers but never
// stored.
type treeCache struct {
	network    *Network
	compute    func(origin int) *pathTree
	mu         sync.RWMutex
	trees      map[int]*pathTree
	generation uint64
	group      singleflight.Group
	hits       atomic.Uint64
	misses     atomic.Uint64
	observer   CacheObserver
}

func newTreeCache(network *Network) *treeCache {
	return &treeCache{
		network: network,
		compute: network.dijkstra,
		trees:   make(map[int]*pathTree),
	}
}

func (c *treeCache) get(origin int) *pathTree {
	c.mu.RLock()
	tree, ok := c.trees[origin]
	generation := c.generation
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		c.observe(true)

		return tree
	}

	c.misses.Add(1)
	c.observe(false)

	key := strconv.FormatUint(generation, 10) + "/" + strconv.Itoa(origin)
	value, _, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, found := c.trees[origin]
		c.mu.RUnlock()
		if found {
			return cached, nil
		}

		computed := c.compute(origin)
		c.mu.Lock()
		if c.generation == generation {
			c.trees[origin] = computed
		}
		c.mu.Unlock()

		return computed, nil
	})

	return value.(*pathTree)
}

func (c *treeCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObservePathCache(hit)
	}
}

func (c *treeCache) clear() {
	c.mu.Lock()
	c.trees = make(map[int]*pathTree)
	c.generation++
	c.mu.Unlock()
}

func (c *treeCache) stats() CacheStats {
	c.mu.RLock()
	trees := len(c.trees)
	c.mu.RUnlock()

	return CacheStats{
		Trees:  trees,
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

// Invalidate drops every cached shortest path tree.
func (n *Network) Invalidate() {
	n.cache.clear()
	n.logger.Debug("Shortest path cache invalidated")
}

// CacheStats returns the cache usage counters.
func (n *Network) CacheStats() CacheStats {
	return n.cache.stats()
}

// Warm computes the shortest path trees of the given origins concurrently.
func (n *Network) Warm(ctx context.Context, origins []entity.IntersectionID) error {
	workers := n.config.WarmupWorkers
	if workers <= 0 {
		workers = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	seen := make(map[int]bool, len(origins))
	for _, origin := range origins {
		idx, ok := n.index[origin]
		if !ok {
			return errors.WithStack(domainerrors.ErrInvalidReference.WithDetails("intersection " + strconv.FormatInt(int64(origin), 10)))
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			n.cache.get(idx)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return errors.Wrap(err, "path cache warmup interrupted")
	}

	return nil
}
