package cache

import (
	"container/list"
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/resource"
)

// WriteBack persists one frame.
type WriteBack func(id uint32, frame []byte) error

// Stats describes cache activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Resident  int
	Dirty     int
}

type entry struct {
	id    uint32
	frame []byte
}

// PageCache is an LRU cache of page frames with write-back eviction.
type PageCache struct {
	mu       sync.Mutex
	capacity int
	items    map[uint32]*list.Element
	order    *list.List
	dirty    *roaring.Bitmap
	wb       WriteBack
	rc       *resource.Controller

	stats Stats
}

// NewPageCache returns a cache holding at most capacity frames. wb is called
// for dirty frames on eviction.
func NewPageCache(capacity int, wb WriteBack, rc *resource.Controller) *PageCache {
	return &PageCache{
		capacity: max(capacity, 1),
		items:    make(map[uint32]*list.Element),
		order:    list.New(),
		dirty:    roaring.New(),
		wb:       wb,
		rc:       rc,
	}
}

// Get returns the resident frame for id.
func (c *PageCache) Get(id uint32) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.stats.Hits++
		c.order.MoveToFront(el)
		return el.Value.(*entry).frame, true
	}
	c.stats.Misses++
	return nil, false
}

// Put inserts frame for id and returns the resident frame, which is the
// existing one if id is already cached. Making room may write back dirty
// frames; a failed write-back leaves the cache unchanged.
func (c *PageCache) Put(id uint32, frame []byte, dirty bool) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.order.MoveToFront(el)
		if dirty {
			c.dirty.Add(id)
		}
		return el.Value.(*entry).frame, nil
	}

	for c.order.Len() >= c.capacity {
		if err := c.evictOldest(); err != nil {
			return nil, err
		}
	}

	size := int64(len(frame))
	for c.rc.Reserve(size) != nil {
		if c.order.Len() == 0 {
			return nil, errs.OutOfMemory(errs.ResourceArena, resource.ErrBudgetExceeded)
		}
		if err := c.evictOldest(); err != nil {
			return nil, err
		}
	}

	c.items[id] = c.order.PushFront(&entry{id: id, frame: frame})
	if dirty {
		c.dirty.Add(id)
	}
	return frame, nil
}

// MarkDirty flags a resident frame as modified. It reports false if id is
// not resident.
func (c *PageCache) MarkDirty(id uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return false
	}
	c.order.MoveToFront(el)
	c.dirty.Add(id)
	return true
}

func (c *PageCache) evictOldest() error {
	el := c.order.Back()
	if el == nil {
		return nil
	}
	e := el.Value.(*entry)
	if c.dirty.Contains(e.id) {
		if err := c.wb(e.id, e.frame); err != nil {
			return err
		}
		c.dirty.Remove(e.id)
	}
	c.order.Remove(el)
	delete(c.items, e.id)
	c.rc.Release(int64(len(e.frame)))
	c.stats.Evictions++
	return nil
}

// Flush writes every dirty frame with up to parallel concurrent writers.
// Frames written successfully are marked clean even if another write fails.
func (c *PageCache) Flush(ctx context.Context, parallel int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty.IsEmpty() {
		return nil
	}

	ids := c.dirty.ToArray()
	written := make([]bool, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, id := range ids {
		frame := c.items[id].Value.(*entry).frame
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.wb(id, frame); err != nil {
				return err
			}
			written[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i, id := range ids {
		if written[i] {
			c.dirty.Remove(id)
		}
	}
	return err
}

// Stats returns a snapshot of the counters.
func (c *PageCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Resident = c.order.Len()
	s.Dirty = int(c.dirty.GetCardinality())
	return s
}

// Reset drops every frame without writing anything back.
func (c *PageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; el = el.Next() {
		c.rc.Release(int64(len(el.Value.(*entry).frame)))
	}
	c.items = make(map[uint32]*list.Element)
	c.order.Init()
	c.dirty.Clear()
}
