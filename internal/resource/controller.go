package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrBudgetExceeded is returned when a reservation would exceed the memory budget.
var ErrBudgetExceeded = errors.New("memory budget exceeded")

// Config holds the store-wide limits.
type Config struct {
	// MemoryBudget caps the bytes held by page and query arenas.
	// 0 tracks usage without a cap.
	MemoryBudget int64

	// WorkerSlots bounds concurrent background jobs such as dirty-page
	// flushes. 0 defaults to 1.
	WorkerSlots int64

	// IOBytesPerSec throttles disk pager reads and writes. 0 is unlimited.
	IOBytesPerSec int64
}

// Controller governs memory, background concurrency and disk IO.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	mem     *semaphore.Weighted
	memUsed atomic.Int64
	memPeak atomic.Int64

	slots *semaphore.Weighted
	io    *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	if cfg.WorkerSlots <= 0 {
		cfg.WorkerSlots = 1
	}

	c := &Controller{
		cfg:   cfg,
		slots: semaphore.NewWeighted(cfg.WorkerSlots),
	}

	if cfg.MemoryBudget > 0 {
		c.mem = semaphore.NewWeighted(cfg.MemoryBudget)
	}

	if cfg.IOBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOBytesPerSec), int(cfg.IOBytesPerSec))
	}

	return c
}

// Reserve claims n bytes of the memory budget without blocking.
func (c *Controller) Reserve(n int64) error {
	if c == nil || n <= 0 {
		return nil
	}

	if c.mem != nil && !c.mem.TryAcquire(n) {
		return ErrBudgetExceeded
	}

	used := c.memUsed.Add(n)
	for {
		peak := c.memPeak.Load()
		if used <= peak || c.memPeak.CompareAndSwap(peak, used) {
			break
		}
	}
	return nil
}

// Release returns n bytes to the budget.
func (c *Controller) Release(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.mem != nil {
		c.mem.Release(n)
	}
	c.memUsed.Add(-n)
}

// Usage returns the bytes currently reserved.
func (c *Controller) Usage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// Peak returns the high-water mark of Usage.
func (c *Controller) Peak() int64 {
	if c == nil {
		return 0
	}
	return c.memPeak.Load()
}

// Budget returns the configured cap (0 if unlimited).
func (c *Controller) Budget() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryBudget
}

// AcquireSlot blocks until a background slot is free.
func (c *Controller) AcquireSlot(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.slots.Acquire(ctx, 1)
}

// ReleaseSlot frees a slot taken by AcquireSlot.
func (c *Controller) ReleaseSlot() {
	if c == nil {
		return
	}
	c.slots.Release(1)
}

// WaitIO blocks until the IO limiter admits n bytes.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	// WaitN rejects requests larger than the burst; split them.
	burst := c.io.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.io.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
