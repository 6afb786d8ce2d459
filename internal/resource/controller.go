package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the resident payload level above which the
	// store evicts layers. If 0, memory is only tracked.
	MemoryLimitBytes int64

	// MaxPersistWorkers bounds concurrent persistence writers.
	// If 0, defaults to 1.
	MaxPersistWorkers int64

	// IOLimitBytesPerSec caps persistence write throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller tracks memory and gates persistence concurrency and IO.
// A nil *Controller is valid and enforces nothing.
type Controller struct {
	cfg Config

	memUsed atomic.Int64
	workers *semaphore.Weighted
	io      *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxPersistWorkers <= 0 {
		cfg.MaxPersistWorkers = 1
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxPersistWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// ChargeMemory records bytes held by resident payloads.
func (c *Controller) ChargeMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.memUsed.Add(bytes)
}

// ReleaseMemory returns charged bytes.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current tracked memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the memory limit (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// OverLimit reports whether tracked memory exceeds the limit.
func (c *Controller) OverLimit() bool {
	if c == nil || c.cfg.MemoryLimitBytes <= 0 {
		return false
	}
	return c.memUsed.Load() > c.cfg.MemoryLimitBytes
}

// PersistWorkers returns the configured number of persistence workers.
func (c *Controller) PersistWorkers() int {
	if c == nil {
		return 1
	}
	return int(c.cfg.MaxPersistWorkers)
}

// AcquireWorker blocks until a persistence worker slot is free.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// ReleaseWorker frees a persistence worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireIO waits until the IO limit allows writing n bytes.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil || n <= 0 {
		return nil
	}
	// WaitN rejects requests larger than the burst; charge those in chunks.
	burst := c.io.Burst()
	for n > burst {
		if err := c.io.WaitN(ctx, burst); err != nil {
			return err
		}
		n -= burst
	}
	return c.io.WaitN(ctx, n)
}
