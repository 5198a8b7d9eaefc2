// Package throttle limits how fast sinks write to external services.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Controller is a token bucket: capacity tokens, topped up by refill every
// tick.
type Controller struct {
	capacity int64
	refill   int64

	mu     sync.Mutex
	tokens int64
	cond   *sync.Cond
	closed bool
	stop   chan struct{}
}

func NewController(capacity, refill int64, tick time.Duration) *Controller {
	c := &Controller{
		capacity: capacity,
		refill:   refill,
		tokens:   capacity,
		stop:     make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)

	go func() {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
			}
			c.mu.Lock()
			c.tokens += c.refill
			if c.tokens > c.capacity {
				c.tokens = c.capacity
			}
			c.mu.Unlock()
			c.cond.Broadcast()
		}
	}()
	return c
}

// PerSecond returns a controller admitting n operations per second, refilled
// in tenths so bursts stay small.
func PerSecond(n int64) *Controller {
	refill := n / 10
	if refill < 1 {
		refill = 1
	}
	tick := time.Second * time.Duration(refill) / time.Duration(n)
	return NewController(n, refill, tick)
}

// Acquire blocks until a token is available, ctx is done or the controller
// is closed.
func (c *Controller) Acquire(ctx context.Context) error {
	// wake waiters when ctx ends
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.tokens == 0 && ctx.Err() == nil && !c.closed {
		c.cond.Wait()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if c.closed {
		return ErrClosed
	}
	c.tokens--
	return nil
}

func (c *Controller) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.stop)
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}
