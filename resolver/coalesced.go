package resolver

import (
	"context"
	"sync"
)

// CoalescedResolver collapses concurrent Resolve calls for the same name
// into a single upstream resolve: the upstream locator is invoked
// exactly once per name and every concurrent caller receives the same
// result.
type CoalescedResolver struct {
	single      *SingleShotResolver
	locatorAddr string

	mu      sync.Mutex
	waiters map[string][]chan outcome
}

type outcome struct {
	result *ResolveResult
	err    error
}

// NewCoalescedResolver returns a CoalescedResolver issuing single-shot
// resolves against locatorAddr.
func NewCoalescedResolver(locatorAddr string, opts ...Option) *CoalescedResolver {
	return &CoalescedResolver{
		single:      NewSingleShotResolver(opts...),
		locatorAddr: locatorAddr,
		waiters:     make(map[string][]chan outcome),
	}
}

// Resolve returns name's endpoint set. If a resolve for name is already
// in flight, it joins that call's waiter queue instead of issuing a
// second one; the call that finds no entry owns the upstream resolve and
// broadcasts its outcome to every waiter that joined meanwhile.
//
// The map mutex is held only around insert/lookup/erase; the locator
// round-trip itself runs outside the lock.
func (c *CoalescedResolver) Resolve(ctx context.Context, name string) (*ResolveResult, error) {
	c.mu.Lock()
	if _, inFlight := c.waiters[name]; inFlight {
		ch := make(chan outcome, 1)
		c.waiters[name] = append(c.waiters[name], ch)
		c.mu.Unlock()

		select {
		case out := <-ch:
			return out.result, out.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.waiters[name] = nil
	c.mu.Unlock()

	result, err := c.single.Resolve(ctx, c.locatorAddr, name)

	c.mu.Lock()
	joined := c.waiters[name]
	delete(c.waiters, name)
	c.mu.Unlock()

	for _, ch := range joined {
		ch <- outcome{result: result, err: err}
	}
	return result, err
}
