package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningGuard

// ─────────────────────────────────────────────────────────────
// runningGuard: prevents overlapping exports of the same kind
// ─────────────────────────────────────────────────────────────

// runningGuard ensures only one export of a given kind runs at a time,
// whether started by the scheduler or a manual run in the same process.
type runningGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	active  int           // successful TryLocks not yet unlocked
	idle    chan struct{} // closed when active drops to zero
}

// TryLock marks every key as running. It succeeds only if none of them
// is already running; otherwise nothing is locked and the busy keys are
// returned.
func (g *runningGuard) TryLock(keys ...string) (busy []string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	for _, k := range keys {
		if _, running := g.running[k]; running {
			busy = append(busy, k)
		}
	}
	if len(busy) > 0 {
		return busy, false
	}
	for _, k := range keys {
		g.running[k] = struct{}{}
	}
	if g.active == 0 {
		g.idle = make(chan struct{})
	}
	g.active++
	return nil, true
}

// Unlock releases keys. Must be called once after a successful TryLock
// with the same keys.
func (g *runningGuard) Unlock(keys ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		delete(g.running, k)
	}
	g.active--
	if g.active == 0 {
		close(g.idle)
	}
}

// WaitAll blocks until all running exports complete or ctx is cancelled.
// Runs that start while it waits are waited for too.
func (g *runningGuard) WaitAll(ctx context.Context) {
	for {
		g.mu.Lock()
		if g.active == 0 {
			g.mu.Unlock()
			return
		}
		idle := g.idle
		g.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return
		}
	}
}
