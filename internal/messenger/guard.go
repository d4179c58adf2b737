package messenger

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultRateWindow = 2 * time.Second
	DefaultDedupTTL   = 5 * time.Minute
)

// Guard filters webhook events: one call per user per rate window and each
// message id once per dedup window. Both checks record the event they let
// through.
type Guard interface {
	RateLimited(ctx context.Context, psid string) bool
	Duplicate(ctx context.Context, psid, mid string) bool
}

// MemoryGuard is a process-local Guard. Expired entries are dropped by Sweep,
// which Run calls periodically.
type MemoryGuard struct {
	mu         sync.Mutex
	lastCall   map[string]time.Time
	seen       map[string]time.Time
	rateWindow time.Duration
	dedupTTL   time.Duration
	now        func() time.Time
}

func NewMemoryGuard(rateWindow, dedupTTL time.Duration) *MemoryGuard {
	if rateWindow <= 0 {
		rateWindow = DefaultRateWindow
	}
	if dedupTTL <= 0 {
		dedupTTL = DefaultDedupTTL
	}
	return &MemoryGuard{
		lastCall:   make(map[string]time.Time),
		seen:       make(map[string]time.Time),
		rateWindow: rateWindow,
		dedupTTL:   dedupTTL,
		now:        time.Now,
	}
}

func (g *MemoryGuard) RateLimited(_ context.Context, psid string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if last, ok := g.lastCall[psid]; ok && now.Sub(last) < g.rateWindow {
		return true
	}
	g.lastCall[psid] = now
	return false
}

func (g *MemoryGuard) Duplicate(_ context.Context, psid, mid string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := psid + ":" + mid
	now := g.now()
	if at, ok := g.seen[key]; ok && now.Sub(at) < g.dedupTTL {
		return true
	}
	g.seen[key] = now
	return false
}

// Sweep removes expired entries and returns how many were dropped.
func (g *MemoryGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	n := 0
	for k, at := range g.seen {
		if now.Sub(at) >= g.dedupTTL {
			delete(g.seen, k)
			n++
		}
	}
	for k, at := range g.lastCall {
		if now.Sub(at) >= g.rateWindow {
			delete(g.lastCall, k)
			n++
		}
	}
	return n
}

func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen) + len(g.lastCall)
}

// Run sweeps every interval until ctx is done.
func (g *MemoryGuard) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = g.dedupTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}
