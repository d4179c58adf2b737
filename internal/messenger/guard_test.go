package messenger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time            { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard() (*MemoryGuard, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	g := NewMemoryGuard(0, 0)
	g.now = c.now
	return g, c
}

func TestMemoryGuard_RateWindow(t *testing.T) {
	g, c := newTestGuard()
	ctx := context.Background()

	assert.False(t, g.RateLimited(ctx, "u1"))
	assert.True(t, g.RateLimited(ctx, "u1"))
	assert.False(t, g.RateLimited(ctx, "u2"))

	c.advance(DefaultRateWindow)
	assert.False(t, g.RateLimited(ctx, "u1"))
}

func TestMemoryGuard_Duplicate(t *testing.T) {
	g, c := newTestGuard()
	ctx := context.Background()

	assert.False(t, g.Duplicate(ctx, "u1", "m1"))
	assert.True(t, g.Duplicate(ctx, "u1", "m1"))
	assert.False(t, g.Duplicate(ctx, "u2", "m1"))

	c.advance(DefaultDedupTTL - time.Second)
	assert.True(t, g.Duplicate(ctx, "u1", "m1"))
	c.advance(time.Second)
	assert.False(t, g.Duplicate(ctx, "u1", "m1"))
}

func TestMemoryGuard_Sweep(t *testing.T) {
	g, c := newTestGuard()
	ctx := context.Background()

	g.RateLimited(ctx, "u1")
	g.Duplicate(ctx, "u1", "m1")
	assert.Equal(t, 2, g.Len())

	c.advance(time.Minute)
	assert.Equal(t, 1, g.Sweep())
	assert.Equal(t, 1, g.Len())

	c.advance(DefaultDedupTTL)
	assert.Equal(t, 1, g.Sweep())
	assert.Equal(t, 0, g.Len())
}

func TestMemoryGuard_RunStopsWithContext(t *testing.T) {
	g, _ := newTestGuard()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
