package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/ask-widget/internal/kv"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewWithClient(rdb, "test:"), mr
}

func TestKV_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	store := s.KV("browser-1")

	_, err := store.Get("chatbot_current_session")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, store.Set("chatbot_current_session", "session_1"))
	v, err := store.Get("chatbot_current_session")
	require.NoError(t, err)
	assert.Equal(t, "session_1", v)

	require.NoError(t, store.SetMany(map[string]string{"chatbot_current_session": "session_2"}, []string{"other"}))
	v, err = store.Get("chatbot_current_session")
	require.NoError(t, err)
	assert.Equal(t, "session_2", v)

	require.NoError(t, store.Remove("chatbot_current_session"))
	_, err = store.Get("chatbot_current_session")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestGuard_RateLimitWindow(t *testing.T) {
	s, mr := newTestStore(t)
	g := s.Guard(2*time.Second, 5*time.Minute)
	ctx := context.Background()

	assert.False(t, g.RateLimited(ctx, "psid-1"))
	assert.True(t, g.RateLimited(ctx, "psid-1"))
	assert.False(t, g.RateLimited(ctx, "psid-2"))

	mr.FastForward(3 * time.Second)
	assert.False(t, g.RateLimited(ctx, "psid-1"))
}

func TestGuard_Duplicate(t *testing.T) {
	s, mr := newTestStore(t)
	g := s.Guard(2*time.Second, 5*time.Minute)
	ctx := context.Background()

	assert.False(t, g.Duplicate(ctx, "psid-1", "mid.1"))
	assert.True(t, g.Duplicate(ctx, "psid-1", "mid.1"))
	assert.False(t, g.Duplicate(ctx, "psid-1", "mid.2"))

	mr.FastForward(6 * time.Minute)
	assert.False(t, g.Duplicate(ctx, "psid-1", "mid.1"))
}
