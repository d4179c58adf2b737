package redisstore

import (
	"context"
	"time"

	"github.com/suPer8Hu/ask-widget/internal/logx"
)

// Guard keeps the Messenger dedup and rate-limit windows in redis so several
// relay processes share them. Keys expire on their own.
type Guard struct {
	s          *Store
	rateWindow time.Duration
	dedupTTL   time.Duration
}

func (s *Store) Guard(rateWindow, dedupTTL time.Duration) *Guard {
	return &Guard{s: s, rateWindow: rateWindow, dedupTTL: dedupTTL}
}

// RateLimited reports whether psid already made a call inside the window.
// A call that is allowed opens a new window.
func (g *Guard) RateLimited(ctx context.Context, psid string) bool {
	ok, err := g.s.rdb.SetNX(ctx, g.s.prefix+"rl:"+psid, 1, g.rateWindow).Result()
	if err != nil {
		logx.Warnf("[redisstore.Guard] rate limit check failed psid=%s err=%v", psid, err)
		return false
	}
	return !ok
}

// Duplicate reports whether (psid, mid) was already seen inside the dedup TTL.
func (g *Guard) Duplicate(ctx context.Context, psid, mid string) bool {
	ok, err := g.s.rdb.SetNX(ctx, g.s.prefix+"mid:"+psid+":"+mid, 1, g.dedupTTL).Result()
	if err != nil {
		logx.Warnf("[redisstore.Guard] dedup check failed psid=%s mid=%s err=%v", psid, mid, err)
		return false
	}
	return !ok
}
