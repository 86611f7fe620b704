package cart

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultIdleTTL   = 2 * time.Hour
	defaultSweepTick = time.Minute
)

type session struct {
	owner    string
	cart     *Cart
	lastSeen time.Time
}

// Sessions hands every page session its own Cart. Carts live in memory only
// and are forgotten once a session has been idle for longer than the TTL.
type Sessions struct {
	mu  sync.Mutex
	m   map[string]*session
	ttl time.Duration
	now func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Sessions{
		m:   make(map[string]*session),
		ttl: ttl,
		now: time.Now,
	}
}

// Update applies fn to the session's cart while holding the registry lock, so
// one request's change is never interleaved with another's. An empty cart is
// created on first use, and again whenever owner differs from the owner the
// cart was created for. fn must not keep the pointer.
func (s *Sessions) Update(id, owner string, fn func(c *Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ss, ok := s.m[id]
	if !ok || ss.owner != owner {
		ss = &session{owner: owner, cart: New()}
		s.m[id] = ss
	}
	ss.lastSeen = s.now()
	fn(ss.cart)
}

func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Sweep evicts sessions idle since before now-ttl and reports how many went.
func (s *Sessions) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, ss := range s.m {
		if ss.lastSeen.Before(cutoff) {
			delete(s.m, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep periodically until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, log *zap.Logger) {
	t := time.NewTicker(defaultSweepTick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Sweep(now); n > 0 && log != nil {
				log.Debug("cart sessions evicted", zap.Int("count", n))
			}
		}
	}
}
