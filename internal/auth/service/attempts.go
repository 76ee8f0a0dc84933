package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/tollgate/pkg/slogx"
)

// Gate defaults.
const (
	DefaultAttemptThreshold = 3
	DefaultAttemptWindow    = 15 * time.Minute
)

// AttemptGate counts failed attempts per client IP and decides when a
// captcha challenge is required.
type AttemptGate interface {
	RecordFailure(ctx context.Context, ip string)
	IsChallengeRequired(ctx context.Context, ip string) bool
	Reset(ctx context.Context, ip string)

	// Sweep drops expired counters and reports how many it removed.
	Sweep(ctx context.Context) int
}

// AttemptPolicy: a challenge is required once Threshold failures were
// recorded with no gap longer than Window between them.
type AttemptPolicy struct {
	Threshold int
	Window    time.Duration
}

func (p AttemptPolicy) withDefaults() AttemptPolicy {
	if p.Threshold <= 0 {
		p.Threshold = DefaultAttemptThreshold
	}
	if p.Window <= 0 {
		p.Window = DefaultAttemptWindow
	}
	return p
}

type attemptEntry struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// MemoryAttemptGate keeps counters in process memory, so the threshold
// applies per instance.
type MemoryAttemptGate struct {
	policy AttemptPolicy
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*attemptEntry
}

func NewMemoryAttemptGate(policy AttemptPolicy) *MemoryAttemptGate {
	return &MemoryAttemptGate{
		policy:  policy.withDefaults(),
		now:     time.Now,
		entries: make(map[string]*attemptEntry),
	}
}

// WithClock replaces the gate's clock. Intended for tests.
func (g *MemoryAttemptGate) WithClock(now func() time.Time) *MemoryAttemptGate {
	g.now = now
	return g
}

func (g *MemoryAttemptGate) expired(e *attemptEntry, now time.Time) bool {
	return now.Sub(e.lastSeen) > g.policy.Window
}

func (g *MemoryAttemptGate) RecordFailure(_ context.Context, ip string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[ip]
	if !ok || g.expired(e, now) {
		e = &attemptEntry{firstSeen: now}
		g.entries[ip] = e
	}
	e.count++
	e.lastSeen = now
}

func (g *MemoryAttemptGate) IsChallengeRequired(_ context.Context, ip string) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[ip]
	if !ok {
		return false
	}
	if g.expired(e, now) {
		delete(g.entries, ip)
		return false
	}
	return e.count >= g.policy.Threshold
}

func (g *MemoryAttemptGate) Reset(_ context.Context, ip string) {
	g.mu.Lock()
	delete(g.entries, ip)
	g.mu.Unlock()
}

func (g *MemoryAttemptGate) Sweep(_ context.Context) int {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for ip, e := range g.entries {
		if g.expired(e, now) {
			delete(g.entries, ip)
			removed++
		}
	}
	return removed
}

// Len is the number of live counters.
func (g *MemoryAttemptGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// RedisAttemptGate shares counters across instances. Every failure pushes
// the key's expiry out by the window, so Redis does the sweeping. Store
// errors fail open.
type RedisAttemptGate struct {
	client    redis.UniversalClient
	action    string
	policy    AttemptPolicy
	opTimeout time.Duration
}

// NewRedisAttemptGate keys counters as ag:<action>:<ip>.
func NewRedisAttemptGate(client redis.UniversalClient, action string, policy AttemptPolicy, opTimeout time.Duration) *RedisAttemptGate {
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}
	return &RedisAttemptGate{
		client:    client,
		action:    action,
		policy:    policy.withDefaults(),
		opTimeout: opTimeout,
	}
}

func (g *RedisAttemptGate) key(ip string) string {
	return "ag:" + g.action + ":" + ip
}

func (g *RedisAttemptGate) RecordFailure(ctx context.Context, ip string) {
	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	key := g.key(ip)
	_, err := g.client.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
		pipe.Incr(opCtx, key)
		pipe.Expire(opCtx, key, g.policy.Window)
		return nil
	})
	if err != nil {
		slogx.FromContext(ctx).Warn("attempt gate write failed", "action", g.action, "ip", ip, "err", err)
	}
}

func (g *RedisAttemptGate) IsChallengeRequired(ctx context.Context, ip string) bool {
	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	n, err := g.client.Get(opCtx, g.key(ip)).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slogx.FromContext(ctx).Warn("attempt gate read failed", "action", g.action, "ip", ip, "err", err)
		}
		return false
	}
	return n >= g.policy.Threshold
}

func (g *RedisAttemptGate) Reset(ctx context.Context, ip string) {
	opCtx, cancel := context.WithTimeout(ctx, g.opTimeout)
	defer cancel()

	if err := g.client.Del(opCtx, g.key(ip)).Err(); err != nil {
		slogx.FromContext(ctx).Warn("attempt gate reset failed", "action", g.action, "ip", ip, "err", err)
	}
}

// Sweep is a no-op: counters carry their own TTL.
func (g *RedisAttemptGate) Sweep(context.Context) int { return 0 }
