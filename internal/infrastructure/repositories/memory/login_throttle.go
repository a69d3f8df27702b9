package memory

import (
	"context"
	"sync"
	"time"

	"camsignal/internal/core/ports"
)

// MemoryLoginThrottle is the single-process fallback when Redis is not
// configured. Counters reset on restart, which is acceptable for the
// deployment this targets.
type MemoryLoginThrottle struct {
	maxAttempts int
	window      time.Duration
	lockout     time.Duration

	mu      sync.Mutex
	entries map[string]*throttleEntry
}

type throttleEntry struct {
	failures    []time.Time
	lockedUntil time.Time
}

func NewMemoryLoginThrottle(maxAttempts int, window, lockout time.Duration) ports.LoginThrottle {
	return &MemoryLoginThrottle{
		maxAttempts: maxAttempts,
		window:      window,
		lockout:     lockout,
		entries:     make(map[string]*throttleEntry),
	}
}

func (t *MemoryLoginThrottle) key(username, ip string) string {
	return username + "|" + ip
}

func (t *MemoryLoginThrottle) Allow(ctx context.Context, username, ip string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[t.key(username, ip)]
	if !exists {
		return true, nil
	}
	return time.Now().After(entry.lockedUntil), nil
}

func (t *MemoryLoginThrottle) RecordFailure(ctx context.Context, username, ip string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := t.key(username, ip)
	entry, exists := t.entries[key]
	if !exists {
		entry = &throttleEntry{}
		t.entries[key] = entry
	}

	now := time.Now()
	cutoff := now.Add(-t.window)
	recent := entry.failures[:0]
	for _, ts := range entry.failures {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	entry.failures = append(recent, now)

	if len(entry.failures) >= t.maxAttempts {
		entry.lockedUntil = now.Add(t.lockout)
	}
	return nil
}

func (t *MemoryLoginThrottle) Reset(ctx context.Context, username, ip string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, t.key(username, ip))
	return nil
}

func (t *MemoryLoginThrottle) Window() time.Duration {
	return t.window
}
