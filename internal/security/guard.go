// Package security tracks failed admin authentication per client address.
package security

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxFailures = 5
	DefaultWindow      = 15 * time.Minute
	DefaultLockout     = 5 * time.Minute
	cleanupInterval    = 60 * time.Second
	maxTrackedClients  = 10000
)

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

// FailureGuard locks out clients that fail admin authentication too often
// within a sliding window.
type FailureGuard struct {
	mu          sync.Mutex
	records     map[string]*failureRecord
	log         *logrus.Logger
	maxFailures int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

// Option configures a FailureGuard.
type Option func(*FailureGuard)

// WithLimits overrides the failure threshold, tracking window and lockout.
func WithLimits(maxFailures int, window, lockout time.Duration) Option {
	return func(g *FailureGuard) {
		g.maxFailures = maxFailures
		g.window = window
		g.lockout = lockout
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *FailureGuard) { g.now = now }
}

// NewFailureGuard creates a guard and starts a cleanup goroutine that stops
// when ctx is cancelled.
func NewFailureGuard(ctx context.Context, log *logrus.Logger, opts ...Option) *FailureGuard {
	g := &FailureGuard{
		records:     make(map[string]*failureRecord),
		log:         log,
		maxFailures: DefaultMaxFailures,
		window:      DefaultWindow,
		lockout:     DefaultLockout,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(g)
	}

	go g.cleanupLoop(ctx)

	return g
}

// IsBlocked reports whether client is currently locked out.
func (g *FailureGuard) IsBlocked(client string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[client]
	if !ok || rec.lockedAt.IsZero() {
		return false
	}

	return g.now().Sub(rec.lockedAt) < g.lockout
}

// RecordFailure counts one failed attempt for client.
func (g *FailureGuard) RecordFailure(client string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[client]
	if !ok || now.Sub(rec.firstFail) > g.window {
		g.records[client] = &failureRecord{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= g.maxFailures && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithFields(logrus.Fields{
			"client_ip": client,
			"attempts":  rec.attempts,
		}).Warn("client locked out after repeated admin auth failures")
	}
}

// Reset clears tracking for client after a successful authentication.
func (g *FailureGuard) Reset(client string) {
	g.mu.Lock()
	delete(g.records, client)
	g.mu.Unlock()
}

// Tracked returns the number of clients with recorded failures.
func (g *FailureGuard) Tracked() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.records)
}

func (g *FailureGuard) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep drops expired lockouts and stale windows, then caps the table size.
func (g *FailureGuard) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, rec := range g.records {
		if !rec.lockedAt.IsZero() && now.Sub(rec.lockedAt) >= g.lockout {
			delete(g.records, k)
		} else if rec.lockedAt.IsZero() && now.Sub(rec.firstFail) >= g.window {
			delete(g.records, k)
		}
	}

	if over := len(g.records) - maxTrackedClients; over > 0 {
		g.evictOldest(over)
	}
}

// evictOldest removes the n records with the oldest first failure.
// Caller must hold g.mu.
func (g *FailureGuard) evictOldest(n int) {
	keys := make([]string, 0, len(g.records))
	for k := range g.records {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b string) int {
		return g.records[a].firstFail.Compare(g.records[b].firstFail)
	})

	for _, k := range keys[:n] {
		delete(g.records, k)
	}
}
