// Package maintenance decides when the retention sweep should also run
// a storage compaction pass.
package maintenance

import (
	"math/rand"
	"sync"
)

// Policy is the compaction trigger abstraction. Implementations must be
// safe for concurrent use.
type Policy interface {
	ShouldCompact() bool
}

// IntervalPolicy compacts on every Nth invocation. Deterministic, so
// tests never depend on randomness.
type IntervalPolicy struct {
	mu    sync.Mutex
	every int
	count int
}

// NewIntervalPolicy creates a policy firing once per every invocations.
func NewIntervalPolicy(every int) *IntervalPolicy {
	if every < 1 {
		every = 1
	}
	return &IntervalPolicy{every: every}
}

func (p *IntervalPolicy) ShouldCompact() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++
	if p.count < p.every {
		return false
	}
	p.count = 0
	return true
}

// RandomPolicy compacts with 1-in-odds probability per invocation, the
// historical behavior of piggybacked maintenance.
type RandomPolicy struct {
	mu   sync.Mutex
	rng  *rand.Rand
	odds int
}

// NewRandomPolicy creates a policy with the given odds and source. A
// nil rng falls back to the shared global source.
func NewRandomPolicy(odds int, rng *rand.Rand) *RandomPolicy {
	if odds < 1 {
		odds = 1
	}
	return &RandomPolicy{rng: rng, odds: odds}
}

func (p *RandomPolicy) ShouldCompact() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rng != nil {
		return p.rng.Intn(p.odds) == 0
	}
	return rand.Intn(p.odds) == 0
}

// NeverPolicy disables compaction entirely.
type NeverPolicy struct{}

func (NeverPolicy) ShouldCompact() bool { return false }
