package pht

import (
	"context"
	"crypto/rand"

	"github.com/prefixhashtree/pht-go/dht"
)

// DefaultCanaryClimbProb is the probability that a canary put propagates
// one level up its ancestor chain.
const DefaultCanaryClimbProb = 0.5

// bernoulli draws a single fair(-ish) trial with probability p of true,
// using crypto/rand rather than math/rand so the climb resists an
// adversary who chooses keys to suppress canary refresh, which rules out
// a predictable or weakly-seeded generator.
func bernoulli(p float64) bool {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is a platform-level fault; fall back to the
		// conservative choice of not climbing rather than panicking.
		return false
	}
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}
	// u / 2^64 is uniform in [0, 1).
	const scale = 1 << 63
	return float64(u>>1)/float64(scale) < p
}

// updateCanary implements the two-part canary protocol: it plants a
// canary at hash(p), then probabilistically climbs p's ancestor chain
// (geometric walk, so the amortized cost per insert stays O(1) instead
// of O(depth)), and unconditionally plants one at p's sibling so that a
// binary search probing either side of depth |p| can detect a PHT node.
// Put failures are not retried: a missed canary only degrades the next
// lookup's search efficiency, it never corrupts data.
func (t *PHT) updateCanary(ctx context.Context, p Prefix) {
	t.plantCanary(ctx, p)
	if p.Size() > 0 {
		t.dht.Put(ctx, t.hashPrefix(p.GetSibling()), canaryValue(t.name), nil)
	}
}

// plantCanary puts a canary at hash(p) and, in the put's completion
// callback, climbs to p.GetPrefix(-1) with probability climbProb while p
// still has bits left to drop. The climb decision does not consult
// whether the put itself succeeded — a lost canary put is not retried
// here, and the reference climbs unconditionally on completion.
func (t *PHT) plantCanary(ctx context.Context, p Prefix) {
	t.dht.Put(ctx, t.hashPrefix(p), canaryValue(t.name), func(bool) {
		if p.Size() == 0 || !bernoulli(t.canaryClimbProb) {
			return
		}
		t.plantCanary(ctx, p.GetPrefix(-1))
	})
}

// probeIsCanary reports whether a value observed during a lookup probe
// is this index's canary.
func probeIsCanary(name string, v dht.Value) bool {
	return isCanary(name, v.UserType)
}
