package pht

import (
	"bytes"
	"context"
	"sync"

	"github.com/prefixhashtree/pht-go/dht"
)

// probeResult is one DHT get's contribution to a search step's joining
// decision: whether the get itself succeeded, and whether any
// value it streamed back carried this index's canary tag.
type probeResult struct {
	ok    bool
	isPHT bool
}

// search carries the state of one binary-search-over-prefix-length
// lookup. It is referenced by up to two concurrently
// outstanding probe callbacks at a time; valsMu guards the accumulated
// result set, which both probes of a step may write to concurrently.
type search struct {
	t         *PHT
	key       Prefix
	exact     bool
	allValues bool

	cb   func(vals []IndexEntry, matched Prefix)
	done func(ok bool)

	lo, hi int
	start  int // >= 0 overrides the next midpoint; -1 means "compute (lo+hi)/2"

	valsMu    sync.Mutex
	vals      []IndexEntry
	maxCommon int // meaningful only when !exact; -1 until the first inexact match

	restarted bool // sibling restart is single-shot

	finishOnce sync.Once
}

// newSearch seeds a search's depth bounds and cache hint: start is the client cache's best guess at a starting depth, or
// -1 on a cold cache, in which case the first probe falls back to the
// plain midpoint of [0, |key|].
func (t *PHT) newSearch(key Prefix, exact, allValues bool) *search {
	return &search{
		t:         t,
		key:       key,
		exact:     exact,
		allValues: allValues,
		lo:        0,
		hi:        key.Size(),
		start:     t.cache.Lookup(key),
		maxCommon: -1,
	}
}

// run drives the search to completion, invoking cb at most once with the
// final result set and matched prefix, then done exactly once.
func (s *search) run(ctx context.Context, cb func(vals []IndexEntry, matched Prefix), done func(ok bool)) {
	s.cb = cb
	s.done = done
	s.step(ctx)
}

// step enters the next round of the search: it computes this round's
// midpoint (consuming any pending start override), and if lo has
// already overtaken hi it treats that midpoint as a leaf without
// issuing any probe at all.
func (s *search) step(ctx context.Context) {
	mid := s.start
	if mid < 0 {
		mid = (s.lo + s.hi) / 2
	}
	s.start = -1
	if s.lo > s.hi {
		s.commitLeaf(ctx, mid)
		return
	}
	s.runStep(ctx, mid)
}

// secondSlot holds the second probe's outcome for the one case that
// needs it: the first probe found a canary, and only the second probe's
// result decides whether mid is a leaf or an interior node.
type secondSlot struct {
	mu      sync.Mutex
	done    bool
	res     probeResult
	onReady func(probeResult)
}

// runStep issues both probes of one step.
// Mirroring the reference lookupStep, the two probes are NOT
// symmetrically joined: if the first probe finds no canary, the search
// advances immediately without waiting for the second probe at all
// (whatever it eventually returns is discarded). Only when the first
// probe IS a canary does the decision wait on the second — or, when mid
// has reached the end of the key, treat the second as skipped and
// therefore not a canary.
func (s *search) runStep(ctx context.Context, mid int) {
	secondSkipped := mid >= s.key.Size()
	slot := &secondSlot{}

	if !secondSkipped {
		s.probeAt(ctx, mid+1, func(r probeResult) {
			slot.mu.Lock()
			slot.done = true
			slot.res = r
			onReady := slot.onReady
			slot.mu.Unlock()
			if onReady != nil {
				onReady(r)
			}
		})
	}

	s.probeAt(ctx, mid, func(first probeResult) {
		if !first.ok {
			s.finishFail()
			return
		}
		if !first.isPHT {
			s.hi = mid - 1
			s.step(ctx)
			return
		}

		decide := func(second probeResult) {
			if !second.ok {
				s.finishFail()
				return
			}
			if second.isPHT {
				s.lo = mid + 1
				s.step(ctx)
				return
			}
			s.commitLeaf(ctx, mid)
		}

		if secondSkipped {
			decide(probeResult{ok: true, isPHT: false})
			return
		}
		slot.mu.Lock()
		if slot.done {
			res := slot.res
			slot.mu.Unlock()
			decide(res)
		} else {
			slot.onReady = decide
			slot.mu.Unlock()
		}
	})
}

// probeAt issues one filtered DHT get at the address of key's prefix of
// the given depth, classifying every streamed value as it arrives
// (canary vs. IndexEntry, and if the latter, whether it matches per
// s.exact/s.allValues) before reporting whether the get itself
// succeeded and whether a canary was observed.
func (s *search) probeAt(ctx context.Context, depth int, cb func(probeResult)) {
	addr := s.t.hashPrefix(s.key.GetPrefix(depth))

	var mu sync.Mutex
	var sawCanary bool

	s.t.dht.Get(ctx, addr, func(v dht.Value) bool {
		if probeIsCanary(s.t.name, v) {
			mu.Lock()
			sawCanary = true
			mu.Unlock()
			return true
		}
		entry, err := unpackIndexEntry(v)
		if err != nil {
			// Protocol inconsistency: ignore, keep streaming.
			return true
		}
		s.recordMatch(entry)
		return true
	}, func(ok bool) {
		mu.Lock()
		res := probeResult{ok: ok, isPHT: sawCanary}
		mu.Unlock()
		cb(res)
	}, indexFilter(s.t.name))
}

// recordMatch applies the search's exact/inexact match rule to one
// decoded IndexEntry.
func (s *search) recordMatch(entry IndexEntry) {
	s.valsMu.Lock()
	defer s.valsMu.Unlock()

	if s.exact {
		if s.allValues || bytes.Equal(entry.Prefix, s.key.Content()) {
			s.vals = append(s.vals, entry)
		}
		return
	}

	c := CommonBits(NewPrefix(entry.Prefix), s.key.GetFullSize())
	switch {
	case len(s.vals) == 0:
		s.vals = append(s.vals, entry)
		s.maxCommon = c
	case c == s.maxCommon:
		s.vals = append(s.vals, entry)
	case c > s.maxCommon:
		s.vals = []IndexEntry{entry}
		s.maxCommon = c
	}
}

// commitLeaf treats mid as the deepest PHT node along key's chain. It
// updates the cache and, on an inexact search that came up empty,
// performs the single-shot sibling restart: the new search prefix
// becomes key's prefix of mid bits with its last bit flipped, extended
// back to full length, so every subsequent probe addresses the sibling
// subtree instead of re-walking the branch that just proved empty.
//
// Note: per original_source/src/indexation/pht.cpp, the reference
// triggers the restart and then unconditionally invokes cb/done_cb
// again immediately afterward with the (still empty) pre-restart
// result, so a restarted search there delivers its callbacks twice.
// That contradicts this package's contract of exactly one cb/done per
// search, so here the restart supersedes the pre-restart result instead
// of both firing — see DESIGN.md.
func (s *search) commitLeaf(ctx context.Context, mid int) {
	matched := s.key.GetPrefix(mid)
	s.t.cache.Insert(matched)

	s.valsMu.Lock()
	empty := len(s.vals) == 0
	s.valsMu.Unlock()

	if !s.exact && empty && mid > 0 && !s.restarted {
		s.restarted = true
		sibling := matched.GetSibling().GetFullSize()
		s.key = sibling
		s.lo = mid
		s.hi = sibling.Size()
		s.start = -1
		s.step(ctx)
		return
	}

	s.finishOK(matched)
}

func (s *search) finishOK(matched Prefix) {
	s.finishOnce.Do(func() {
		s.valsMu.Lock()
		vals := append([]IndexEntry(nil), s.vals...)
		s.valsMu.Unlock()
		if s.cb != nil {
			s.cb(vals, matched)
		}
		if s.done != nil {
			s.done(true)
		}
	})
}

func (s *search) finishFail() {
	s.finishOnce.Do(func() {
		if s.done != nil {
			s.done(false)
		}
	})
}

// Lookup runs an exact- or inexact-match search for key. cb
// is invoked at most once with the matched entries and the prefix at
// which they were found, before done is invoked exactly once with the
// overall success of the search.
func (t *PHT) Lookup(ctx context.Context, key Prefix, exact bool, cb func(vals []IndexEntry, matched Prefix), done func(ok bool)) {
	t.newSearch(key, exact, false).run(ctx, cb, done)
}
