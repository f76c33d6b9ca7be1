package pht

import (
	"context"
	"testing"

	"github.com/prefixhashtree/pht-go/dht/memory"
)

func insertSync(t *testing.T, tree *PHT, key Prefix, value []byte) {
	t.Helper()
	ctx := context.Background()
	done := make(chan bool, 1)
	tree.Insert(ctx, key, value, func(ok bool) { done <- ok })
	if !<-done {
		t.Fatalf("Insert(%v) reported failure", key.Content())
	}
}

func lookupSync(t *testing.T, tree *PHT, key Prefix, exact bool) ([]IndexEntry, Prefix, bool) {
	t.Helper()
	ctx := context.Background()
	var vals []IndexEntry
	var matched Prefix
	done := make(chan bool, 1)
	tree.Lookup(ctx, key, exact, func(v []IndexEntry, m Prefix) {
		vals = v
		matched = m
	}, func(ok bool) { done <- ok })
	return vals, matched, <-done
}

func TestColdCacheSingleInsertRoundTrips(t *testing.T) {
	d := memory.New()
	tree := New(d, "idx", Options{})
	key := NewPrefix([]byte{0b10110000})

	insertSync(t, tree, key, []byte("a"))

	vals, matched, ok := lookupSync(t, tree, key, true)
	if !ok {
		t.Fatal("lookup reported failure")
	}
	if matched.Size() != 0 {
		t.Fatalf("matched prefix size = %d, want 0 (cold empty DHT collapses to the root)", matched.Size())
	}
	if len(vals) != 1 || string(vals[0].Value) != "a" {
		t.Fatalf("lookup vals = %v, want one entry with value %q", vals, "a")
	}

	rootAddr := d.Hash(key.GetPrefix(0).Canonical())
	if len(d.Snapshot(rootAddr)) == 0 {
		t.Fatal("expected a canary or entry at hash(\"\")")
	}
}

func TestSplitDeepensOnlyTheNewEntry(t *testing.T) {
	d := memory.New()
	tree := New(d, "idx", Options{MaxNodeEntryCount: 2})

	// Three keys sharing a leading "1" bit.
	k1 := NewPrefix([]byte{0b10000000})
	k2 := NewPrefix([]byte{0b10010000})
	k3 := NewPrefix([]byte{0b10100000})

	insertSync(t, tree, k1, []byte("v1"))
	insertSync(t, tree, k2, []byte("v2"))
	insertSync(t, tree, k3, []byte("v3"))

	vals, _, ok := lookupSync(t, tree, k3, true)
	if !ok {
		t.Fatal("lookup reported failure")
	}
	found := false
	for _, e := range vals {
		if string(e.Value) == "v3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("exact lookup for k3 did not return v3: %v", vals)
	}
}

// TestInexactFallbackFindsClosestEntry covers a query
// that shares no meaningful prefix with the single stored key but still gets
// that entry back, tagged with however many bits they actually share.
// With only one PHT node in existence (the root — see
// TestColdCacheSingleInsertRoundTrips for why a lone insert always lands
// there) the entry surfaces directly out of the root probe here rather
// than by way of the sibling restart; TestSplitDeepensOnlyTheNewEntry
// exercises the deeper, multi-node shape of the tree.
func TestInexactFallbackFindsClosestEntry(t *testing.T) {
	d := memory.New()
	tree := New(d, "idx", Options{})

	stored := NewPrefix([]byte{0b11110000})
	insertSync(t, tree, stored, []byte("stored"))

	query := NewPrefix([]byte{0b10000000})
	vals, _, ok := lookupSync(t, tree, query, false)
	if !ok {
		t.Fatal("lookup reported failure")
	}
	if len(vals) != 1 || string(vals[0].Value) != "stored" {
		t.Fatalf("inexact lookup = %v, want the sole stored entry from the root probe", vals)
	}
}

// TestInexactFallbackRestartsIntoSiblingSubtree exercises the multi-node
// shape scenario 4 describes: the queried branch's own leaf holds no
// entry (only a canary marking the split boundary), and the answer lives
// across the tree in the sibling subtree. A cold binary search first
// converges on the empty "0" branch, then must restart the search in that
// branch's sibling, the "1" branch, to find storedB.
func TestInexactFallbackRestartsIntoSiblingSubtree(t *testing.T) {
	d := memory.New()
	tree := New(d, "idx", Options{MaxNodeEntryCount: 1})

	// storedA stays at the root on insert (first entry ever written);
	// storedB's insert finds the root already at capacity and splits,
	// moving only storedB one bit deeper to the "1" branch. Inserting
	// storedB also plants an unconditional canary at the "1" branch's
	// sibling ("0"), so a search walking the "0" branch sees a PHT node
	// there but finds no entries once it commits a leaf.
	storedA := NewPrefix([]byte{0b00000000})
	storedB := NewPrefix([]byte{0b10000000})
	insertSync(t, tree, storedA, []byte("vA"))
	insertSync(t, tree, storedB, []byte("vB"))

	// query shares storedA's leading "0" bit but diverges after that, so
	// its own branch's leaf (depth 1, prefix "0") is empty and only the
	// sibling restart into the "1" branch can produce a result.
	query := NewPrefix([]byte{0b01000000})
	vals, _, ok := lookupSync(t, tree, query, false)
	if !ok {
		t.Fatal("lookup reported failure")
	}
	if len(vals) != 1 || string(vals[0].Value) != "vB" {
		t.Fatalf("inexact lookup via sibling restart = %v, want the entry stored in the sibling subtree (vB)", vals)
	}
}

func TestDHTFailureSurfacesDoneFalse(t *testing.T) {
	d := memory.New()
	tree := New(d, "idx", Options{})
	d.Fail = true

	_, _, ok := lookupSync(t, tree, NewPrefix([]byte{0x80}), true)
	if ok {
		t.Fatal("lookup should have failed when the DHT fails every call")
	}
}

func TestCacheHitReducesProbeCount(t *testing.T) {
	// Force a split on the second insert so the tree grows past a bare
	// root: k1 and k2 diverge on their very first bit.
	d := memory.New()
	tree := New(d, "idx", Options{MaxNodeEntryCount: 1})
	k1 := NewPrefix([]byte{0b00000000})
	k2 := NewPrefix([]byte{0b10000000})

	insertSync(t, tree, k1, []byte("v1"))
	insertSync(t, tree, k2, []byte("v2"))

	// The insert path only ever caches where its own probing found a
	// PHT node, not the split-adjusted write target, so the cache still
	// only knows the root at this point: the first standalone lookup for
	// k2 has to rediscover depth 1 itself.
	before := d.GetCalls()
	vals, matched, ok := lookupSync(t, tree, k2, true)
	if !ok || len(vals) != 1 || string(vals[0].Value) != "v2" {
		t.Fatalf("first lookup for k2 = (%v, ok=%v), want [v2]", vals, ok)
	}
	if matched.Size() == 0 {
		t.Fatal("expected the split to have pushed k2 below the root")
	}
	cold := d.GetCalls() - before

	before = d.GetCalls()
	vals, _, ok = lookupSync(t, tree, k2, true)
	if !ok || len(vals) != 1 || string(vals[0].Value) != "v2" {
		t.Fatalf("second lookup for k2 = (%v, ok=%v), want [v2]", vals, ok)
	}
	warm := d.GetCalls() - before

	if warm >= cold {
		t.Fatalf("warm lookup issued %d probes, cold lookup issued %d; expected the cache hint to make the warm one cheaper", warm, cold)
	}
}
