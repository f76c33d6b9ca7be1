package pht

import (
	"context"
)

// Insert places (key, value) in the PHT. It first runs an exact,
// all-values lookup to find the leaf currently responsible for key; if
// that leaf already holds maxNodeEntryCount or more records it splits,
// moving only the new entry one bit deeper — existing entries at the
// shallower node are never rewritten, so a reader must keep probing
// along the chain to find every record for a name.
// It then refreshes canaries at the target prefix and puts the
// IndexEntry there.
func (t *PHT) Insert(ctx context.Context, key Prefix, value []byte, done func(ok bool)) {
	t.newSearch(key, true, true).run(ctx, func(vals []IndexEntry, matched Prefix) {
		final := matched
		if len(vals) >= t.maxNodeEntryCount {
			final = key.GetPrefix(matched.Size() + 1)
		}

		t.updateCanary(ctx, final)

		entry := IndexEntry{Prefix: key.Content(), Value: value, Name: t.name}
		wire, err := entry.packValue()
		if err != nil {
			if done != nil {
				done(false)
			}
			return
		}
		t.dht.Put(ctx, t.hashPrefix(final), wire, done)
	}, func(ok bool) {
		if !ok && done != nil {
			done(false)
		}
	})
}
