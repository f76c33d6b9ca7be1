// Package pht implements a Prefix Hash Tree: a trie-structured index
// layered on top of a generic key/value DHT (see the dht package). It
// maps application keys, already linearized to bit prefixes by the
// caller, onto DHT addresses derived from prefixes of those bits, and
// offers ordered-range and prefix lookups over a DHT that natively
// offers only point lookups.
//
// The four moving parts are the binary-search lookup engine (lookup.go),
// the client-side trie cache that seeds it (cache.go), the canary
// protocol peers use to recognize a PHT node from an ordinary DHT entry
// (canary.go), and the insert/split policy that keeps a leaf's
// occupancy bounded (insert.go).
package pht

import (
	"time"

	"github.com/prefixhashtree/pht-go/dht"
)

// Options configures a PHT instance's tunables. A zero Options
// selects the package defaults.
type Options struct {
	MaxElement        int
	NodeExpireTime    time.Duration
	MaxNodeEntryCount int
	CanaryClimbProb   float64
}

// DefaultMaxNodeEntryCount is the bucket capacity before a leaf splits.
const DefaultMaxNodeEntryCount = 100

func (o Options) withDefaults() Options {
	if o.MaxElement <= 0 {
		o.MaxElement = DefaultMaxElement
	}
	if o.NodeExpireTime <= 0 {
		o.NodeExpireTime = DefaultNodeExpireTime
	}
	if o.MaxNodeEntryCount <= 0 {
		o.MaxNodeEntryCount = DefaultMaxNodeEntryCount
	}
	if o.CanaryClimbProb <= 0 {
		o.CanaryClimbProb = DefaultCanaryClimbProb
	}
	return o
}

// PHT is the public facade: a named index over a dht.Interface,
// backed by a client-local trie Cache. A PHT holds no other state — in
// particular it does not track IndexEntries once put, since ownership of
// stored records passes to the DHT.
type PHT struct {
	dht               dht.Interface
	name              string
	cache             *Cache
	maxNodeEntryCount int
	canaryClimbProb   float64
}

// New builds a PHT named name over d. name is carried as the DHT
// side-channel tag on every value this instance writes or filters on, so
// distinct PHTs sharing one DHT never see each other's records.
func New(d dht.Interface, name string, opts Options) *PHT {
	opts = opts.withDefaults()
	return &PHT{
		dht:               d,
		name:              name,
		cache:             NewCache(opts.MaxElement, opts.NodeExpireTime),
		maxNodeEntryCount: opts.MaxNodeEntryCount,
		canaryClimbProb:   opts.CanaryClimbProb,
	}
}

// Name returns the index name this PHT was constructed with.
func (t *PHT) Name() string {
	return t.name
}

// hashPrefix addresses p through the DHT collaborator's own Hash, rather
// than each caller deriving an address independently, so a networked
// dht.Interface implementation and this package always agree on where a
// given prefix lives.
func (t *PHT) hashPrefix(p Prefix) dht.Address {
	bits, nbits := p.Canonical()
	return t.dht.Hash(bits, nbits)
}
