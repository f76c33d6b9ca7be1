// Package memory implements dht.Interface entirely in process memory. It
// is the reference DHT used by the pht package's tests; it makes no
// attempt at replication, persistence or peer discovery.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/prefixhashtree/pht-go/cryptoutil"
	"github.com/prefixhashtree/pht-go/dht"
)

// DHT is a synchronous, mutex-guarded, address -> []dht.Value map.
type DHT struct {
	mu     sync.Mutex
	values map[dht.Address][]dht.Value
	now    func() time.Time

	// Fail, if set, makes every subsequent Get/Put report ok=false
	// without touching storage. It exists to exercise the DHT-failure
	// paths of the lookup engine.
	Fail bool

	getCalls int
}

// New returns an empty in-memory DHT.
func New() *DHT {
	return &DHT{
		values: make(map[dht.Address][]dht.Value),
		now:    time.Now,
	}
}

var _ dht.Interface = (*DHT)(nil)

// Get implements dht.Interface.
func (d *DHT) Get(ctx context.Context, addr dht.Address, onValue dht.PerValue, done dht.GetDone, filter dht.Filter) {
	d.mu.Lock()
	d.getCalls++
	if d.Fail {
		d.mu.Unlock()
		if done != nil {
			done(false)
		}
		return
	}
	now := d.now()
	all := d.values[addr]
	kept := all[:0:0]
	var out []dht.Value
	for _, v := range all {
		if v.Expired(now) {
			continue
		}
		kept = append(kept, v)
		if filter == nil || filter(v.UserType) {
			out = append(out, v)
		}
	}
	d.values[addr] = kept
	d.mu.Unlock()

	for _, v := range out {
		select {
		case <-ctx.Done():
			if done != nil {
				done(false)
			}
			return
		default:
		}
		if onValue != nil && !onValue(v) {
			break
		}
	}
	if done != nil {
		done(true)
	}
}

// Put implements dht.Interface.
func (d *DHT) Put(ctx context.Context, addr dht.Address, v dht.Value, done dht.PutDone) {
	d.mu.Lock()
	if d.Fail {
		d.mu.Unlock()
		if done != nil {
			done(false)
		}
		return
	}
	d.values[addr] = append(d.values[addr], v)
	d.mu.Unlock()

	if done != nil {
		done(true)
	}
}

// Hash implements dht.Interface using cryptoutil.Digest over the raw bit
// bytes together with the significant bit count, so that two prefixes
// which share a byte-aligned length but differ in nbits never collide.
func (d *DHT) Hash(bits []byte, nbits int) dht.Address {
	digest := cryptoutil.Digest(bits, []byte{byte(nbits), byte(nbits >> 8)})
	var addr dht.Address
	copy(addr[:], digest)
	return addr
}

// GetCalls returns the number of Get calls issued so far. Exposed for
// tests asserting that a warm cache reduces the lookup engine's probe
// count relative to a cold one.
func (d *DHT) GetCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getCalls
}

// Snapshot returns the live (unexpired) values stored under addr. It exists for tests that assert on canary/entry placement without
// reaching into the DHT's internals.
func (d *DHT) Snapshot(addr dht.Address) []dht.Value {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	var out []dht.Value
	for _, v := range d.values[addr] {
		if !v.Expired(now) {
			out = append(out, v)
		}
	}
	return out
}
