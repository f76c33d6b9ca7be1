// Package dht defines the interface a Prefix Hash Tree consumes to talk to
// an underlying key/value Distributed Hash Table. It intentionally says nothing about how a value reaches
// its address, how peers are discovered, or how the store is replicated:
// those concerns belong to a concrete implementation (dht/memory for a
// single process, dht/node + dht/client for a networked peer).
package dht

import (
	"context"
	"time"
)

// AddressSize is the width, in bytes, of a DHT address. It matches the
// output size of cryptoutil.Digest, since addresses are always produced by
// hashing a canonicalized bit string.
const AddressSize = 32

// Address is a DHT storage location: the hash of a canonicalized prefix
// bit string.
type Address [AddressSize]byte

// Value is a single record stored at a DHT address. UserType is the
// side-channel tag that lets a Get filter admit only values
// belonging to a given PHT index without decoding every payload; Payload
// is the opaque serialization of either an IndexEntry or an empty Canary.
// Expire is when the DHT is free to garbage-collect the value; a zero
// Expire means "no expiry; put explicitly to refresh".
type Value struct {
	UserType string
	Payload  []byte
	Expire   time.Time
}

// Expired reports whether v's TTL has passed as of now.
func (v Value) Expired(now time.Time) bool {
	return !v.Expire.IsZero() && now.After(v.Expire)
}

// Filter decides, from a value's UserType alone, whether Get should stream
// that value to the caller. It exists so a DHT node never needs to decode
// a payload just to reject it.
type Filter func(userType string) bool

// PerValue is invoked once per value admitted by a Get's Filter. Returning
// false requests early termination of the stream (the DHT is free to
// ignore this and finish delivering already-buffered values).
type PerValue func(v Value) bool

// GetDone is invoked exactly once when a Get's stream is exhausted.
// ok is false if the underlying operation failed before it could be
// determined whether matching values exist.
type GetDone func(ok bool)

// PutDone is invoked at most once when a Put completes or fails.
type PutDone func(ok bool)

// Interface is the DHT collaborator a Prefix Hash Tree depends on. All
// three methods are asynchronous: Get and Put return immediately and
// report completion through their callbacks, which may be invoked from an
// arbitrary goroutine (a networked implementation dispatches per
// connection). Hash is synchronous and pure.
type Interface interface {
	// Get streams every value stored at addr whose UserType is accepted
	// by filter to onValue, in arbitrary order, then invokes done exactly
	// once.
	Get(ctx context.Context, addr Address, onValue PerValue, done GetDone, filter Filter)

	// Put stores v at addr. If done is non-nil it is invoked exactly once
	// with the outcome. Put does not overwrite other values already
	// stored at addr; a DHT address holds a set of values, not one.
	Put(ctx context.Context, addr Address, v Value, done PutDone)

	// Hash maps a canonical bit-string encoding to a DHT address. nbits
	// is the number of significant bits in bits (the last byte may be
	// partially filled); implementations must be deterministic across
	// peers so that two nodes hashing the same prefix agree on its
	// address.
	Hash(bits []byte, nbits int) Address
}
