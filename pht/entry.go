package pht

import (
	"encoding/json"

	"github.com/prefixhashtree/pht-go/dht"
)

// canarySuffix distinguishes a canary's UserType tag ("<name>/canary")
// from an IndexEntry's ("<name>"). indexFilter admits exactly these two
// tags, and a per-value callback tells them apart cheaply, without
// decoding a payload, by comparing the exact tag.
const canarySuffix = "/canary"

// IndexEntry is the record an insert stores in the DHT: the
// indexed item's full binary key, the opaque application value, and the
// index name it belongs to. On the wire, name is carried as the value's
// UserType side channel, not inside Payload, so a DHT peer can filter on
// it without decoding JSON.
type IndexEntry struct {
	Prefix []byte `json:"prefix"`
	Value  []byte `json:"value"`
	Name   string `json:"-"`
}

// entryWire is IndexEntry's Payload encoding; Name is excluded because it
// travels as the dht.Value.UserType instead.
type entryWire struct {
	Prefix []byte `json:"prefix"`
	Value  []byte `json:"value"`
}

// packValue serializes the entry into a dht.Value, following the pattern
// of a type controlling its own user_type tag on the wire.
func (e IndexEntry) packValue() (dht.Value, error) {
	payload, err := json.Marshal(entryWire{Prefix: e.Prefix, Value: e.Value})
	if err != nil {
		return dht.Value{}, err
	}
	return dht.Value{UserType: e.Name, Payload: payload}, nil
}

// unpackIndexEntry decodes a dht.Value known to carry an IndexEntry
// (i.e. not a canary) into an IndexEntry. The Name field is recovered
// from the value's UserType.
func unpackIndexEntry(v dht.Value) (IndexEntry, error) {
	var w entryWire
	if err := json.Unmarshal(v.Payload, &w); err != nil {
		return IndexEntry{}, err
	}
	return IndexEntry{Prefix: w.Prefix, Value: w.Value, Name: v.UserType}, nil
}

// canaryTag returns the UserType tag that marks a DHT value as a canary
// for the named index: "a PHT node of index name lives here".
func canaryTag(name string) string {
	return name + canarySuffix
}

// isCanary reports whether a value's UserType marks it as a canary for
// the named index.
func isCanary(name, userType string) bool {
	return userType == canaryTag(name)
}

// canaryValue is the empty-payload sentinel record put at a DHT address
// to mark it as belonging to this PHT.
func canaryValue(name string) dht.Value {
	return dht.Value{UserType: canaryTag(name)}
}

// indexFilter admits both an index's IndexEntry values and its canaries.
// The match is exact-or-canary rather than a byte-prefix test, because Go
// string equality is as cheap as strings.HasPrefix and avoids one index's
// name being a literal prefix of another's.
func indexFilter(name string) dht.Filter {
	tag := canaryTag(name)
	return func(userType string) bool {
		return userType == name || userType == tag
	}
}
