package client

import (
	"encoding/json"
	"time"

	"github.com/prefixhashtree/pht-go/cryptoutil"
	"github.com/prefixhashtree/pht-go/dht"
)

// Wire types below mirror dht/node's message.go exactly: the two
// packages never import each other (a client has no business depending
// on a server's internals), so the JSON shape is duplicated rather than
// shared.
const (
	GetType = iota
	PutType
)

type request struct {
	Type int             `json:"type"`
	Body json.RawMessage `json:"body"`
}

type wireValue struct {
	UserType string    `json:"user_type"`
	Payload  []byte    `json:"payload"`
	Expire   time.Time `json:"expire,omitempty"`
}

func toWire(v dht.Value) wireValue {
	return wireValue{UserType: v.UserType, Payload: v.Payload, Expire: v.Expire}
}

func fromWire(w wireValue) dht.Value {
	return dht.Value{UserType: w.UserType, Payload: w.Payload, Expire: w.Expire}
}

type getRequest struct {
	Addr dht.Address `json:"addr"`
}

type getResponse struct {
	OK     bool        `json:"ok"`
	Values []wireValue `json:"values"`
}

type putRequest struct {
	Addr  dht.Address `json:"addr"`
	Value wireValue   `json:"value"`
}

type putResponse struct {
	OK bool `json:"ok"`
}

func marshalRequest(t int, body interface{}) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(request{Type: t, Body: b})
}

// hashBits reproduces dht/memory.DHT.Hash's addressing scheme, so a
// Client talking to a dht/node.Server addresses prefixes identically to
// an in-process dht/memory.DHT.
func hashBits(bits []byte, nbits int) dht.Address {
	digest := cryptoutil.Digest(bits, []byte{byte(nbits), byte(nbits >> 8)})
	var addr dht.Address
	copy(addr[:], digest)
	return addr
}
