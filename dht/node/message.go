package node

import (
	"encoding/json"
	"time"

	"github.com/prefixhashtree/pht-go/dht"
)

// Request and response message types, one per operation a DHT node
// serves.
const (
	GetType = iota
	PutType
)

// request is the envelope every wire message travels in: Type selects
// how Body is interpreted, decoding into a raw message first and the
// typed payload second.
type request struct {
	Type int             `json:"type"`
	Body json.RawMessage `json:"body"`
}

// wireValue is dht.Value's JSON wire encoding.
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

// getRequest asks for every (unexpired) value stored at Addr. A
// dht.Filter can't travel over the wire as data, so filtering by
// UserType happens client-side in dht/client once the full (small, since
// one address holds at most a handful of canaries/entries) value set
// arrives.
type getRequest struct {
	Addr dht.Address `json:"addr"`
}

// getResponse carries every unexpired value found at the requested
// address. OK is false only when the node failed to service the request
// at all (storage error), never merely because nothing was stored.
type getResponse struct {
	OK     bool        `json:"ok"`
	Values []wireValue `json:"values"`
}

// putRequest stores one value at Addr.
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
