package memory

import (
	"context"
	"testing"
	"time"

	"github.com/prefixhashtree/pht-go/dht"
)

func TestPutGetRoundTrip(t *testing.T) {
	d := New()
	ctx := context.Background()
	addr := d.Hash([]byte{0x80}, 1)

	var putOK bool
	d.Put(ctx, addr, dht.Value{UserType: "idx", Payload: []byte("a")}, func(ok bool) { putOK = ok })
	if !putOK {
		t.Fatal("Put reported failure")
	}

	var got []dht.Value
	var getOK bool
	d.Get(ctx, addr, func(v dht.Value) bool {
		got = append(got, v)
		return true
	}, func(ok bool) { getOK = ok }, nil)

	if !getOK {
		t.Fatal("Get reported failure")
	}
	if len(got) != 1 || string(got[0].Payload) != "a" {
		t.Fatalf("Get() = %v, want one value with payload %q", got, "a")
	}
}

func TestGetFiltersByUserType(t *testing.T) {
	d := New()
	ctx := context.Background()
	addr := d.Hash([]byte{0x00}, 1)

	d.Put(ctx, addr, dht.Value{UserType: "idxA"}, nil)
	d.Put(ctx, addr, dht.Value{UserType: "idxB"}, nil)

	var got []dht.Value
	d.Get(ctx, addr, func(v dht.Value) bool {
		got = append(got, v)
		return true
	}, func(bool) {}, func(userType string) bool { return userType == "idxA" })

	if len(got) != 1 || got[0].UserType != "idxA" {
		t.Fatalf("filter let through %v, want only idxA", got)
	}
}

func TestExpiredValuesAreNotReturned(t *testing.T) {
	d := New()
	ctx := context.Background()
	addr := d.Hash([]byte{0x00}, 1)

	d.Put(ctx, addr, dht.Value{UserType: "idx", Expire: time.Now().Add(-time.Second)}, nil)

	var got []dht.Value
	d.Get(ctx, addr, func(v dht.Value) bool {
		got = append(got, v)
		return true
	}, func(bool) {}, nil)

	if len(got) != 0 {
		t.Fatalf("expired value returned: %v", got)
	}
}

func TestFailModeSurfacesNotOK(t *testing.T) {
	d := New()
	d.Fail = true
	ctx := context.Background()
	addr := d.Hash([]byte{0x00}, 1)

	var getOK, putOK = true, true
	d.Get(ctx, addr, nil, func(ok bool) { getOK = ok }, nil)
	d.Put(ctx, addr, dht.Value{}, func(ok bool) { putOK = ok })

	if getOK || putOK {
		t.Fatal("Fail mode should surface ok=false for both Get and Put")
	}
}

func TestHashDeterministicAndBitCountSensitive(t *testing.T) {
	d := New()
	a := d.Hash([]byte{0x80}, 1)
	b := d.Hash([]byte{0x80}, 1)
	if a != b {
		t.Fatal("Hash is not deterministic")
	}
	c := d.Hash([]byte{0x80}, 2)
	if a == c {
		t.Fatal("Hash collided across different significant bit counts")
	}
}
