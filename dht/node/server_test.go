package node

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prefixhashtree/pht-go/dht"
	dhtclient "github.com/prefixhashtree/pht-go/dht/client"
	"github.com/prefixhashtree/pht-go/logging"
	"github.com/prefixhashtree/pht-go/storage/kv/memkv"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	sock := filepath.Join(dir, "phtnode.sock")

	s := NewServer(memkv.New(), logging.New(&logging.Config{Environment: "development"}))
	if err := s.ListenAndHandle(ServerAddress{Address: "unix://" + sock}); err != nil {
		t.Fatalf("ListenAndHandle: %v", err)
	}
	t.Cleanup(func() { s.Shutdown() })

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s, "unix://" + sock
}

func TestPutThenGetRoundTrips(t *testing.T) {
	_, addr := startTestServer(t)
	c := &dhtclient.Client{Addr: addr}
	ctx := context.Background()

	var a dht.Address
	a[0] = 0xAB

	putDone := make(chan bool, 1)
	c.Put(ctx, a, dht.Value{UserType: "idx", Payload: []byte("hello")}, func(ok bool) { putDone <- ok })
	if !<-putDone {
		t.Fatal("Put reported failure")
	}

	var got []dht.Value
	getDone := make(chan bool, 1)
	c.Get(ctx, a, func(v dht.Value) bool {
		got = append(got, v)
		return true
	}, func(ok bool) { getDone <- ok }, nil)
	if !<-getDone {
		t.Fatal("Get reported failure")
	}
	if len(got) != 1 || string(got[0].Payload) != "hello" || got[0].UserType != "idx" {
		t.Fatalf("Get returned %v, want one value {idx, hello}", got)
	}
}

func TestGetFiltersByUserType(t *testing.T) {
	_, addr := startTestServer(t)
	c := &dhtclient.Client{Addr: addr}
	ctx := context.Background()

	var a dht.Address
	a[0] = 0xCD

	for _, ut := range []string{"idx", "idx/canary"} {
		done := make(chan bool, 1)
		c.Put(ctx, a, dht.Value{UserType: ut}, func(ok bool) { done <- ok })
		<-done
	}

	var got []dht.Value
	done := make(chan bool, 1)
	c.Get(ctx, a, func(v dht.Value) bool {
		got = append(got, v)
		return true
	}, func(ok bool) { done <- ok }, func(userType string) bool {
		return userType == "idx"
	})
	<-done
	if len(got) != 1 || got[0].UserType != "idx" {
		t.Fatalf("filtered Get returned %v, want exactly the idx value", got)
	}
}

func TestSweepExpiredReclaimsPastTTLValues(t *testing.T) {
	s, addr := startTestServer(t)
	fixedNow := time.Now()
	s.now = func() time.Time { return fixedNow }

	c := &dhtclient.Client{Addr: addr}
	ctx := context.Background()

	var stale, fresh dht.Address
	stale[0] = 0x11
	fresh[0] = 0x22

	putDone := make(chan bool, 1)
	c.Put(ctx, stale, dht.Value{UserType: "idx", Payload: []byte("old"), Expire: fixedNow.Add(-time.Minute)}, func(ok bool) { putDone <- ok })
	<-putDone
	c.Put(ctx, fresh, dht.Value{UserType: "idx", Payload: []byte("new")}, func(ok bool) { putDone <- ok })
	<-putDone

	scanned, removed, err := s.SweepExpired(nil)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if scanned != 2 {
		t.Fatalf("scanned = %d, want 2", scanned)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	var got []dht.Value
	getDone := make(chan bool, 1)
	c.Get(ctx, stale, func(v dht.Value) bool {
		got = append(got, v)
		return true
	}, func(ok bool) { getDone <- ok }, nil)
	<-getDone
	if len(got) != 0 {
		t.Fatalf("stale address still holds %v after sweeping", got)
	}
}

func TestGetOnEmptyAddressReturnsOKNoValues(t *testing.T) {
	_, addr := startTestServer(t)
	c := &dhtclient.Client{Addr: addr}
	ctx := context.Background()

	var a dht.Address
	a[0] = 0xEE

	var got []dht.Value
	done := make(chan bool, 1)
	c.Get(ctx, a, func(v dht.Value) bool {
		got = append(got, v)
		return true
	}, func(ok bool) { done <- ok }, nil)
	if !<-done {
		t.Fatal("Get on an empty address should still report ok")
	}
	if len(got) != 0 {
		t.Fatalf("Get on an empty address returned %v, want none", got)
	}
}
