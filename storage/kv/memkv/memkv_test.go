package memkv

import (
	"bytes"
	"testing"

	"github.com/prefixhashtree/pht-go/storage/kv"
)

func TestPutGet(t *testing.T) {
	db := New()
	defer db.Close()

	if err := db.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("Get() = %q, want %q", got, "v1")
	}
}

func TestGetMissingKey(t *testing.T) {
	db := New()
	defer db.Close()

	if _, err := db.Get([]byte("nope")); err != db.ErrNotFound() {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	db := New()
	defer db.Close()

	db.Put([]byte("k1"), []byte("v1"))
	if err := db.Delete([]byte("k1")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Get([]byte("k1")); err != db.ErrNotFound() {
		t.Fatalf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestBatchWrite(t *testing.T) {
	db := New()
	defer db.Close()

	db.Put([]byte("keep"), []byte("orig"))

	b := db.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("keep"))
	if err := db.Write(b); err != nil {
		t.Fatal(err)
	}

	if v, _ := db.Get([]byte("a")); !bytes.Equal(v, []byte("1")) {
		t.Fatalf("a = %q, want 1", v)
	}
	if v, _ := db.Get([]byte("b")); !bytes.Equal(v, []byte("2")) {
		t.Fatalf("b = %q, want 2", v)
	}
	if _, err := db.Get([]byte("keep")); err != db.ErrNotFound() {
		t.Fatal("keep should have been deleted by the batch")
	}
}

func TestIteratorOrderedAndRanged(t *testing.T) {
	db := New()
	defer db.Close()

	for _, k := range []string{"a", "b", "c", "d"} {
		db.Put([]byte(k), []byte(k+k))
	}

	it := db.NewIterator(nil)
	defer it.Release()
	var got []string
	for it.First(); ; {
		got = append(got, string(it.Key()))
		if !it.Next() {
			break
		}
	}
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	rit := db.NewIterator(kv.BytesPrefix([]byte("b")))
	defer rit.Release()
	if !rit.First() || string(rit.Key()) != "b" {
		t.Fatalf("ranged iterator should start at %q", "b")
	}
	if rit.Next() {
		t.Fatalf("ranged iterator should contain only %q, got extra key %q", "b", rit.Key())
	}
}
