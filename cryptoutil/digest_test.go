package cryptoutil

import (
	"bytes"
	"testing"
)

func TestDigestDeterministic(t *testing.T) {
	a := Digest([]byte("prefix"), []byte("1011"))
	b := Digest([]byte("prefix"), []byte("1011"))
	if !bytes.Equal(a, b) {
		t.Fatal("Digest is not deterministic across identical inputs")
	}
	if len(a) != HashSizeByte {
		t.Fatalf("Digest length = %d, want %d", len(a), HashSizeByte)
	}
}

func TestDigestSensitiveToInput(t *testing.T) {
	a := Digest([]byte("10"))
	b := Digest([]byte("11"))
	if bytes.Equal(a, b) {
		t.Fatal("Digest collided on distinct bit prefixes")
	}
}

func TestMakeRand(t *testing.T) {
	r, err := MakeRand()
	if err != nil {
		t.Fatal(err)
	}
	if len(r) != HashSizeByte {
		t.Fatal("MakeRand didn't hash its output through Digest")
	}
}
