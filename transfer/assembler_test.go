package transfer

import (
	"bytes"
	"errors"
	"testing"
)

func TestReassemblyAnyOrder(t *testing.T) {
	a := NewAssembler()

	if err := a.AddChunk("f.bin", 2, 3, []byte("cc")); err != nil {
		t.Fatal(err)
	}
	if err := a.AddChunk("f.bin", 0, 3, []byte("aa")); err != nil {
		t.Fatal(err)
	}
	if err := a.AddChunk("f.bin", 1, 3, []byte("bb")); err != nil {
		t.Fatal(err)
	}

	data, err := a.Complete("f.bin")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "aabbcc" {
		t.Errorf("assembled %q", data)
	}

	// Completed upload is discarded.
	if _, err := a.Complete("f.bin"); !errors.Is(err, ErrNoUpload) {
		t.Errorf("want ErrNoUpload after completion, got %v", err)
	}
}

func TestDuplicateChunkIdempotent(t *testing.T) {
	a := NewAssembler()

	a.AddChunk("f.bin", 0, 2, []byte("xx"))
	a.AddChunk("f.bin", 1, 2, []byte("yy"))
	if err := a.AddChunk("f.bin", 0, 2, []byte("xx")); err != nil {
		t.Fatal(err)
	}

	data, err := a.Complete("f.bin")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "xxyy" {
		t.Errorf("assembled %q", data)
	}
}

func TestCompletenessGate(t *testing.T) {
	a := NewAssembler()

	a.AddChunk("f.bin", 0, 3, []byte("aa"))
	a.AddChunk("f.bin", 2, 3, []byte("cc"))

	if _, err := a.Complete("f.bin"); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("want ErrIncomplete, got %v", err)
	}

	// Upload stays receiving, the missing chunk can still arrive.
	if err := a.AddChunk("f.bin", 1, 3, []byte("bb")); err != nil {
		t.Fatal(err)
	}
	data, err := a.Complete("f.bin")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "aabbcc" {
		t.Errorf("assembled %q", data)
	}
}

func TestChunkValidation(t *testing.T) {
	a := NewAssembler()

	if err := a.AddChunk("f.bin", 0, 0, nil); !errors.Is(err, ErrInvalidChunk) {
		t.Errorf("zero total: %v", err)
	}
	if err := a.AddChunk("f.bin", 3, 3, []byte("x")); !errors.Is(err, ErrInvalidChunk) {
		t.Errorf("index out of range: %v", err)
	}

	a.AddChunk("f.bin", 0, 3, []byte("x"))
	if err := a.AddChunk("f.bin", 1, 4, []byte("y")); !errors.Is(err, ErrInvalidChunk) {
		t.Errorf("total mismatch: %v", err)
	}
}

func TestCompleteWithoutUpload(t *testing.T) {
	a := NewAssembler()
	if _, err := a.Complete("never.seen"); !errors.Is(err, ErrNoUpload) {
		t.Errorf("want ErrNoUpload, got %v", err)
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	a := NewAssembler()
	a.AddChunk("f.bin", 0, 1, []byte("x"))
	a.Discard()

	if a.Received("f.bin") != 0 {
		t.Error("chunks survived discard")
	}
	if _, err := a.Complete("f.bin"); !errors.Is(err, ErrNoUpload) {
		t.Errorf("want ErrNoUpload after discard, got %v", err)
	}
}

func TestSeparateUploadsIndependent(t *testing.T) {
	a := NewAssembler()
	a.AddChunk("one.bin", 0, 1, []byte("one"))
	a.AddChunk("two.bin", 0, 2, []byte("tw"))

	data, err := a.Complete("one.bin")
	if err != nil || string(data) != "one" {
		t.Fatalf("got %q, %v", data, err)
	}
	if _, err := a.Complete("two.bin"); !errors.Is(err, ErrIncomplete) {
		t.Errorf("want ErrIncomplete, got %v", err)
	}
}

func TestChunkCount(t *testing.T) {
	cases := []struct {
		size uint64
		want uint32
	}{
		{0, 1},
		{1, 1},
		{65536, 1},
		{65537, 2},
		{150000, 3},
	}
	for _, c := range cases {
		if got := ChunkCount(c.size); got != c.want {
			t.Errorf("ChunkCount(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestAssembledContentMatchesOriginal(t *testing.T) {
	original := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 30000) // 150000 bytes

	a := NewAssembler()
	a.AddChunk("big.bin", 0, 3, original[:65536])
	a.AddChunk("big.bin", 1, 3, original[65536:131072])
	a.AddChunk("big.bin", 2, 3, original[131072:])

	data, err := a.Complete("big.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, original) {
		t.Error("assembled content differs from original")
	}
}
