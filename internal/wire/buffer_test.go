package wire

import "testing"

func TestBufferGrowAndReset(t *testing.T) {
	b := newBuffer()
	if b.Len() != 0 || b.Cap() != defaultBlockSize {
		t.Fatalf("fresh buffer: len=%d cap=%d", b.Len(), b.Cap())
	}

	copy(b.FreeTail(), []byte("hello"))
	b.Grow(5)
	if b.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", b.Len())
	}
	if string(b.Bytes()) != "hello" {
		t.Fatalf("Bytes() = %q", b.Bytes())
	}

	b.Reset(2)
	if b.Len() != 3 || string(b.Bytes()) != "llo" {
		t.Fatalf("after Reset(2): len=%d bytes=%q", b.Len(), b.Bytes())
	}

	b.Reset(0)
	if b.Len() != 0 {
		t.Fatalf("after Reset(0): len=%d", b.Len())
	}
}

// EnsureFree keeps used <= cap <= 512MiB, and leaves a free
// tail of at least max(1, k) bytes.
func TestBufferEnsureFreeInvariant(t *testing.T) {
	b := newBuffer()
	if err := b.EnsureFree(defaultBlockSize * 3); err != nil {
		t.Fatalf("EnsureFree: %v", err)
	}
	if b.Cap()-b.Len() < defaultBlockSize*3 {
		t.Fatalf("free tail = %d, want >= %d", b.Cap()-b.Len(), defaultBlockSize*3)
	}
	if b.Cap() > maxSize {
		t.Fatalf("Cap() = %d exceeds ceiling", b.Cap())
	}
}

func TestBufferEnsureFreeRejectsOversize(t *testing.T) {
	b := newBuffer()
	if err := b.EnsureFree(maxSize + 1); err == nil {
		t.Fatal("expected an error growing past the 512MiB ceiling")
	}
}

func TestBufferReclaimShrinksBackToOneBlock(t *testing.T) {
	b := newBuffer()
	if err := b.EnsureFree(defaultBlockSize * 4); err != nil {
		t.Fatalf("EnsureFree: %v", err)
	}
	b.Grow(10)
	b.reclaim()
	if b.Len() != 0 {
		t.Fatalf("Len() after reclaim = %d", b.Len())
	}
	if b.Cap() != defaultBlockSize {
		t.Fatalf("Cap() after reclaim = %d, want %d", b.Cap(), defaultBlockSize)
	}
}

func TestBufferCustomSizeGrowsAndShrinksInThatGranularity(t *testing.T) {
	const size = 4096
	b := newBufferSize(size)
	if b.Cap() != size {
		t.Fatalf("Cap() = %d, want %d", b.Cap(), size)
	}
	if err := b.EnsureFree(size + 1); err != nil {
		t.Fatalf("EnsureFree: %v", err)
	}
	if b.Cap() != size*2 {
		t.Fatalf("Cap() after EnsureFree = %d, want %d", b.Cap(), size*2)
	}
	b.Grow(10)
	b.reclaim()
	if b.Cap() != size {
		t.Fatalf("Cap() after reclaim = %d, want %d", b.Cap(), size)
	}
}
