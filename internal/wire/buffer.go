// Package wire implements the IMAP byte-level framing and grammar: a
// growable buffer, an incremental response parser, and the ResponseView
// that hands parsed responses to callers without copying the bytes they
// borrow from.
package wire

import (
	"fmt"
)

const (
	// defaultBlockSize is the granularity a Buffer grows by when no
	// caller-supplied size applies (see Pool.blockSize).
	defaultBlockSize = 16 * 1024
	// maxSize is the hard ceiling on a single buffer's capacity.
	maxSize = 512 << 20
)

// Buffer is a growable byte arena. The valid prefix is [0, Len()); the free
// tail [Len(), Cap()) is reserved for incoming reads and is never empty
// after a call to EnsureFree, so a zero-byte read reliably signals EOF
// rather than "buffer full".
type Buffer struct {
	data   []byte
	used   int
	growBy int // granularity this buffer grows by and shrinks back to

	// owned is true while this Buffer holds a semaphore permit checked
	// out via Pool.Acquire. Buffers minted directly by newBuffer() (the
	// yield fallback when the pool is momentarily exhausted) leave this
	// false, so Pool.Release knows not to release a permit nothing ever
	// acquired.
	owned bool
}

func newBuffer() *Buffer {
	return newBufferSize(defaultBlockSize)
}

// newBufferSize mints a Buffer that grows and shrinks in size-sized
// increments, for pools configured with a non-default block size.
func newBufferSize(size int) *Buffer {
	if size < 1 {
		size = defaultBlockSize
	}
	return &Buffer{data: make([]byte, size), growBy: size}
}

// Len reports the length of the valid prefix.
func (b *Buffer) Len() int { return b.used }

// Cap reports the buffer's current capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// Bytes returns the valid prefix. The slice is only valid until the next
// call to Grow, Reset or EnsureFree.
func (b *Buffer) Bytes() []byte { return b.data[:b.used] }

// FreeTail returns the writable free region following the valid prefix.
func (b *Buffer) FreeTail() []byte { return b.data[b.used:] }

// Grow records that n bytes were written into FreeTail.
func (b *Buffer) Grow(n int) { b.used += n }

// EnsureFree grows the backing array, in growBy increments, until the
// free tail holds at least max(1, min) bytes. It fails once the resulting
// capacity would exceed maxSize.
func (b *Buffer) EnsureFree(min int) error {
	if min < 1 {
		min = 1
	}
	if len(b.data)-b.used >= min {
		return nil
	}
	step := b.growBy
	if step < 1 {
		step = defaultBlockSize
	}
	need := b.used + min
	newCap := len(b.data)
	for newCap < need {
		newCap += step
	}
	if newCap > maxSize {
		return fmt.Errorf("wire: incoming data too large (%d bytes exceeds %d byte ceiling)", newCap, maxSize)
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.used])
	b.data = grown
	return nil
}

// Reset discards the bytes in [0, keepFrom) and shifts [keepFrom, used) to
// the front, making it the new valid prefix. It is used after a successful
// parse to carry over any bytes the parser did not consume.
func (b *Buffer) Reset(keepFrom int) {
	if keepFrom <= 0 {
		b.used = 0
		return
	}
	n := copy(b.data, b.data[keepFrom:b.used])
	b.used = n
}

// reclaim resets the buffer to empty and shrinks it back to one growBy
// block if it grew past that serving an oversized response, so the pool
// does not pin large allocations indefinitely.
func (b *Buffer) reclaim() {
	b.used = 0
	step := b.growBy
	if step < 1 {
		step = defaultBlockSize
	}
	if len(b.data) > step {
		b.data = make([]byte, step)
	}
}
