package wire

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxPooledBlocks bounds how many buffer blocks may be checked out of the
// pool at once. It is not a limit on connections (each connection only
// ever holds one block for its FramedStream plus, transiently, one per
// in-flight ResponseView) — it exists so a pathological caller that leaks
// ResponseViews applies back-pressure to new reads instead of growing
// memory without bound.
const maxPooledBlocks = 4096

// Pool is a process-wide, thread-safe, fair pool of Buffer blocks. Fair
// acquisition under contention is provided by semaphore.Weighted, which
// queues waiters in FIFO order; a plain sync.Pool alone makes no such
// guarantee and can starve a waiter indefinitely under adversarial access
// patterns.
type Pool struct {
	sem       *semaphore.Weighted
	sp        sync.Pool
	blockSize int
}

var shared = NewPool(defaultBlockSize, maxPooledBlocks)

// NewPool constructs a buffer pool capped at maxBlocks concurrently
// checked-out blocks, each growing in blockSize increments (0 selects the
// library default). Most callers should use the process-wide Shared
// pool; NewPool exists for tests that want to exercise exhaustion without
// affecting other tests, and for callers that need a non-default block
// size (e.g. internal/config.Config.BufferBlockSize).
func NewPool(blockSize int, maxBlocks int64) *Pool {
	if blockSize < 1 {
		blockSize = defaultBlockSize
	}
	return &Pool{
		sem:       semaphore.NewWeighted(maxBlocks),
		sp:        sync.Pool{New: func() any { return newBufferSize(blockSize) }},
		blockSize: blockSize,
	}
}

// Shared returns the process-wide buffer pool.
func Shared() *Pool { return shared }

// Acquire checks out a block, blocking (respecting ctx) if the pool is at
// capacity. The returned buffer is empty (Len() == 0).
func (p *Pool) Acquire(ctx context.Context) (*Buffer, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	buf := p.sp.Get().(*Buffer)
	buf.used = 0
	buf.owned = true
	return buf, nil
}

// Release returns a block to the pool. It is safe to call with nil. A
// buffer that was never Acquired (owned == false — see yield's pool-
// exhaustion fallback) is reclaimed and discarded without touching the
// semaphore, since no permit was ever taken out for it.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		return
	}
	owned := b.owned
	b.owned = false
	b.reclaim()
	if !owned {
		return
	}
	p.sp.Put(b)
	p.sem.Release(1)
}
