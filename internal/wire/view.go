package wire

import (
	"runtime"
	"sync/atomic"
)

// ResponseView owns a pooled Buffer block and exposes the Response parsed
// from it. The parsed fields may borrow slices of the block's bytes, so
// the view keeps the block alive for as long as the caller holds the
// view — independent of the Connection that produced it.
//
// Release returns the block to the pool immediately; it is optional.
// Callers that forget to call it are not leaking memory: a cleanup
// registered at construction time returns the block once the view itself
// becomes unreachable, mirroring the "released when dropped" semantics
// the protocol core specifies, without requiring Go's lack of a borrow
// checker to be worked around by hand everywhere a view is stored.
type ResponseView struct {
	Resp *Response

	state *viewState
}

type viewState struct {
	pool     *Pool
	buf      *Buffer
	released int32
}

func (s *viewState) release() {
	if !atomic.CompareAndSwapInt32(&s.released, 0, 1) {
		return
	}
	s.pool.Release(s.buf)
}

// NewResponseView takes ownership of buf (acquired from pool) and pairs it
// with its parsed Response.
func NewResponseView(pool *Pool, buf *Buffer, resp *Response) *ResponseView {
	state := &viewState{pool: pool, buf: buf}
	v := &ResponseView{Resp: resp, state: state}
	runtime.AddCleanup(v, func(s *viewState) { s.release() }, state)
	return v
}

// Release returns the owned block to the pool. Safe to call more than
// once and safe to never call — an unreleased view's block is reclaimed
// by the cleanup above once the view is no longer reachable.
func (v *ResponseView) Release() {
	v.state.release()
}
