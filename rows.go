package imapc

import (
	"context"

	"imapc/internal/wire"
)

// FetchRows is the lazy result of FETCH, UID FETCH, STORE and UID STORE.
// It borrows its Session exclusively until exhausted or Close'd; no other command may be
// issued on the session meanwhile.
type FetchRows struct {
	sess *Session
	tag  string
	cur  *FetchRow
	done bool
	err  error
}

// Next advances to the next row, returning false at the end of the
// stream or on error (check Err).
func (r *FetchRows) Next(ctx context.Context) bool {
	if r.done {
		return false
	}
	for {
		v, isDone, err := r.sess.conn.pullUntagged(ctx, r.tag)
		if err != nil {
			r.fail(err)
			return false
		}
		if isDone {
			r.finish(statusToError(v.Resp))
			return false
		}
		if v.Resp.Kind == wire.KindUntagged && v.Resp.Type == wire.TypeFetch {
			r.cur = fetchRowFromResponse(v)
			return true
		}
		r.sess.conn.routeUnsolicited(ctx, v)
	}
}

// Row returns the row produced by the most recent successful Next.
func (r *FetchRows) Row() *FetchRow { return r.cur }

// Err returns the first error encountered, if any.
func (r *FetchRows) Err() error { return r.err }

// Close drains any remaining rows and releases the session. Dropping a
// FetchRows without calling Close leaves the session permanently busy.
func (r *FetchRows) Close(ctx context.Context) error {
	for !r.done {
		if !r.Next(ctx) {
			break
		}
	}
	r.sess.release()
	return r.err
}

func (r *FetchRows) fail(err error) {
	r.err = err
	r.done = true
}

func (r *FetchRows) finish(err error) {
	r.done = true
	if err != nil {
		r.err = err
	}
}

// ExpungeNumbers is the lazy result of EXPUNGE and UID EXPUNGE: a stream
// of expunged sequence numbers.
type ExpungeNumbers struct {
	sess *Session
	tag  string
	cur  uint32
	done bool
	err  error
}

func (r *ExpungeNumbers) Next(ctx context.Context) bool {
	if r.done {
		return false
	}
	for {
		v, isDone, err := r.sess.conn.pullUntagged(ctx, r.tag)
		if err != nil {
			r.done, r.err = true, err
			return false
		}
		if isDone {
			r.done = true
			if serr := statusToError(v.Resp); serr != nil {
				r.err = serr
			}
			return false
		}
		if v.Resp.Kind == wire.KindUntagged && v.Resp.Type == wire.TypeExpunge {
			r.cur = v.Resp.Seq
			return true
		}
		r.sess.conn.routeUnsolicited(ctx, v)
	}
}

func (r *ExpungeNumbers) Number() uint32 { return r.cur }
func (r *ExpungeNumbers) Err() error     { return r.err }

func (r *ExpungeNumbers) Close(ctx context.Context) error {
	for !r.done {
		if !r.Next(ctx) {
			break
		}
	}
	r.sess.release()
	return r.err
}

// NameRows is the lazy result of LIST and LSUB.
type NameRows struct {
	sess    *Session
	tag     string
	wantLsub bool
	cur     *Name
	done    bool
	err     error
}

func (r *NameRows) Next(ctx context.Context) bool {
	if r.done {
		return false
	}
	wantType := wire.TypeList
	if r.wantLsub {
		wantType = wire.TypeLsub
	}
	for {
		v, isDone, err := r.sess.conn.pullUntagged(ctx, r.tag)
		if err != nil {
			r.done, r.err = true, err
			return false
		}
		if isDone {
			r.done = true
			if serr := statusToError(v.Resp); serr != nil {
				r.err = serr
			}
			return false
		}
		if v.Resp.Kind == wire.KindUntagged && v.Resp.Type == wantType {
			r.cur = nameFromResponse(v)
			return true
		}
		r.sess.conn.routeUnsolicited(ctx, v)
	}
}

func (r *NameRows) Row() *Name { return r.cur }
func (r *NameRows) Err() error { return r.err }

func (r *NameRows) Close(ctx context.Context) error {
	for !r.done {
		if !r.Next(ctx) {
			break
		}
	}
	r.sess.release()
	return r.err
}
