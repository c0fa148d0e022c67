package imapc

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imapc/internal/wire"
)

// IdleHandle represents an entered IDLE sub-protocol (RFC 2177). The
// session it was obtained from is loaned to the handle exclusively; no
// other command may be issued until Done returns.
type IdleHandle struct {
	sess *Session
	tag  string

	mu     sync.Mutex
	ended  bool
	endErr error
}

// Wait blocks until the first view that is not an untagged-OK keepalive
// or a stray continuation arrives, and returns it as the sole outcome of
// this call — it is not also pushed onto the session's unsolicited
// channel. It does not end IDLE; call it repeatedly to keep observing
// notifications, then Done to leave.
func (h *IdleHandle) Wait(ctx context.Context) (*UnsolicitedResponse, error) {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return nil, errors.New("imapc: IDLE already ended")
	}
	h.mu.Unlock()

	for {
		v, done, err := h.sess.conn.pullUntagged(ctx, h.tag)
		if err != nil {
			return nil, err
		}
		if done {
			// The server ended IDLE on its own (e.g. a timeout BYE); record
			// it so Done does not try to write another DONE line.
			h.mu.Lock()
			h.ended = true
			h.endErr = statusToError(v.Resp)
			h.mu.Unlock()
			return nil, h.endErr
		}
		if v.Resp.Kind == wire.KindContinuation {
			continue
		}
		if v.Resp.Kind == wire.KindUntagged && v.Resp.Type == wire.TypeStatus && v.Resp.Status == wire.StatusOK {
			continue
		}
		return classifyUnsolicited(v), nil
	}
}

// WaitTimeout is Wait bounded by timeout, for callers that want to poll
// periodically (e.g. to send their own keepalive) rather than block
// indefinitely for the next server notification.
func (h *IdleHandle) WaitTimeout(ctx context.Context, timeout time.Duration) (*UnsolicitedResponse, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(cctx)
	var resp *UnsolicitedResponse
	g.Go(func() error {
		r, err := h.Wait(gctx)
		resp = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Done sends the DONE continuation, ending IDLE and returning the session
// to ordinary command use. Safe to call once; a second call replays the
// stored result rather than writing a second DONE line.
func (h *IdleHandle) Done(ctx context.Context) (err error) {
	h.mu.Lock()
	if h.ended {
		err := h.endErr
		h.mu.Unlock()
		h.sess.release()
		return err
	}
	h.ended = true
	h.mu.Unlock()
	defer h.sess.release()
	defer func() {
		h.mu.Lock()
		h.endErr = err
		h.mu.Unlock()
	}()

	if err := h.sess.conn.sendRaw(ctx, "DONE"); err != nil {
		return err
	}
	for {
		v, done, err := h.sess.conn.pullUntagged(ctx, h.tag)
		if err != nil {
			return err
		}
		if done {
			return statusToError(v.Resp)
		}
		h.sess.conn.routeUnsolicited(ctx, v)
	}
}
