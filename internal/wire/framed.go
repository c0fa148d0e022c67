package wire

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Stream is the minimal byte-stream abstraction FramedStream consumes.
// A *net.Conn (optionally wrapped in *tls.Conn) satisfies it; so does
// anything else with blocking Read/Write semantics, keeping the core
// independent of any particular transport or runtime.
type Stream interface {
	io.Reader
	io.Writer
}

// FramedStream wraps a Stream with a reusable Buffer and turns it into a
// sequence of parsed server responses, implementing the read contract of
// the protocol core: grow-on-demand buffering, literal-aware incremental
// parsing via decodeNeeds, and EOF discrimination.
type FramedStream struct {
	conn        Stream
	pool        *Pool
	buf         *Buffer
	decodeNeeds int
	eof         bool
	poisoned    error
}

// NewFramedStream wraps conn, drawing buffer blocks from pool.
func NewFramedStream(conn Stream, pool *Pool) *FramedStream {
	if pool == nil {
		pool = Shared()
	}
	return &FramedStream{conn: conn, pool: pool}
}

// Next blocks until one complete response has been read and parsed,
// returning it as a ResponseView the caller owns independently of this
// stream. It returns io.EOF on a clean end of stream, io.ErrUnexpectedEOF
// if the peer closed mid-response, and poisons the stream (all further
// calls return the same error) on any parse or I/O error. A read cut short
// by ctx returns ctx's error and leaves the stream usable.
func (fs *FramedStream) Next(ctx context.Context) (*ResponseView, error) {
	if fs.poisoned != nil {
		return nil, fs.poisoned
	}
	if fs.eof {
		return nil, io.EOF
	}
	if fs.buf == nil {
		buf, err := fs.pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		fs.buf = buf
	}

	for {
		if fs.decodeNeeds == 0 || fs.buf.Len() >= fs.decodeNeeds {
			consumed, resp, err := Parse(fs.buf.Bytes())
			if err == nil {
				view := fs.yield(ctx, consumed, resp)
				fs.decodeNeeds = 0
				return view, nil
			}
			var incomplete *ErrIncomplete
			if errors.As(err, &incomplete) {
				fs.decodeNeeds = incomplete.NeedTotal
			} else {
				fs.poisoned = err
				return nil, err
			}
		}

		if err := fs.buf.EnsureFree(fs.minFree()); err != nil {
			fs.poisoned = err
			return nil, err
		}

		n, rerr := fs.read(ctx, fs.buf.FreeTail())
		if rerr != nil && ctx != nil && ctx.Err() != nil && errors.Is(rerr, ctx.Err()) {
			// A read cut short by ctx is neither end of stream nor a
			// poisoning error: keep what arrived and let a later call with
			// a live context carry on.
			fs.buf.Grow(n)
			return nil, rerr
		}
		if n == 0 {
			if fs.buf.Len() > 0 {
				fs.poisoned = io.ErrUnexpectedEOF
				return nil, io.ErrUnexpectedEOF
			}
			fs.eof = true
			return nil, io.EOF
		}
		fs.buf.Grow(n)
		if rerr != nil && rerr != io.EOF {
			fs.poisoned = rerr
			return nil, rerr
		}
	}
}

// yield hands the current block to a new ResponseView and replaces it
// with a fresh block carrying over any unparsed trailing bytes.
func (fs *FramedStream) yield(ctx context.Context, consumed int, resp *Response) *ResponseView {
	remaining := fs.buf.Len() - consumed
	old := fs.buf
	view := NewResponseView(fs.pool, old, resp)

	newBuf, err := fs.pool.Acquire(ctx)
	if err != nil {
		// No replacement available right now; carry the remainder forward
		// in an unowned buffer so Next keeps making progress under pool
		// exhaustion instead of blocking on acquiring one. This buffer
		// never took a semaphore permit (owned stays false), so Release
		// discards it instead of returning a permit nothing acquired.
		fs.buf = newBuffer()
	} else {
		fs.buf = newBuf
	}
	if remaining > 0 {
		copy(fs.buf.FreeTail()[:remaining], old.Bytes()[consumed:])
		fs.buf.Grow(remaining)
	}
	return view
}

func (fs *FramedStream) minFree() int {
	if fs.buf == nil {
		return 1
	}
	if fs.decodeNeeds > fs.buf.Len() {
		return fs.decodeNeeds - fs.buf.Len()
	}
	return 1
}

// WriteCommand sends "tag SP payload CRLF", or "payload CRLF" if tag is
// empty (used for the unsolicited AUTHENTICATE continuation and DONE).
func (fs *FramedStream) WriteCommand(ctx context.Context, tag, payload string) error {
	var sb strings.Builder
	if tag != "" {
		sb.WriteString(tag)
		sb.WriteByte(' ')
	}
	sb.WriteString(payload)
	sb.WriteString("\r\n")
	return fs.write(ctx, []byte(sb.String()))
}

// WriteLiteral writes exactly data followed by CRLF, for APPEND literals.
func (fs *FramedStream) WriteLiteral(ctx context.Context, data []byte) error {
	if err := fs.write(ctx, data); err != nil {
		return err
	}
	return fs.write(ctx, []byte("\r\n"))
}

// race runs op while a background goroutine forces it to unblock via
// setDeadline(time.Unix(0, 1)) if ctx is cancelled first. It waits for
// that goroutine to fully exit before clearing the deadline again, so a
// cancellation during one call never leaves a later call on the same
// conn permanently poisoned by a stale expired deadline.
func race(ctx context.Context, setDeadline func(time.Time) error, op func() (int, error)) (int, error) {
	if ctx == nil || ctx.Done() == nil {
		return op()
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			setDeadline(time.Unix(0, 1))
		case <-done:
		}
	}()
	n, err := op()
	close(done)
	<-exited
	setDeadline(time.Time{})
	return n, err
}

func (fs *FramedStream) write(ctx context.Context, p []byte) error {
	type deadliner interface{ SetWriteDeadline(time.Time) error }
	var err error
	if dl, ok := fs.conn.(deadliner); ok {
		_, err = race(ctx, dl.SetWriteDeadline, func() (int, error) { return fs.conn.Write(p) })
	} else {
		_, err = fs.conn.Write(p)
	}
	if err != nil && ctx != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
	}
	return err
}

func (fs *FramedStream) read(ctx context.Context, p []byte) (int, error) {
	type deadliner interface{ SetReadDeadline(time.Time) error }
	var n int
	var err error
	if dl, ok := fs.conn.(deadliner); ok {
		n, err = race(ctx, dl.SetReadDeadline, func() (int, error) { return fs.conn.Read(p) })
	} else {
		n, err = fs.conn.Read(p)
	}
	if err != nil && ctx != nil {
		if cerr := ctx.Err(); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}

// SetConn swaps the underlying transport, e.g. after a STARTTLS upgrade
// (mirrors the net/smtp Client.StartTLS idiom of replacing the transport
// in place rather than constructing a new client). The caller must only
// call this when Idle reports no unparsed bytes remain.
func (fs *FramedStream) SetConn(conn Stream) {
	fs.conn = conn
}

// Idle reports whether the buffer currently holds no unparsed bytes,
// which STARTTLS relies on before handing the underlying Stream off to a
// TLS handshake: residual bytes at that point are a protocol attack, not
// data to forward.
func (fs *FramedStream) Idle() bool {
	return fs.buf == nil || fs.buf.Len() == 0
}
