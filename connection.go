package imapc

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/google/uuid"

	"imapc/internal/wire"
)

// Connection pairs a FramedStream with a TagGenerator and the unsolicited
// channel every command path routes non-matching data to. It implements
// strictly serial command/response correlation: one in-flight command at
// a time, responses delivered in wire order.
type Connection struct {
	raw         wire.Stream // retained so STARTTLS can rewrap it
	stream      *wire.FramedStream
	tags        *wire.TagGenerator
	unsolicited *UnsolicitedChannel
	logger      *log.Logger
	id          string // correlation id for log lines, not a protocol value
}

func newConnection(conn wire.Stream, logger *log.Logger, opts ...Option) *Connection {
	o := buildConnOptions(opts)
	pool := o.pool
	if pool == nil {
		pool = wire.Shared()
	}
	return &Connection{
		raw:         conn,
		stream:      wire.NewFramedStream(conn, pool),
		tags:        wire.NewTagGenerator(),
		unsolicited: newUnsolicitedChannel(),
		logger:      logger,
		id:          uuid.NewString(),
	}
}

func (c *Connection) logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Printf("conn=%s "+format, append([]any{c.id}, args...)...)
}

// Unsolicited returns the channel's read-only interface for callers that
// want to drain server-initiated notifications between or during
// commands.
func (c *Connection) Unsolicited() *UnsolicitedChannel { return c.unsolicited }

// send issues a fresh tag for payload, writes it, and returns the tag so
// the caller can correlate the eventual Done.
func (c *Connection) send(ctx context.Context, payload string) (string, error) {
	tag := c.tags.Next()
	c.logf("-> %s %s", tag, payload)
	if err := c.stream.WriteCommand(ctx, tag, payload); err != nil {
		return "", newError(KindIO, err)
	}
	return tag, nil
}

// sendRaw writes a tagless line (DONE, or an AUTHENTICATE continuation
// payload).
func (c *Connection) sendRaw(ctx context.Context, line string) error {
	c.logf("-> %s", line)
	if err := c.stream.WriteCommand(ctx, "", line); err != nil {
		return newError(KindIO, err)
	}
	return nil
}

// pullUntagged reads the next response, silently routing any tagged
// completion that does not match tag to the unsolicited channel. It
// returns isDone=true once tag's own completion arrives (in which case
// view.Resp carries its Status/Code/Info); otherwise it returns the next
// untagged view for the caller to interpret.
func (c *Connection) pullUntagged(ctx context.Context, tag string) (view *wire.ResponseView, isDone bool, err error) {
	for {
		v, rerr := c.stream.Next(ctx)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil, false, newError(KindConnectionLost, ErrConnectionLost)
			}
			var perr *wire.ParseError
			if errors.As(rerr, &perr) {
				return nil, false, newError(KindParse, rerr)
			}
			return nil, false, newError(KindIO, rerr)
		}
		r := v.Resp
		if r.Kind == wire.KindDone {
			if r.Tag == tag {
				c.logf("<- %s %s", tag, r.Status)
				return v, true, nil
			}
			c.routeUnsolicited(ctx, v)
			continue
		}
		return v, false, nil
	}
}

// routeUnsolicited pushes v onto the unsolicited channel, logging rather
// than failing the command path if the push is cancelled (a full,
// undrained channel under a caller-supplied deadline is the caller's
// problem, not a protocol error).
func (c *Connection) routeUnsolicited(ctx context.Context, v *wire.ResponseView) {
	if err := c.unsolicited.push(ctx, classifyUnsolicited(v)); err != nil {
		c.logf("dropped unsolicited response: %v", err)
	}
}

// awaitDone drains responses until tag's completion, routing every
// untagged view it sees to the unsolicited channel, and translates the
// completion status into an error. It is used by the many commands whose
// only result is "did it succeed".
func (c *Connection) awaitDone(ctx context.Context, tag string) error {
	for {
		v, done, err := c.pullUntagged(ctx, tag)
		if err != nil {
			return err
		}
		if done {
			return statusToError(v.Resp)
		}
		c.routeUnsolicited(ctx, v)
	}
}

// statusToError converts a Done response's status into the caller-facing
// error, or nil on OK.
func statusToError(r *wire.Response) error {
	switch r.Status {
	case wire.StatusOK:
		return nil
	case wire.StatusNO:
		return newServerError(KindNo, codeName(r.Code), r.Info)
	case wire.StatusBAD:
		return newServerError(KindBad, codeName(r.Code), r.Info)
	default:
		return newError(KindIO, errors.New("unexpected tagged status "+r.Status.String()))
	}
}

func codeName(c *wire.ResponseCode) string {
	if c == nil {
		return ""
	}
	return c.Name
}
