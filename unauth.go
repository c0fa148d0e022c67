package imapc

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"log"
	"net"

	"imapc/internal/wire"
)

// Greeting is the server's opening status line.
type Greeting struct {
	// PreAuth is true if the server greeted with PREAUTH, meaning the
	// connection is already in the Authenticated state (e.g. the host
	// authenticated the client at the transport level) and Login/
	// Authenticate must not be called.
	PreAuth bool
	Info    string
}

// UnauthClient is a freshly dialed connection in the Not Authenticated
// state. Construct one with NewUnauthClient, which reads the greeting;
// from there call Login, Authenticate, or, if the greeting was PREAUTH,
// Session directly.
type UnauthClient struct {
	conn *Connection
}

// NewUnauthClient wraps an already-connected stream (a net.Conn, a
// *tls.Conn, or any caller-supplied Stream such as a SOCKS5-proxied
// dialer's result) and reads its greeting. logger may be nil to disable
// protocol-line logging. opts configures the connection, e.g.
// WithBufferBlockSize to size its buffer pool differently from the
// process-wide default.
func NewUnauthClient(ctx context.Context, stream wire.Stream, logger *log.Logger, opts ...Option) (*UnauthClient, *Greeting, error) {
	c := &UnauthClient{conn: newConnection(stream, logger, opts...)}
	greeting, err := c.readGreeting(ctx)
	if err != nil {
		return nil, nil, err
	}
	return c, greeting, nil
}

func (c *UnauthClient) readGreeting(ctx context.Context) (*Greeting, error) {
	v, err := c.conn.stream.Next(ctx)
	if err != nil {
		return nil, newError(KindIO, err)
	}
	r := v.Resp
	if r.Kind != wire.KindUntagged || r.Type != wire.TypeStatus {
		return nil, newError(KindParse, errors.New("server did not send a greeting"))
	}
	switch r.Status {
	case wire.StatusOK:
		return &Greeting{Info: r.Info}, nil
	case wire.StatusPREAUTH:
		return &Greeting{PreAuth: true, Info: r.Info}, nil
	case wire.StatusBYE:
		return nil, newServerError(KindNo, codeName(r.Code), r.Info)
	default:
		return nil, newError(KindParse, errors.New("unexpected greeting status "+r.Status.String()))
	}
}

// Session promotes the connection to Session once it has reached the
// Authenticated state, whether via a PREAUTH greeting, Login, or
// Authenticate. Calling it before that point produces a Session whose
// first command will fail with the server's own BAD/NO.
func (c *UnauthClient) Session() *Session { return newSession(c.conn) }

// Unsolicited returns the channel callers can drain even before
// authentication completes (the greeting itself is read separately, but
// a server may still emit e.g. capability updates afterward).
func (c *UnauthClient) Unsolicited() *UnsolicitedChannel { return c.conn.Unsolicited() }

// Capabilities requests the server's capability set from the
// Not Authenticated state.
func (c *UnauthClient) Capabilities(ctx context.Context) (*Capabilities, error) {
	tag, err := c.conn.send(ctx, "CAPABILITY")
	if err != nil {
		return nil, err
	}
	caps := newCapabilities()
	for {
		v, done, err := c.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			return caps, nil
		}
		if v.Resp.Type == wire.TypeCapability {
			for _, cap := range v.Resp.Caps {
				caps.add(cap)
			}
		} else {
			c.conn.routeUnsolicited(ctx, v)
		}
	}
}

// Login authenticates with a plaintext username/password and returns the
// now-Authenticated Session.
func (c *UnauthClient) Login(ctx context.Context, username, password string) (*Session, error) {
	userArg, err := quoteValidated(username)
	if err != nil {
		return nil, err
	}
	passArg, err := quoteValidated(password)
	if err != nil {
		return nil, err
	}
	tag, err := c.conn.send(ctx, "LOGIN "+userArg+" "+passArg)
	if err != nil {
		return nil, err
	}
	if err := c.conn.awaitDone(ctx, tag); err != nil {
		return nil, err
	}
	return c.Session(), nil
}

// Authenticate drives a SASL exchange via AUTHENTICATE, base64-
// encoding/decoding challenges and responses and delegating the mechanism
// itself to authr. On failure it returns an error and leaves c unchanged
// so the caller may retry with a different mechanism or credentials.
func (c *UnauthClient) Authenticate(ctx context.Context, mechanism string, authr Authenticator) (*Session, error) {
	tag, err := c.conn.send(ctx, "AUTHENTICATE "+mechanism)
	if err != nil {
		return nil, err
	}
	for {
		v, done, err := c.conn.pullUntagged(ctx, tag)
		if err != nil {
			return nil, err
		}
		if done {
			if serr := statusToError(v.Resp); serr != nil {
				return nil, serr
			}
			return c.Session(), nil
		}
		r := v.Resp
		if r.Kind != wire.KindContinuation {
			c.conn.routeUnsolicited(ctx, v)
			continue
		}
		var challenge []byte
		if r.Info != "" {
			challenge, err = base64.StdEncoding.DecodeString(r.Info)
			if err != nil {
				return nil, newError(KindParse, err)
			}
		}
		reply, serr := authr.Step(challenge)
		if serr != nil {
			// The exchange has no well-defined way to abort other than
			// sending "*"; nothing is sent here, and the unanswered
			// challenge is left for the server to time out.
			return nil, newError(KindIO, serr)
		}
		if err := c.conn.sendRaw(ctx, base64.StdEncoding.EncodeToString(reply)); err != nil {
			return nil, err
		}
	}
}

// StartTLS issues STARTTLS and, on success, performs a TLS handshake over
// the same underlying connection, which must implement net.Conn. It must
// be called before Login/Authenticate.
func (c *UnauthClient) StartTLS(ctx context.Context, config *tls.Config) error {
	tag, err := c.conn.send(ctx, "STARTTLS")
	if err != nil {
		return err
	}
	if err := c.conn.awaitDone(ctx, tag); err != nil {
		return err
	}
	if !c.conn.stream.Idle() {
		return newError(KindParse, errors.New("server sent data before the STARTTLS response completed; refusing to negotiate TLS over a connection with buffered plaintext"))
	}
	nc, ok := c.conn.raw.(net.Conn)
	if !ok {
		return newError(KindIO, errors.New("underlying stream is not a net.Conn; cannot negotiate TLS"))
	}
	tlsConn := tls.Client(nc, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return newError(KindIO, err)
	}
	c.conn.raw = tlsConn
	c.conn.stream.SetConn(tlsConn)
	return nil
}
