// Package imapc is a small, dependency-light async-capable IMAP4rev1
// client (RFC 3501) with IDLE, UIDPLUS, MOVE, QUOTA, METADATA and ID
// support. It has no opinion on how the underlying byte stream was
// obtained: Dial and DialTLS cover the common net.Dial/tls.Dial cases,
// and NewUnauthClient accepts any wire.Stream, including one produced by
// a SOCKS5 dialer or other caller-managed transport.
package imapc

import (
	"context"
	"crypto/tls"
	"log"
	"net"
)

// Dial connects to addr over plain TCP and returns the Not Authenticated
// client after reading the greeting. Wrap with StartTLS before Login if
// the server requires it. opts is forwarded to NewUnauthClient.
func Dial(ctx context.Context, addr string, logger *log.Logger, opts ...Option) (*UnauthClient, *Greeting, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, newError(KindIO, err)
	}
	return NewUnauthClient(ctx, conn, logger, opts...)
}

// DialTLS connects to addr and performs the TLS handshake before reading
// the greeting (the conventional IMAPS port 993 flow, as opposed to
// STARTTLS on port 143). opts is forwarded to NewUnauthClient.
func DialTLS(ctx context.Context, addr string, config *tls.Config, logger *log.Logger, opts ...Option) (*UnauthClient, *Greeting, error) {
	var d net.Dialer
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, newError(KindIO, err)
	}
	tlsConn := tls.Client(raw, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, nil, newError(KindIO, err)
	}
	return NewUnauthClient(ctx, tlsConn, logger, opts...)
}
