package imapc

import "imapc/internal/wire"

// maxPooledBlocksPerConn bounds a per-connection pool created by
// WithBufferBlockSize, mirroring the shared pool's own cap (see
// internal/wire.Pool) since a single connection's dedicated pool has no
// reason to allow more concurrently checked-out blocks than the process-wide
// default does.
const maxPooledBlocksPerConn = 4096

// connOptions holds the tunables Option values apply before a Connection is
// constructed.
type connOptions struct {
	pool *wire.Pool
}

// Option configures a connection established by NewUnauthClient, Dial, or
// DialTLS.
type Option func(*connOptions)

// WithBufferBlockSize selects a dedicated buffer pool, sized in size-byte
// blocks, for this connection instead of the process-wide shared pool. Sizes
// under 1 are ignored (the shared pool's default applies).
func WithBufferBlockSize(size int) Option {
	return func(o *connOptions) {
		if size < 1 {
			return
		}
		o.pool = wire.NewPool(size, maxPooledBlocksPerConn)
	}
}

// WithPool selects an arbitrary, caller-constructed buffer pool for this
// connection, e.g. one shared across a handful of connections that want a
// non-default block size without each minting its own pool.
func WithPool(pool *wire.Pool) Option {
	return func(o *connOptions) {
		if pool != nil {
			o.pool = pool
		}
	}
}

func buildConnOptions(opts []Option) *connOptions {
	o := &connOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
