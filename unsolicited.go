package imapc

import (
	"context"

	"imapc/internal/wire"
)

// unsolicitedCapacity is the bounded queue depth: once full, the
// connection's read loop suspends pushing until a caller drains it.
const unsolicitedCapacity = 100

// UnsolicitedKind classifies an UnsolicitedResponse.
type UnsolicitedKind int

const (
	UnsolicitedStatus UnsolicitedKind = iota
	UnsolicitedRecent
	UnsolicitedExists
	UnsolicitedExpunge
	UnsolicitedMetadata
	UnsolicitedOther
)

// UnsolicitedResponse is a server-initiated notification the connection
// routed off the command-result stream.
type UnsolicitedResponse struct {
	Kind UnsolicitedKind

	// Status (mailbox STATUS data arriving outside a STATUS command).
	Mailbox    string
	Attributes map[string]uint64

	// Recent/Exists/Expunge.
	N uint32

	// Metadata.
	Entries map[string]*string

	// Other catches anything the classifier does not recognise,
	// including status-line greetings/BYE, CAPABILITY, LIST/LSUB,
	// SEARCH, ID, QUOTA/QUOTAROOT arriving unsolicited, and stray
	// tagged completions for a tag no in-flight command owns.
	View *wire.ResponseView
}

func classifyUnsolicited(v *wire.ResponseView) *UnsolicitedResponse {
	r := v.Resp
	if r.Kind == wire.KindUntagged {
		switch r.Type {
		case wire.TypeStatusData:
			return &UnsolicitedResponse{Kind: UnsolicitedStatus, Mailbox: r.Mailbox, Attributes: r.StatusAttrs, View: v}
		case wire.TypeRecent:
			return &UnsolicitedResponse{Kind: UnsolicitedRecent, N: r.Seq, View: v}
		case wire.TypeExists:
			return &UnsolicitedResponse{Kind: UnsolicitedExists, N: r.Seq, View: v}
		case wire.TypeExpunge:
			return &UnsolicitedResponse{Kind: UnsolicitedExpunge, N: r.Seq, View: v}
		case wire.TypeMetadata:
			return &UnsolicitedResponse{Kind: UnsolicitedMetadata, Mailbox: r.Mailbox, Entries: r.Metadata, View: v}
		}
	}
	return &UnsolicitedResponse{Kind: UnsolicitedOther, View: v}
}

// UnsolicitedChannel is the bounded, order-preserving queue unsolicited
// responses are delivered on. Producers (internal to every command path)
// push with back-pressure; consumers drain either non-blockingly
// (TryRecv) or by awaiting (Recv).
type UnsolicitedChannel struct {
	ch chan *UnsolicitedResponse
}

func newUnsolicitedChannel() *UnsolicitedChannel {
	return &UnsolicitedChannel{ch: make(chan *UnsolicitedResponse, unsolicitedCapacity)}
}

// push enqueues resp, blocking (respecting ctx) if the channel is full.
func (u *UnsolicitedChannel) push(ctx context.Context, resp *UnsolicitedResponse) error {
	select {
	case u.ch <- resp:
		return nil
	default:
	}
	select {
	case u.ch <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryRecv returns the next queued response without blocking.
func (u *UnsolicitedChannel) TryRecv() (*UnsolicitedResponse, bool) {
	select {
	case r := <-u.ch:
		return r, true
	default:
		return nil, false
	}
}

// Recv blocks until a response is available or ctx is done.
func (u *UnsolicitedChannel) Recv(ctx context.Context) (*UnsolicitedResponse, error) {
	select {
	case r := <-u.ch:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
