package imapc

import "imapc/internal/wire"

// Name is one row of a LIST or LSUB response.
type Name struct {
	Attributes []string
	Delimiter  string // "" if the server sent NIL (flat namespace)
	Mailbox    string

	view *wire.ResponseView
}

// Release returns the underlying buffer block to the pool. Optional; see
// ResponseView.
func (n *Name) Release() {
	if n.view != nil {
		n.view.Release()
	}
}

func nameFromResponse(v *wire.ResponseView) *Name {
	r := v.Resp
	return &Name{Attributes: r.NameAttrs, Delimiter: r.Delim, Mailbox: r.Mailbox, view: v}
}
