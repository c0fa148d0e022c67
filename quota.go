package imapc

import "imapc/internal/wire"

// Quota is one GETQUOTA/GETQUOTAROOT resource entry (RFC 2087).
type Quota struct {
	Root      string
	Resources []wire.QuotaResource
}

// QuotaRoot maps a mailbox to the quota roots that apply to it.
type QuotaRoot struct {
	Mailbox string
	Roots   []string
}
