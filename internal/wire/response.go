package wire

import "fmt"

// Status is the three-way server status word (OK/NO/BAD), extended with
// the two greeting-only statuses PREAUTH and BYE.
type Status int

const (
	StatusOK Status = iota
	StatusNO
	StatusBAD
	StatusPREAUTH
	StatusBYE
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNO:
		return "NO"
	case StatusBAD:
		return "BAD"
	case StatusPREAUTH:
		return "PREAUTH"
	case StatusBYE:
		return "BYE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Kind classifies a parsed Response at the top level.
type Kind int

const (
	// KindContinuation is a "+ ..." line soliciting a literal or AUTHENTICATE payload.
	KindContinuation Kind = iota
	// KindDone is a tagged completion "tag OK/NO/BAD ...".
	KindDone
	// KindUntagged is any "* ..." line; see Type for the sub-classification.
	KindUntagged
)

// UntaggedType sub-classifies a KindUntagged Response.
type UntaggedType int

const (
	TypeStatus     UntaggedType = iota // "* OK/NO/BAD/BYE/PREAUTH ..." (includes the greeting)
	TypeFlags                          // "* FLAGS (...)"
	TypeExists                         // "* N EXISTS"
	TypeRecent                         // "* N RECENT"
	TypeExpunge                        // "* N EXPUNGE"
	TypeFetch                          // "* N FETCH (...)"
	TypeSearch                         // "* SEARCH n1 n2 ..."
	TypeCapability                     // "* CAPABILITY ..."
	TypeList                           // "* LIST (attrs) \"/\" mailbox"
	TypeLsub                           // "* LSUB (attrs) \"/\" mailbox"
	TypeStatusData                     // "* STATUS mailbox (attr value ...)"
	TypeID                             // "* ID (...)"
	TypeQuota                          // "* QUOTA root (resource usage limit ...)"
	TypeQuotaRoot                      // "* QUOTAROOT mailbox root ..."
	TypeMetadata                       // "* METADATA mailbox (entry value ...)"
	TypeOther                          // anything the classifier does not recognise
)

// ResponseCode is the optional bracketed code on a status response, e.g.
// "[PERMANENTFLAGS (\Answered \Flagged)]" or "[UIDVALIDITY 1257842737]".
type ResponseCode struct {
	Name   string
	Flags  []string // PERMANENTFLAGS
	Number uint32   // UIDVALIDITY / UIDNEXT / UNSEEN
	Caps   []string // CAPABILITY
	Text   string   // raw remainder for any other code
}

// QuotaResource is one (resource usage limit) triple from a QUOTA response.
type QuotaResource struct {
	Name  string
	Usage uint64
	Limit uint64
}

// FetchAttr is one attribute/value pair inside a FETCH response.
type FetchAttr struct {
	Name    string   // e.g. "UID", "FLAGS", "RFC822.SIZE", "BODY" (a BODY[1.TEXT] section goes in Section)
	Num     uint64   // UID / RFC822.SIZE
	Flags   []string // FLAGS
	Date    string   // INTERNALDATE, raw quoted-string contents
	Text    string   // raw s-expression text for ENVELOPE/BODY/BODYSTRUCTURE
	Section string   // section-spec for BODY[section]/BODY.PEEK[section]
	Bytes   []byte   // literal/string payload for BODY[...]/RFC822/RFC822.TEXT/RFC822.HEADER
}

// Response is one fully parsed server line. Only the fields relevant to
// Kind (and, for KindUntagged, Type) are populated; byte-slice-derived
// string and []byte fields may borrow from the ResponseView's owned
// buffer block and must not be retained past the view's lifetime unless
// copied (Go strings generated during parsing are already independent
// copies; FetchAttr.Bytes for literals are not and are documented as such).
type Response struct {
	Kind Kind

	// KindDone fields.
	Tag string

	// Shared by KindDone and the TypeStatus untagged case (including the
	// greeting, which always arrives as an untagged status line).
	Status Status
	Code   *ResponseCode
	Info   string

	// KindContinuation shares Info for the continuation text, if any.

	Type UntaggedType
	Seq  uint32 // FETCH/EXPUNGE sequence number, or the count for EXISTS/RECENT

	Flags       []string
	Caps        []string
	SearchIDs   []uint32
	Mailbox     string
	Delim       string
	NameAttrs   []string
	StatusAttrs map[string]uint64
	Fetch       []FetchAttr
	IDParams    map[string]string
	QuotaRoot   string
	Quotas      []QuotaResource
	QuotaRoots  []string
	Metadata    map[string]*string // nil value means NIL
	Raw         string
}

// IsDone reports whether this is the tagged completion for tag.
func (r *Response) IsDone(tag string) bool {
	return r.Kind == KindDone && r.Tag == tag
}
